// =============================================================================
// 📦 staticd 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认文件服务配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "",
		Port:            8080,
		DocRoot:         "web",
		DefaultDocument: "index.html",
		MaxHeaderBytes:  8 << 10, // 8 KiB
		AcceptRate:      0,
		AcceptBurst:     0,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultMetricsConfig 返回默认管理端点配置（默认禁用）
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Port:      0,
		Namespace: "staticd",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "staticd",
		SampleRate:   0.1,
	}
}
