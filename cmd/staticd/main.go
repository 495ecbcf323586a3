// =============================================================================
// staticd 主入口
// =============================================================================
// 静态文件服务入口点，包含文件服务、管理端点（/metrics、/healthz）与遥测
//
// 使用方法:
//
//	staticd 8080                          # 在 8080 端口提供 ./web
//	staticd -root /srv/www 8080           # 指定文档根目录
//	staticd -config staticd.yaml 8080     # 指定配置文件
//	staticd version                       # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/staticd/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	illegalPortMessage = "Illegal port number."
	envPrefix          = "STATICD"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 执行命令行并返回退出码。端口与配置错误在打开任何 socket 之前返回 1。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion(stdout)
			return 0
		case "help":
			printUsage(stdout)
			return 0
		}
	}

	fs := flag.NewFlagSet("staticd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	configPath := fs.String("config", "", "Path to config file (YAML)")
	docRoot := fs.String("root", "", "Document root directory (overrides config)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if fs.NArg() != 1 {
		printUsage(stderr)
		return 1
	}
	port, err := parsePort(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, illegalPortMessage)
		return 1
	}

	// 加载配置：默认值 → YAML → 环境变量 → 命令行参数，最后统一验证
	loader := config.NewLoader().
		WithEnvPrefix(envPrefix).
		WithOverride(func(c *config.Config) {
			c.Server.Port = port
			if *docRoot != "" {
				c.Server.DocRoot = *docRoot
			}
		}).
		WithValidator((*config.Config).Validate)
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting staticd",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("doc_root", cfg.Server.DocRoot),
	)

	if err := runServer(ctx, cfg, logger); err != nil {
		logger.Error("staticd failed", zap.Error(err))
		return 1
	}

	logger.Info("staticd stopped")
	return 0
}

// parsePort 解析端口参数，只接受 (0, 65536) 内的十进制整数
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse port %q: %w", s, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "staticd %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: staticd [flags] <port number>

Serves files from the document root over HTTP/1.1 until SIGINT or SIGTERM.

Flags:
  -config <path>   Path to configuration file (YAML)
  -root <dir>      Document root directory (default "web")

Commands:
  version          Show version information
  help             Show this help message

Examples:
  staticd 8080
  staticd -root /srv/www 8080
  staticd -config /etc/staticd/staticd.yaml 8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
