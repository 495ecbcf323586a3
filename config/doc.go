// Package config 提供 staticd 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（STATICD_ 前缀）的顺序叠加，
// 命令行给出的端口与文档根目录最后覆盖。Validate 一次性返回所有错误。
package config
