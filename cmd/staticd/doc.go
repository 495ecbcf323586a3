// Copyright (c) staticd Authors.
// Licensed under the MIT License.

/*
Package main 提供 staticd 静态文件服务程序入口。

# 概述

cmd/staticd 解析端口参数与配置，打开文档根目录，启动
internal/httpd 文件服务，并在配置了 metrics.port 时启动管理端点。
收到 SIGINT/SIGTERM 后由 httpd 的关闭协调器排空连接与 worker，
随后停止管理端点、刷新遥测数据并以 0 退出。

# 主要能力

  - 参数校验：缺少端口打印用法，非法端口打印 "Illegal port number."，
    均以 1 退出且不打开任何 socket
  - 子命令：version、help
  - 配置：YAML 文件 + STATICD_ 环境变量，命令行端口与 -root 优先
  - 组件编排：errgroup 同时运行监听循环与管理端点错误监视
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
