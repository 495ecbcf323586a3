// 版权所有 2024 staticd Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供管理端 HTTP 服务器的生命周期管理。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。管理端与静态文件服务使用不同端口，
只暴露运维接口，不参与静态文件请求处理。

# 核心类型

  - Manager：管理端服务器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/Shutdown/Errors 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时与优雅关闭超时。
  - NewAdminHandler：挂载 /metrics（Prometheus）与 /healthz
    （连接注册表状态，关闭中返回 503）。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空。
  - 错误传播：Errors() 返回异步错误通道，供调用方监控服务异常。
*/
package server
