// 版权所有 2024 staticd Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的静态文件服务指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。
Collector 实现 httpd.Metrics 接口，由监听循环、连接 worker 与
关闭协调器直接调用。

# 主要能力

  - 连接指标：接受/拒绝计数与活跃连接 Gauge。
  - 请求指标：按状态码（200/404/501）与类别（2xx/4xx/5xx）分组的
    请求总数、耗时与响应大小。
  - 关闭指标：关闭时排空的连接数、worker 数以及关闭耗时。
*/
package metrics
