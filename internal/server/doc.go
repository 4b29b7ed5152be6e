// 版权所有 2024 AgentLoop Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与基于 context 的停机等待。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。cmd/agentloop 用它分别承载 API 服务与
/metrics 端口。

# 核心类型

  - Manager：HTTP 服务器管理器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/Shutdown/Wait 等生命周期方法。
  - Config：服务器配置，包含服务名、监听地址、读写超时、空闲超时、
    最大请求头大小与优雅关闭超时。ConfigFrom 由 config.ServerConfig 生成。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放。
  - 停机等待：Wait 在 ctx 结束或服务异常退出时触发优雅关闭。
  - 状态查询：IsRunning/Addr/ListenAddr。
*/
package server
