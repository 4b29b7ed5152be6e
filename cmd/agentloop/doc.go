// Copyright (c) AgentLoop Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentloop 命令行与服务端入口。

# 概述

agentloop 把 ReAct 执行器装配为两种形态：run 子命令在终端里执行一次任务
或逐行对话，serve 子命令通过 HTTP API 暴露同一执行器。两者共享 App 的
装配逻辑：模型 Provider、图像工具、提示词来源、会话记忆和可选的运行历史。

# 核心类型

  - App: 持有执行器及其依赖，配置重载时原子替换执行器
  - Server: 管理 API 与 Metrics 两个端口、配置热重载和优雅关闭
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler

# 子命令

  - run [--config] [--session] [--verbose] [input...]
  - serve [--config]
  - health [--addr]
  - version

# 中间件链

Recovery、RequestID、SecurityHeaders、RequestLogger、Metrics、OTel、
RateLimiter（基于 IP），启用 jwt 时追加 JWTAuth（仅 /api/ 路径）。

版本信息 Version、BuildTime、GitCommit 通过 ldflags 注入。
*/
package main
