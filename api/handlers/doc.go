// Copyright (c) AgentLoop Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 AgentLoop HTTP API 的请求处理器实现。

# 核心类型

  - RunHandler    : POST /api/v1/run 执行任务，GET /api/v1/runs 查询运行历史
  - HealthHandler : 健康检查（/health、/healthz、/ready）与 /version
  - PingCheck     : 基于 ping 函数的可插拔就绪检查（Redis、数据库）
  - Response      : 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码

# 错误映射

types.Error 的错误码统一映射为 HTTP 状态码：UPSTREAM_ERROR → 502，
UPSTREAM_TIMEOUT → 504，RUN_NOT_FOUND → 404，ABORTED → 499，
其余未知错误 → 500。请求体限制 1 MB 并拒绝未知字段。
*/
package handlers
