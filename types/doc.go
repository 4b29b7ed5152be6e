// Copyright (c) AgentLoop Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentloop 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、api 等上层模块
提供统一的错误码与 context 传播工具，避免循环依赖。

# 核心类型

  - Error / ErrorCode: 结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - WithTraceID / WithRunID / WithSessionID 等 context 传播函数
*/
package types
