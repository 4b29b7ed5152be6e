/*
包 llm 提供 agentloop 的模型接入层。

# 概述

ReAct 循环只需要一次同步补全：把组装好的提示发给模型，拿回一段文本，
并通过 Stop 序列让模型在 "Action Input:" 之后交还控制权。本包定义
这一最小契约，上层（agent 包）只依赖 [Provider]，不感知具体服务商。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name

# 核心类型

  - [ChatRequest] / [ChatResponse]：请求与响应
  - [Message] / [Role]：消息与角色
  - [Error] / [ErrorCode]：带 HTTP 状态与可重试标记的上游错误

# 子包

  - providers/openaicompat：OpenAI 兼容 HTTP 实现
  - image：图像生成 Provider（Image Generator 工具后端）
  - retry：指数退避重试
  - tokenizer：Token 计数
  - tools：工具注册表与调用器
*/
package llm
