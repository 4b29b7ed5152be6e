/*
包 image 提供 Image Generator 工具背后的文生图能力。

# 核心接口

  - Provider：Generate（文生图）与 Name。
  - GenerateRequest / GenerateResponse：请求与响应模型，支持 prompt、
    尺寸、质量与风格。

# 实现

  - OpenAIProvider：OpenAI Images API（dall-e-3 / gpt-image-1），
    上游错误映射为 *llm.Error，可重试性由 HTTP 状态决定。
*/
package image
