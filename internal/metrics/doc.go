/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、LLM、
Agent 运行与工具调用四个维度。

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace
隔离。它同时满足 agent.Metrics 与 tools.Recorder，可直接注入执行器
与工具调用器。

  - HTTP：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM：按 model/status 的请求数、耗时与 prompt token 数。
  - Agent：按终止原因的运行数、耗时与迭代次数，以及解析失败计数。
  - 工具：按 tool/status 的调用数与耗时。
*/
package metrics
