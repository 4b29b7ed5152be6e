/*
Package testutil 提供 AgentLoop 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / WaitFor
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: ScriptedProvider（按脚本逐次返回生成文本的 LLM Provider）、
    工具函数桩（回显、超时、失败、panic）以及支持错误注入的 memory.Store
  - testutil/fixtures: 预置的 ReAct 生成文本与 ChatResponse 工厂

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewScriptedProvider(fixtures.ActionGeneration("Search", "sunset"))
	resp, err := provider.Completion(ctx, req)
*/
package testutil
