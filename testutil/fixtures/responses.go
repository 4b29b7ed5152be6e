// =============================================================================
// 📦 测试数据工厂 - ReAct 生成文本
// =============================================================================
package fixtures

import "fmt"

// ActionGeneration 返回一段调用工具的生成文本
func ActionGeneration(tool, input string) string {
	return fmt.Sprintf("Thought: Do I need to use a tool? Yes\nAction: %s\nAction Input: %s", tool, input)
}

// FinalGeneration 返回一段最终回答
func FinalGeneration(answer string) string {
	return "Thought: Do I need to use a tool? No\nFinal Answer: " + answer
}

// MalformedGeneration 既没有 Action 也没有 Final Answer
const MalformedGeneration = "Thought: I am not sure what to do here."

// MissingInputGeneration 有 Action 无 Action Input
const MissingInputGeneration = "Thought: Do I need to use a tool? Yes\nAction: Search"
