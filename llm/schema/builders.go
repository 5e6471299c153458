package schema

import (
	"encoding/json"
	"fmt"
)

// SystemMessage 创建系统消息
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage 创建用户消息
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage 创建助手消息
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage 创建工具调用结果消息
func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// ChatHistory 创建 chat 模板中的历史占位消息，content 为 "{variables...}"。
// 渲染时整条消息被替换为这些变量绑定的消息序列。
func ChatHistory(variables ...string) Message {
	content := ""
	for _, v := range variables {
		content += "{" + v + "}"
	}
	return Message{Role: RoleChatHistory, Content: content}
}

// NewFunctionTool 创建函数调用工具，parameters 为 JSON schema（任意可序列化的值或 json.RawMessage）
func NewFunctionTool(name, description string, parameters any) (Tool, error) {
	if name == "" {
		return Tool{}, fmt.Errorf("function name required")
	}

	fd := FunctionDefinition{Name: name, Description: description}
	switch p := parameters.(type) {
	case nil:
	case json.RawMessage:
		if !json.Valid(p) {
			return Tool{}, fmt.Errorf("parameters of %s: invalid json", name)
		}
		fd.Parameters = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return Tool{}, fmt.Errorf("marshal parameters: %w", err)
		}
		fd.Parameters = b
	}
	return Tool{Type: ToolTypeFunction, Function: fd}, nil
}

// Ptr 返回 v 的指针，便于填写可选请求参数
func Ptr[T any](v T) *T { return &v }
