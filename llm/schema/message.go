package schema

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"

	// RoleChatHistory 只出现在 chat 模板中，渲染时被替换为绑定的消息序列，不会发送给模型
	RoleChatHistory Role = "chat_history"
)

// Message 是请求中的一条对话消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// 可选字段，并非所有 provider 都支持/接受这些字段
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	// 助手历史消息中的工具调用（多轮工具调用时回传给模型）
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// ResponseMessage 是模型返回的助手消息。
//
// Content 和 Refusal 可能为 null，因此使用指针区分 "空字符串" 与 "未返回"。
type ResponseMessage struct {
	Role    Role    `json:"role"`
	Content *string `json:"content"`
	Refusal *string `json:"refusal,omitempty"`

	// FunctionCall 是已弃用的单函数调用字段，部分旧模型仍会返回
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
}

// Text returns the message content, or "" when the model returned none.
func (m ResponseMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}
