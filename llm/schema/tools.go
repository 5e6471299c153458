package schema

import "encoding/json"

type ToolCallType string

const (
	ToolCallTypeFunction ToolCallType = "function"
)

type ToolCall struct {
	ID       string       `json:"id"`
	Type     ToolCallType `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall 函数名及其参数（参数为 JSON 文本，模型不保证其合法性）
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolCallDelta 是流式响应中的工具调用片段。
//
// 同一个 Index 的第一个片段携带 ID 和函数名，后续片段只携带参数的增量文本。
type ToolCallDelta struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     ToolCallType `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type ToolType string

const (
	ToolTypeFunction ToolType = "function"
)

type Tool struct {
	Type     ToolType           `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`

	// Strict 是 provider 依赖的标志，用于结构化输出保证
	Strict bool `json:"strict,omitempty"`
}
