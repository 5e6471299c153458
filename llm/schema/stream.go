package schema

import "encoding/json"

// ChatCompletionChunk 是流式 chat completion 的一个数据块
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`

	// Usage 仅在开启 stream_options.include_usage 时出现在最后一个块中
	Usage *Usage `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index        int             `json:"index"`
	Delta        ChunkDelta      `json:"delta"`
	FinishReason FinishReason    `json:"finish_reason,omitempty"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

// ChunkDelta 增量内容
type ChunkDelta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Refusal string `json:"refusal,omitempty"`

	FunctionCall *FunctionCall   `json:"function_call,omitempty"`
	ToolCalls    []ToolCallDelta `json:"tool_calls,omitempty"`
}
