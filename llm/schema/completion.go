package schema

import "encoding/json"

// CompletionRequest 是旧版 text completion 请求体
type CompletionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Logprobs    *int     `json:"logprobs,omitempty"`
	User        string   `json:"user,omitempty"`

	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// Completion 既是非流式响应，也是流式响应中每个数据块的形状
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object,omitempty"`
	Created int64              `json:"created,omitempty"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
}

type CompletionChoice struct {
	Index        int             `json:"index"`
	Text         string          `json:"text"`
	FinishReason FinishReason    `json:"finish_reason,omitempty"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}
