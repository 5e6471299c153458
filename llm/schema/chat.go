package schema

import "encoding/json"

// FinishReason 表示对话结束的原因
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"           // 自然结束
	FinishReasonLength        FinishReason = "length"         // 达到最大长度
	FinishReasonToolCalls     FinishReason = "tool_calls"     // 调用工具
	FinishReasonFunctionCall  FinishReason = "function_call"  // 调用函数（已弃用）
	FinishReasonContentFilter FinishReason = "content_filter" // 内容过滤
)

// ChatRequest 是 OpenAI 兼容的 chat completion 请求体
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	N                *int     `json:"n,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Logprobs         *bool    `json:"logprobs,omitempty"`
	TopLogprobs      *int     `json:"top_logprobs,omitempty"`
	User             string   `json:"user,omitempty"`

	Tools      []Tool `json:"tools,omitempty"`
	ToolChoice any    `json:"tool_choice,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`

	// JSONSchema 是 provider 特定的 JSON schema 配置，当 Type 为 "json_schema" 时使用
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// StreamOptions 配置流式响应的行为。
type StreamOptions struct {
	// IncludeUsage 为 true 时，流的最后会多出一个只包含 usage 的块（choices 为空）。
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatChoice 表示一个生成的候选项
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason FinishReason    `json:"finish_reason"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

type ChatCompletion struct {
	ID                string       `json:"id"`
	Object            string       `json:"object,omitempty"`
	Created           int64        `json:"created,omitempty"`
	Model             string       `json:"model"`
	Choices           []ChatChoice `json:"choices"`
	Usage             *Usage       `json:"usage,omitempty"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
}
