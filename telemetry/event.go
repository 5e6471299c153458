package telemetry

import (
	"encoding/json"

	"github.com/lgc202/promptlog/llm/schema"
	"github.com/lgc202/promptlog/reconcile"
)

// Event is one observed LLM exchange as the collector expects it.
type Event struct {
	// Params are the template variables the prompt was rendered with.
	Params map[string]any `json:"params"`

	Response        *string          `json:"response"`
	RawResponse     any              `json:"rawResponse,omitempty"`
	ResponseTime    int64            `json:"responseTime"` // ms
	ResponseErrors  []string         `json:"responseErrors,omitempty"`
	ResponseMetrics *ResponseMetrics `json:"responseMetrics,omitempty"`

	ToolCalls []reconcile.ToolCall `json:"toolCalls,omitempty"`

	// Unsubstituted prompt. Exactly one of the two is set.
	PromptTemplateText *string `json:"promptTemplateText,omitempty"`
	PromptTemplateChat any     `json:"promptTemplateChat,omitempty"`

	PromptTemplateName string `json:"promptTemplateName,omitempty"`
	APIName            string `json:"apiName,omitempty"`
	APIKey             string `json:"apiKey,omitempty"`
	ChatID             string `json:"chatId,omitempty"`
	ParentEventID      string `json:"parentEventId,omitempty"`
	ChainID            string `json:"chainId,omitempty"`
	FeedbackKey        string `json:"feedbackKey,omitempty"`

	Context         map[string]any `json:"context,omitempty"`
	Tools           []schema.Tool  `json:"tools,omitempty"`
	ModelParameters map[string]any `json:"modelParameters,omitempty"`

	// The collector rejects events without a prompt object.
	Prompt struct{} `json:"prompt"`
}

// ResponseMetrics carries the response-level metadata of an exchange.
type ResponseMetrics struct {
	Usage        *schema.Usage   `json:"usage,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
	Refusal      string          `json:"refusal,omitempty"`
}

// MetricsOf builds ResponseMetrics from a reconciled result, or returns nil
// when the result carries no metadata at all.
func MetricsOf(r reconcile.Result) *ResponseMetrics {
	if r.Usage == nil && r.FinishReason == "" && len(r.Logprobs) == 0 && r.Refusal == "" {
		return nil
	}
	return &ResponseMetrics{Usage: r.Usage, FinishReason: r.FinishReason, Logprobs: r.Logprobs, Refusal: r.Refusal}
}

// Feedback rates a previously logged response, addressed by its feedback key.
type Feedback struct {
	FeedbackKey    string   `json:"feedback_key"`
	Rating         *float64 `json:"rating,omitempty"` // 0..1
	BetterResponse string   `json:"better_response,omitempty"`
	IsDeleted      bool     `json:"is_deleted,omitempty"`
	APIKey         string   `json:"apiKey,omitempty"`
}
