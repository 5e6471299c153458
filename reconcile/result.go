package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/lgc202/promptlog/llm/schema"
)

// Shape selects how responses are interpreted. It is fixed once per call.
type Shape int

const (
	ShapeChat Shape = iota
	ShapeCompletion
)

func (s Shape) String() string {
	switch s {
	case ShapeChat:
		return "chat"
	case ShapeCompletion:
		return "completion"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ToolCall is a fully assembled tool invocation. Arguments is the raw JSON text
// produced by the model; it is not validated.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result summarizes one observed response. It is never mutated after delivery.
type Result struct {
	// Response is nil when the response carried nothing representable.
	Response     *string         `json:"response"`
	ToolCalls    []ToolCall      `json:"toolCalls,omitempty"`
	Usage        *schema.Usage   `json:"usage,omitempty"`
	FinishReason string          `json:"finishReason,omitempty"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
	Refusal      string          `json:"refusal,omitempty"`
}

// Text returns the response text or "".
func (r Result) Text() string {
	if r.Response == nil {
		return ""
	}
	return *r.Response
}

// Tagged pairs a provider value with the feedback key of the exchange it belongs to.
type Tagged[T any] struct {
	Value       T
	FeedbackKey string
}
