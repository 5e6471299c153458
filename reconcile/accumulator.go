package reconcile

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/lgc202/promptlog/llm/schema"
)

// Accumulator folds streamed chunks into a Result. It is owned by a single
// Stream and is not safe for concurrent use.
type Accumulator struct {
	text    []string
	refusal []string

	// Tool-call slots keyed by the index the provider assigns.
	slots map[int]*toolSlot

	// Deprecated single function call, assembled like a slot.
	fn *toolSlot

	usage        *schema.Usage
	finishReason string
	logprobs     json.RawMessage
}

type toolSlot struct {
	id   string
	name string
	args []string
}

// AddText appends a content fragment.
func (a *Accumulator) AddText(s string) {
	if s != "" {
		a.text = append(a.text, s)
	}
}

// AddRefusal appends a refusal fragment.
func (a *Accumulator) AddRefusal(s string) {
	if s != "" {
		a.refusal = append(a.refusal, s)
	}
}

// AddToolCall routes a delta to the slot for its index. The first delta seen at
// an index opens the slot; later ones contribute argument text and only fill
// identity fields that are still empty.
func (a *Accumulator) AddToolCall(d schema.ToolCallDelta) {
	if a.slots == nil {
		a.slots = make(map[int]*toolSlot)
	}
	s, ok := a.slots[d.Index]
	if !ok {
		s = &toolSlot{}
		a.slots[d.Index] = s
	}
	s.merge(d.ID, d.Function)
}

// AddFunctionCall folds a deprecated function_call delta.
func (a *Accumulator) AddFunctionCall(fc schema.FunctionCall) {
	if a.fn == nil {
		a.fn = &toolSlot{}
	}
	a.fn.merge("", fc)
}

func (s *toolSlot) merge(id string, fc schema.FunctionCall) {
	if s.id == "" {
		s.id = id
	}
	if s.name == "" {
		s.name = fc.Name
	}
	if fc.Arguments != "" {
		s.args = append(s.args, fc.Arguments)
	}
}

func (a *Accumulator) SetUsage(u *schema.Usage) {
	if u != nil {
		cp := *u
		a.usage = &cp
	}
}

func (a *Accumulator) SetFinishReason(r string) {
	if r != "" {
		a.finishReason = r
	}
}

func (a *Accumulator) SetLogprobs(raw json.RawMessage) {
	if len(raw) > 0 && string(raw) != "null" {
		a.logprobs = slices.Clone(raw)
	}
}

// Result snapshots the accumulated state. The response text is the joined
// content; when there is none it falls back to the serialized function call,
// then to the serialized tool calls, matching the buffered priority.
func (a *Accumulator) Result() Result {
	res := Result{
		Usage:        a.usage,
		FinishReason: a.finishReason,
		Logprobs:     a.logprobs,
		Refusal:      strings.Join(a.refusal, ""),
	}

	indexes := make([]int, 0, len(a.slots))
	for i := range a.slots {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	for _, i := range indexes {
		s := a.slots[i]
		res.ToolCalls = append(res.ToolCalls, ToolCall{ID: s.id, Name: s.name, Arguments: strings.Join(s.args, "")})
	}

	text := strings.Join(a.text, "")
	switch {
	case text != "":
		res.Response = &text
	case a.fn != nil:
		res.Response = functionCallResponse(schema.FunctionCall{Name: a.fn.name, Arguments: strings.Join(a.fn.args, "")})
	case len(res.ToolCalls) > 0:
		wire := make([]schema.ToolCall, len(res.ToolCalls))
		for i, tc := range res.ToolCalls {
			wire[i] = schema.ToolCall{ID: tc.ID, Type: schema.ToolCallTypeFunction, Function: schema.FunctionCall{Name: tc.Name, Arguments: tc.Arguments}}
		}
		res.Response = toolCallsResponse(wire)
	default:
		res.Response = &text
	}
	return res
}

func functionCallResponse(fc schema.FunctionCall) *string {
	return marshalResponse(struct {
		FunctionCall schema.FunctionCall `json:"function_call"`
	}{fc})
}

func toolCallsResponse(calls []schema.ToolCall) *string {
	return marshalResponse(struct {
		ToolCalls []schema.ToolCall `json:"tool_calls"`
	}{calls})
}

func marshalResponse(v any) *string {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
