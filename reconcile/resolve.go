package reconcile

import "github.com/lgc202/promptlog/llm/schema"

// resolveChat derives a Result from a buffered chat completion using the first
// choice. The response text is picked in priority order, first match wins:
//
//  1. message content
//  2. deprecated function_call, as {"function_call": ...}
//  3. tool_calls, as {"tool_calls": [...]}
//
// ToolCalls is filled whenever the message carries tool calls.
func resolveChat(resp schema.ChatCompletion) Result {
	res := Result{Usage: resp.Usage}
	if len(resp.Choices) == 0 {
		return res
	}
	c := resp.Choices[0]
	msg := c.Message

	res.FinishReason = string(c.FinishReason)
	res.Logprobs = nullToNil(c.Logprobs)
	if msg.Refusal != nil {
		res.Refusal = *msg.Refusal
	}
	for _, tc := range msg.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	switch {
	case msg.Content != nil && *msg.Content != "":
		text := *msg.Content
		res.Response = &text
	case msg.FunctionCall != nil:
		res.Response = functionCallResponse(*msg.FunctionCall)
	case len(msg.ToolCalls) > 0:
		res.Response = toolCallsResponse(msg.ToolCalls)
	}
	return res
}

// resolveCompletion derives a Result from a buffered text completion.
func resolveCompletion(resp schema.Completion) Result {
	res := Result{Usage: resp.Usage}
	if len(resp.Choices) == 0 {
		return res
	}
	c := resp.Choices[0]
	res.FinishReason = string(c.FinishReason)
	res.Logprobs = nullToNil(c.Logprobs)
	if c.Text != "" {
		text := c.Text
		res.Response = &text
	}
	return res
}

// foldChat applies one streamed chat chunk. Only choice 0 contributes.
func foldChat(a *Accumulator, chunk schema.ChatCompletionChunk) {
	a.SetUsage(chunk.Usage)
	for _, c := range chunk.Choices {
		if c.Index != 0 {
			continue
		}
		a.AddText(c.Delta.Content)
		a.AddRefusal(c.Delta.Refusal)
		for _, d := range c.Delta.ToolCalls {
			a.AddToolCall(d)
		}
		if c.Delta.FunctionCall != nil {
			a.AddFunctionCall(*c.Delta.FunctionCall)
		}
		a.SetFinishReason(string(c.FinishReason))
		a.SetLogprobs(c.Logprobs)
	}
}

// foldCompletion applies one streamed completion chunk. Only choice 0 contributes.
func foldCompletion(a *Accumulator, chunk schema.Completion) {
	a.SetUsage(chunk.Usage)
	for _, c := range chunk.Choices {
		if c.Index != 0 {
			continue
		}
		a.AddText(c.Text)
		a.SetFinishReason(string(c.FinishReason))
		a.SetLogprobs(c.Logprobs)
	}
}

func nullToNil(raw []byte) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
