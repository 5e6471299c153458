package mock

import "github.com/lgc202/promptlog/llm/schema"

// TextChunks builds one chat chunk per text fragment, then a finish chunk.
func TextChunks(finish schema.FinishReason, parts ...string) []schema.ChatCompletionChunk {
	out := make([]schema.ChatCompletionChunk, 0, len(parts)+1)
	for _, p := range parts {
		out = append(out, schema.ChatCompletionChunk{
			ID:      "chatcmpl-mock",
			Model:   "mock",
			Choices: []schema.ChunkChoice{{Delta: schema.ChunkDelta{Content: p}}},
		})
	}
	if finish != "" {
		out = append(out, schema.ChatCompletionChunk{
			ID:      "chatcmpl-mock",
			Model:   "mock",
			Choices: []schema.ChunkChoice{{FinishReason: finish}},
		})
	}
	return out
}

// ChatReply builds a buffered chat completion whose single choice carries text.
func ChatReply(text string) schema.ChatCompletion {
	return schema.ChatCompletion{
		ID:    "chatcmpl-mock",
		Model: "mock",
		Choices: []schema.ChatChoice{{
			Message:      schema.ResponseMessage{Role: schema.RoleAssistant, Content: &text},
			FinishReason: schema.FinishReasonStop,
		}},
	}
}
