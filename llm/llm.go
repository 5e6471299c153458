package llm

import (
	"context"

	"github.com/lgc202/promptlog/llm/schema"
)

// Provider is the minimal interface an LLM backend must implement.
//
// Implementations are expected to:
//   - treat requests as read-only
//   - return an *LLMError (or wrap one) for provider/HTTP errors
//   - honor ctx cancellation, including for the lifetime of a returned Stream
type Provider interface {
	CreateChatCompletion(ctx context.Context, req schema.ChatRequest) (schema.ChatCompletion, error)
	CreateChatCompletionStream(ctx context.Context, req schema.ChatRequest) (Stream[schema.ChatCompletionChunk], error)
	CreateCompletion(ctx context.Context, req schema.CompletionRequest) (schema.Completion, error)
	CreateCompletionStream(ctx context.Context, req schema.CompletionRequest) (Stream[schema.Completion], error)
}

// Namer is an optional interface for discovering which backend a Provider talks to.
type Namer interface {
	Name() string
}

// NameOf returns p's name, or "unknown".
func NameOf(p Provider) string {
	if n, ok := p.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return "unknown"
}
