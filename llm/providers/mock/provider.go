// Package mock provides a scripted llm.Provider for tests and demos.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/llm/schema"
)

// ErrNoScript is returned when a call arrives with no reply queued.
var ErrNoScript = errors.New("mock: no scripted reply")

type reply[T any] struct {
	value T
	err   error
}

type streamReply[T any] struct {
	chunks []T
	// err is returned instead of a stream; tail after the last chunk.
	err, tail error
}

// Provider replays queued replies in FIFO order per call kind and records every request.
type Provider struct {
	mu sync.Mutex

	chat             []reply[schema.ChatCompletion]
	chatStream       []streamReply[schema.ChatCompletionChunk]
	completion       []reply[schema.Completion]
	completionStream []streamReply[schema.Completion]

	chatRequests       []schema.ChatRequest
	completionRequests []schema.CompletionRequest
	chatStreams        []*llm.SliceStream[schema.ChatCompletionChunk]
	completionStreams  []*llm.SliceStream[schema.Completion]
}

var _ llm.Provider = (*Provider)(nil)

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "mock" }

// OnChat queues a buffered chat reply.
func (p *Provider) OnChat(resp schema.ChatCompletion, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chat = append(p.chat, reply[schema.ChatCompletion]{resp, err})
	return p
}

// OnChatStream queues a streamed chat reply. tail, when non-nil, is returned
// by Recv after the last chunk instead of io.EOF.
func (p *Provider) OnChatStream(chunks []schema.ChatCompletionChunk, tail error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatStream = append(p.chatStream, streamReply[schema.ChatCompletionChunk]{chunks: chunks, tail: tail})
	return p
}

// OnChatStreamError makes the next streaming chat call fail before any chunk.
func (p *Provider) OnChatStreamError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatStream = append(p.chatStream, streamReply[schema.ChatCompletionChunk]{err: err})
	return p
}

func (p *Provider) OnCompletion(resp schema.Completion, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completion = append(p.completion, reply[schema.Completion]{resp, err})
	return p
}

func (p *Provider) OnCompletionStream(chunks []schema.Completion, tail error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completionStream = append(p.completionStream, streamReply[schema.Completion]{chunks: chunks, tail: tail})
	return p
}

func (p *Provider) CreateChatCompletion(ctx context.Context, req schema.ChatRequest) (schema.ChatCompletion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatRequests = append(p.chatRequests, req)
	if err := ctx.Err(); err != nil {
		return schema.ChatCompletion{}, err
	}
	r, ok := pop(&p.chat)
	if !ok {
		return schema.ChatCompletion{}, ErrNoScript
	}
	return r.value, r.err
}

func (p *Provider) CreateChatCompletionStream(ctx context.Context, req schema.ChatRequest) (llm.Stream[schema.ChatCompletionChunk], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatRequests = append(p.chatRequests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := pop(&p.chatStream)
	if !ok {
		return nil, ErrNoScript
	}
	if r.err != nil {
		return nil, r.err
	}
	s := &llm.SliceStream[schema.ChatCompletionChunk]{Chunks: r.chunks, Err: r.tail}
	p.chatStreams = append(p.chatStreams, s)
	return s, nil
}

func (p *Provider) CreateCompletion(ctx context.Context, req schema.CompletionRequest) (schema.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completionRequests = append(p.completionRequests, req)
	if err := ctx.Err(); err != nil {
		return schema.Completion{}, err
	}
	r, ok := pop(&p.completion)
	if !ok {
		return schema.Completion{}, ErrNoScript
	}
	return r.value, r.err
}

func (p *Provider) CreateCompletionStream(ctx context.Context, req schema.CompletionRequest) (llm.Stream[schema.Completion], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completionRequests = append(p.completionRequests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := pop(&p.completionStream)
	if !ok {
		return nil, ErrNoScript
	}
	if r.err != nil {
		return nil, r.err
	}
	s := &llm.SliceStream[schema.Completion]{Chunks: r.chunks, Err: r.tail}
	p.completionStreams = append(p.completionStreams, s)
	return s, nil
}

// ChatRequests returns a copy of every chat request received so far.
func (p *Provider) ChatRequests() []schema.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schema.ChatRequest(nil), p.chatRequests...)
}

func (p *Provider) CompletionRequests() []schema.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schema.CompletionRequest(nil), p.completionRequests...)
}

// ChatStreams returns the streams handed out so far, for closure assertions.
func (p *Provider) ChatStreams() []*llm.SliceStream[schema.ChatCompletionChunk] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.SliceStream[schema.ChatCompletionChunk](nil), p.chatStreams...)
}

func (p *Provider) CompletionStreams() []*llm.SliceStream[schema.Completion] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.SliceStream[schema.Completion](nil), p.completionStreams...)
}

func pop[T any](q *[]T) (T, bool) {
	var zero T
	if len(*q) == 0 {
		return zero, false
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v, true
}
