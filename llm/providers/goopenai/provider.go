// Package goopenai adapts github.com/sashabaranov/go-openai to llm.Provider.
//
// Requests and responses cross the boundary through their OpenAI wire JSON:
// both sides are tagged for the same document so no field is mapped by hand.
package goopenai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/llm/schema"
)

type Provider struct {
	name   string
	model  string
	client *openai.Client
}

var _ llm.Provider = (*Provider)(nil)

type Option func(*settings)

type settings struct {
	name      string
	model     string
	baseURL   string
	orgID     string
	transport http.RoundTripper
}

func WithProviderName(name string) Option { return func(s *settings) { s.name = name } }

// WithBaseURL sets the API root including the version segment, e.g. "https://api.openai.com/v1".
func WithBaseURL(u string) Option { return func(s *settings) { s.baseURL = u } }

func WithOrganization(id string) Option { return func(s *settings) { s.orgID = id } }

func WithTransport(rt http.RoundTripper) Option { return func(s *settings) { s.transport = rt } }

func WithDefaultModel(model string) Option { return func(s *settings) { s.model = model } }

func New(apiKey string, opts ...Option) *Provider {
	s := settings{name: "openai"}
	for _, o := range opts {
		if o != nil {
			o(&s)
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	if s.orgID != "" {
		cfg.OrgID = s.orgID
	}
	if s.transport != nil {
		cfg.HTTPClient = &http.Client{Transport: s.transport}
	}
	return &Provider{name: s.name, model: s.model, client: openai.NewClientWithConfig(cfg)}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) CreateChatCompletion(ctx context.Context, req schema.ChatRequest) (schema.ChatCompletion, error) {
	req.Stream, req.StreamOptions = false, nil
	if req.Model == "" {
		req.Model = p.model
	}
	oreq, err := convert[openai.ChatCompletionRequest](p.name, req)
	if err != nil {
		return schema.ChatCompletion{}, err
	}
	resp, err := p.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return schema.ChatCompletion{}, p.mapError(err)
	}
	return convert[schema.ChatCompletion](p.name, resp)
}

func (p *Provider) CreateChatCompletionStream(ctx context.Context, req schema.ChatRequest) (llm.Stream[schema.ChatCompletionChunk], error) {
	req.Stream = true
	if req.Model == "" {
		req.Model = p.model
	}
	if req.StreamOptions == nil {
		req.StreamOptions = &schema.StreamOptions{IncludeUsage: true}
	}
	oreq, err := convert[openai.ChatCompletionRequest](p.name, req)
	if err != nil {
		return nil, err
	}
	s, err := p.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, p.mapError(err)
	}
	return &stream[openai.ChatCompletionStreamResponse, schema.ChatCompletionChunk]{p: p, recv: s.Recv, close: s.Close}, nil
}

func (p *Provider) CreateCompletion(ctx context.Context, req schema.CompletionRequest) (schema.Completion, error) {
	req.Stream, req.StreamOptions = false, nil
	if req.Model == "" {
		req.Model = p.model
	}
	oreq, err := convert[openai.CompletionRequest](p.name, req)
	if err != nil {
		return schema.Completion{}, err
	}
	resp, err := p.client.CreateCompletion(ctx, oreq)
	if err != nil {
		return schema.Completion{}, p.mapError(err)
	}
	return convert[schema.Completion](p.name, resp)
}

func (p *Provider) CreateCompletionStream(ctx context.Context, req schema.CompletionRequest) (llm.Stream[schema.Completion], error) {
	// go-openai sets stream itself and has no stream_options for completions.
	req.StreamOptions = nil
	if req.Model == "" {
		req.Model = p.model
	}
	oreq, err := convert[openai.CompletionRequest](p.name, req)
	if err != nil {
		return nil, err
	}
	s, err := p.client.CreateCompletionStream(ctx, oreq)
	if err != nil {
		return nil, p.mapError(err)
	}
	return &stream[openai.CompletionResponse, schema.Completion]{p: p, recv: s.Recv, close: s.Close}, nil
}

// convert re-decodes src into D through JSON.
func convert[D any](provider string, src any) (D, error) {
	var dst D
	b, err := json.Marshal(src)
	if err != nil {
		return dst, &llm.LLMError{Provider: provider, Kind: llm.ErrKindParse, Message: "encode", Cause: err}
	}
	if err := json.Unmarshal(b, &dst); err != nil {
		return dst, &llm.LLMError{Provider: provider, Kind: llm.ErrKindParse, Message: "decode", Raw: b, Cause: err}
	}
	return dst, nil
}

func (p *Provider) mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindCanceled, Message: "request canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindTimeout, Message: "request deadline exceeded", Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		switch c := apiErr.Code.(type) {
		case string:
			code = c
		case nil:
		default:
			b, _ := json.Marshal(c)
			code = string(b)
		}
		return &llm.LLMError{
			Provider:     p.name,
			Kind:         llm.KindFromStatus(apiErr.HTTPStatusCode),
			HTTPStatus:   apiErr.HTTPStatusCode,
			ProviderCode: code,
			Message:      apiErr.Message,
			Cause:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.LLMError{
			Provider:   p.name,
			Kind:       llm.KindFromStatus(reqErr.HTTPStatusCode),
			HTTPStatus: reqErr.HTTPStatusCode,
			Message:    http.StatusText(reqErr.HTTPStatusCode),
			Cause:      err,
		}
	}
	return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindUnknown, Message: err.Error(), Cause: err}
}
