package openai_compat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lgc202/promptlog/httpx"
	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/llm/schema"
)

// Provider talks to any server that implements the OpenAI
// /v1/chat/completions and /v1/completions endpoints.
type Provider struct {
	name string

	apiKey         string
	model          string
	chatPath       string
	completionPath string
	streamUsage    bool

	cfg    httpx.Config
	hc     *httpx.Client
	logger *slog.Logger
}

var _ llm.Provider = (*Provider)(nil)

func New(apiKey string, opts ...Option) (*Provider, error) {
	cfg := httpx.DefaultConfig()
	cfg.BaseURL = "https://api.openai.com"
	// Streams may stay open far longer than any fixed timeout; ctx bounds them.
	cfg.Timeout = 0

	p := &Provider{
		name:           "openai_compat",
		apiKey:         apiKey,
		chatPath:       "/v1/chat/completions",
		completionPath: "/v1/completions",
		streamUsage:    true,
		cfg:            cfg,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	hc, err := httpx.NewWithConfig(p.cfg)
	if err != nil {
		return nil, err
	}
	p.hc = hc.WithHooks(nil, []httpx.AfterHook{httpx.LogHook(p.logger)})
	return p, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) CreateChatCompletion(ctx context.Context, req schema.ChatRequest) (schema.ChatCompletion, error) {
	if err := p.validateChat(&req); err != nil {
		return schema.ChatCompletion{}, err
	}
	req.Stream = false
	req.StreamOptions = nil

	var out schema.ChatCompletion
	if err := p.doJSON(ctx, p.chatPath, req, &out); err != nil {
		return schema.ChatCompletion{}, err
	}
	return out, nil
}

func (p *Provider) CreateChatCompletionStream(ctx context.Context, req schema.ChatRequest) (llm.Stream[schema.ChatCompletionChunk], error) {
	if err := p.validateChat(&req); err != nil {
		return nil, err
	}
	req.Stream = true
	if req.StreamOptions == nil && p.streamUsage {
		req.StreamOptions = &schema.StreamOptions{IncludeUsage: true}
	}

	resp, err := p.doStream(ctx, p.chatPath, req)
	if err != nil {
		return nil, err
	}
	return newStream[schema.ChatCompletionChunk](p.name, resp), nil
}

func (p *Provider) CreateCompletion(ctx context.Context, req schema.CompletionRequest) (schema.Completion, error) {
	if err := p.validateCompletion(&req); err != nil {
		return schema.Completion{}, err
	}
	req.Stream = false
	req.StreamOptions = nil

	var out schema.Completion
	if err := p.doJSON(ctx, p.completionPath, req, &out); err != nil {
		return schema.Completion{}, err
	}
	return out, nil
}

func (p *Provider) CreateCompletionStream(ctx context.Context, req schema.CompletionRequest) (llm.Stream[schema.Completion], error) {
	if err := p.validateCompletion(&req); err != nil {
		return nil, err
	}
	req.Stream = true
	if req.StreamOptions == nil && p.streamUsage {
		req.StreamOptions = &schema.StreamOptions{IncludeUsage: true}
	}

	resp, err := p.doStream(ctx, p.completionPath, req)
	if err != nil {
		return nil, err
	}
	return newStream[schema.Completion](p.name, resp), nil
}

func (p *Provider) doJSON(ctx context.Context, path string, body, dst any) error {
	req, err := p.hc.NewJSONRequest(ctx, http.MethodPost, path, body, httpx.WithBearerToken(p.apiKey))
	if err != nil {
		return err
	}
	if _, err := p.hc.DoJSONInto(req, dst); err != nil {
		return p.mapError(err)
	}
	return nil
}

func (p *Provider) doStream(ctx context.Context, path string, body any) (*http.Response, error) {
	req, err := p.hc.NewJSONRequest(ctx, http.MethodPost, path, body,
		httpx.WithBearerToken(p.apiKey),
		httpx.WithHeader("Accept", "text/event-stream"),
	)
	if err != nil {
		return nil, err
	}
	resp, err := p.hc.DoStatus(req)
	if err != nil {
		return nil, p.mapError(err)
	}
	if resp.Body == nil {
		return nil, &llm.LLMError{Provider: p.name, Kind: llm.ErrKindParse, Message: "empty stream body", Cause: io.ErrUnexpectedEOF}
	}
	return resp, nil
}

func (p *Provider) validateChat(req *schema.ChatRequest) error {
	if req.Model == "" {
		req.Model = p.model
	}
	if req.Model == "" {
		return errors.New("llm: model is required")
	}
	if len(req.Messages) == 0 {
		return errors.New("llm: messages is required")
	}
	return nil
}

func (p *Provider) validateCompletion(req *schema.CompletionRequest) error {
	if req.Model == "" {
		req.Model = p.model
	}
	if req.Model == "" {
		return errors.New("llm: model is required")
	}
	return nil
}
