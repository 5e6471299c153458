package llmlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/llm/schema"
	"github.com/lgc202/promptlog/reconcile"
	"github.com/lgc202/promptlog/redact"
	"github.com/lgc202/promptlog/telemetry"
)

// Client is an instrumented llm.Provider. It is safe for concurrent use.
type Client struct {
	provider     llm.Provider
	providerName string

	sender     telemetry.Sender
	dispatcher *telemetry.Dispatcher
	ownsDisp   bool
	policy     telemetry.DispatchPolicy
	redactor   redact.Redactor
	logger     *slog.Logger

	templateName string
	allowUnnamed bool
	chatID       string
	apiKey       string

	now            func() time.Time
	newFeedbackKey func() string
}

// Wrap instruments provider.
func Wrap(provider llm.Provider, opts ...Option) *Client {
	c := &Client{
		provider:       provider,
		providerName:   llm.NameOf(provider),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:            time.Now,
		newFeedbackKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sender == nil {
		hs, err := telemetry.NewHTTPSender(
			telemetry.WithDefaultAPIKey(c.apiKey),
			telemetry.WithSenderLogger(c.logger),
		)
		if err != nil {
			c.logger.Warn("telemetry disabled", slog.Any("error", err))
			c.sender = discard{}
		} else {
			c.sender = hs
		}
	}
	if c.dispatcher == nil {
		c.dispatcher = telemetry.NewDispatcher(c.sender,
			telemetry.WithPolicy(c.policy),
			telemetry.WithDispatcherLogger(c.logger),
		)
		c.ownsDisp = true
	}
	return c
}

// Provider returns the wrapped provider.
func (c *Client) Provider() llm.Provider { return c.provider }

// CreateChatCompletion renders req's template, calls the provider and returns
// its response tagged with the feedback key. Template errors are returned
// before the provider is contacted; provider errors are returned unchanged.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatRequest) (reconcile.Tagged[schema.ChatCompletion], error) {
	wire, cl, err := c.prepareChat(req)
	if err != nil {
		return reconcile.Tagged[schema.ChatCompletion]{}, err
	}
	wire.Stream, wire.StreamOptions = false, nil

	start := c.now()
	resp, err := c.provider.CreateChatCompletion(ctx, wire)
	if !cl.record {
		return reconcile.Tagged[schema.ChatCompletion]{Value: resp}, err
	}

	tagged, fut, err := reconcile.Chat.Static(resp, err, cl.feedbackKey)
	var raw any
	if err == nil {
		raw = resp
	}
	c.observe(ctx, cl, start, fut, raw)
	return tagged, err
}

// CreateChatCompletionStream is the streaming variant. Nothing is read from
// the provider until the caller pulls from the returned stream, and the event
// is dispatched once the stream is drained, fails, or is closed.
//
// Usage is requested (stream_options.include_usage) unless the request sets
// StreamOptions itself, so streamed events carry token counts on every provider.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req ChatRequest) (*reconcile.Stream[schema.ChatCompletionChunk], error) {
	wire, cl, err := c.prepareChat(req)
	if err != nil {
		return nil, err
	}
	wire.Stream = true
	wire.StreamOptions = withUsage(wire.StreamOptions)

	start := c.now()
	src, err := c.provider.CreateChatCompletionStream(ctx, wire)
	s, fut, err := reconcile.Chat.Stream(src, err, cl.feedbackKey)
	if cl.record {
		c.observe(ctx, cl, start, fut, nil)
	}
	return s, err
}

func (c *Client) CreateCompletion(ctx context.Context, req CompletionRequest) (reconcile.Tagged[schema.Completion], error) {
	wire, cl, err := c.prepareCompletion(req)
	if err != nil {
		return reconcile.Tagged[schema.Completion]{}, err
	}
	wire.Stream, wire.StreamOptions = false, nil

	start := c.now()
	resp, err := c.provider.CreateCompletion(ctx, wire)
	if !cl.record {
		return reconcile.Tagged[schema.Completion]{Value: resp}, err
	}

	tagged, fut, err := reconcile.Completion.Static(resp, err, cl.feedbackKey)
	var raw any
	if err == nil {
		raw = resp
	}
	c.observe(ctx, cl, start, fut, raw)
	return tagged, err
}

// CreateCompletionStream requests usage the same way CreateChatCompletionStream does.
func (c *Client) CreateCompletionStream(ctx context.Context, req CompletionRequest) (*reconcile.Stream[schema.Completion], error) {
	wire, cl, err := c.prepareCompletion(req)
	if err != nil {
		return nil, err
	}
	wire.Stream = true
	wire.StreamOptions = withUsage(wire.StreamOptions)

	start := c.now()
	src, err := c.provider.CreateCompletionStream(ctx, wire)
	s, fut, err := reconcile.Completion.Stream(src, err, cl.feedbackKey)
	if cl.record {
		c.observe(ctx, cl, start, fut, nil)
	}
	return s, err
}

// SendFeedback reports feedback for a previously returned feedback key.
func (c *Client) SendFeedback(ctx context.Context, fb telemetry.Feedback) error {
	if fb.APIKey == "" {
		fb.APIKey = c.apiKey
	}
	return c.sender.SendFeedback(ctx, fb)
}

// Close waits for queued events to be delivered.
func (c *Client) Close(ctx context.Context) error {
	if !c.ownsDisp {
		return nil
	}
	return c.dispatcher.Close(ctx)
}

// observe dispatches an event once fut settles. For streams that happens on
// the goroutine that finishes the stream.
func (c *Client) observe(ctx context.Context, cl call, start time.Time, fut *reconcile.Future, raw any) {
	// The caller's context often ends with the call; delivery must outlive it.
	ctx = context.WithoutCancel(ctx)
	fut.OnSettle(func(res reconcile.Result, err error) {
		ev := c.buildEvent(cl, res, err, c.now().Sub(start), raw)
		c.dispatcher.Dispatch(ctx, ev)
	})
}

func (c *Client) buildEvent(cl call, res reconcile.Result, callErr error, elapsed time.Duration, raw any) telemetry.Event {
	tr := cl.trace
	ev := telemetry.Event{
		Params:             tr.TemplateParams,
		RawResponse:        raw,
		ResponseTime:       elapsed.Milliseconds(),
		PromptTemplateText: cl.promptText,
		PromptTemplateChat: cl.promptChat,
		PromptTemplateName: cl.templateName,
		APIName:            cl.templateName,
		APIKey:             firstNonEmpty(tr.APIKey, c.apiKey),
		ChatID:             firstNonEmpty(tr.ChatID, c.chatID),
		ParentEventID:      tr.ParentEventID,
		ChainID:            firstNonEmpty(tr.ChainID, tr.ParentEventID),
		FeedbackKey:        cl.feedbackKey,
		Context:            tr.Context,
		Tools:              cl.tools,
		ModelParameters:    cl.modelParams,
	}
	if ev.Params == nil {
		ev.Params = map[string]any{}
	}

	if callErr != nil {
		ev.ResponseErrors = responseErrors(callErr)
	} else {
		ev.Response = res.Response
		ev.ResponseMetrics = telemetry.MetricsOf(res)
		ev.ToolCalls = res.ToolCalls
	}

	if c.redactor != nil {
		c.redactEvent(&ev)
	}
	return ev
}

// redactEvent is best effort: a part that fails to redact is logged and sent
// as is.
func (c *Client) redactEvent(ev *telemetry.Event) {
	if p, err := c.redactor.Redact(ev.Params); err != nil {
		c.logger.Warn("failed to redact params", slog.Any("error", err))
	} else if m, ok := p.(map[string]any); ok {
		ev.Params = m
	}

	if ev.Response != nil {
		if r, err := c.redactor.Redact(*ev.Response); err != nil {
			c.logger.Warn("failed to redact response", slog.Any("error", err))
		} else if s, ok := r.(string); ok {
			ev.Response = &s
		}
	}

	if len(ev.ToolCalls) > 0 {
		calls := make([]reconcile.ToolCall, len(ev.ToolCalls))
		copy(calls, ev.ToolCalls)
		for i := range calls {
			r, err := c.redactor.Redact(calls[i].Arguments)
			if err != nil {
				c.logger.Warn("failed to redact tool call arguments", slog.Any("error", err))
				continue
			}
			if s, ok := r.(string); ok {
				calls[i].Arguments = s
			}
		}
		ev.ToolCalls = calls
	}

	// The raw response repeats the text above.
	ev.RawResponse = nil
}

func responseErrors(err error) []string {
	out := []string{err.Error()}
	var le *llm.LLMError
	if errors.As(err, &le) && len(le.Raw) > 0 {
		out = append(out, string(le.Raw))
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func withUsage(o *schema.StreamOptions) *schema.StreamOptions {
	if o != nil {
		return o
	}
	return &schema.StreamOptions{IncludeUsage: true}
}

type discard struct{}

func (discard) SendEvent(context.Context, telemetry.Event) error       { return nil }
func (discard) SendFeedback(context.Context, telemetry.Feedback) error { return nil }
