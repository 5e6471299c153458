package llmlog

import (
	"log/slog"
	"time"

	"github.com/lgc202/promptlog/redact"
	"github.com/lgc202/promptlog/telemetry"
)

type Option func(*Client)

// WithSender sets where events and feedback go. Without it events are posted
// to telemetry.DefaultAPIPrefix.
func WithSender(s telemetry.Sender) Option {
	return func(c *Client) { c.sender = s }
}

// WithDispatcher replaces the dispatcher built from WithSender and
// WithDispatchPolicy. Feedback still goes through the sender.
func WithDispatcher(d *telemetry.Dispatcher) Option {
	return func(c *Client) { c.dispatcher = d }
}

// WithDispatchPolicy selects whether event delivery blocks the call that
// completes the response.
func WithDispatchPolicy(p telemetry.DispatchPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRedactor redacts params, responses and tool call arguments before an
// event leaves the process.
func WithRedactor(r redact.Redactor) Option {
	return func(c *Client) { c.redactor = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPromptTemplateName is used for calls whose Trace names no template.
func WithPromptTemplateName(name string) Option {
	return func(c *Client) { c.templateName = name }
}

// WithAllowUnnamedPrompts records calls that have no template name at all.
// Without it such calls are passed through untouched.
func WithAllowUnnamedPrompts(allow bool) Option {
	return func(c *Client) { c.allowUnnamed = allow }
}

func WithChatID(id string) Option {
	return func(c *Client) { c.chatID = id }
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithClock replaces time.Now for response time measurement.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFeedbackKeys replaces the random feedback key generator.
func WithFeedbackKeys(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.newFeedbackKey = next
		}
	}
}
