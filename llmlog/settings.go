package llmlog

import (
	"fmt"
	"log/slog"

	"github.com/lgc202/promptlog/config"
	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/redact"
	"github.com/lgc202/promptlog/telemetry"
)

// FromSettings wraps provider with the telemetry stack described by s: an
// HTTP sender for the configured collector, outbound rate limiting, the
// redactor when redact_pii is set and awaited delivery when wait_for_event is
// set. opts are applied last.
func FromSettings(provider llm.Provider, s config.Settings, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	sender, err := telemetry.NewHTTPSender(
		telemetry.WithEndpoints(telemetry.Endpoints{
			ReportingURL: s.ReportingURL,
			FeedbackURL:  s.FeedbackURL,
			APIPrefix:    s.APIPrefix,
		}),
		telemetry.WithDefaultAPIKey(s.APIKey),
		telemetry.WithRateLimit(s.Rate.EventsPerSecond, s.Rate.Burst),
		telemetry.WithSenderLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("llmlog: %w", err)
	}

	policy := telemetry.FireAndForget
	if s.WaitForEvent {
		policy = telemetry.Awaited
	}
	dispatcher := telemetry.NewDispatcher(sender,
		telemetry.WithPolicy(policy),
		telemetry.WithErrorPolicy(telemetry.NewErrorPolicy(logger, s.Debug, 0)),
		telemetry.WithDispatcherLogger(logger),
	)

	base := []Option{
		WithSender(sender),
		WithDispatcher(dispatcher),
		WithLogger(logger),
		WithAPIKey(s.APIKey),
		WithPromptTemplateName(s.PromptTemplateName),
		WithAllowUnnamedPrompts(s.AllowUnnamedPrompts),
		WithChatID(s.ChatID),
	}
	if s.RedactPII {
		base = append(base, WithRedactor(redact.NewRegex()))
	}

	c := Wrap(provider, append(base, opts...)...)
	// The dispatcher was built here, so Close must drain it.
	c.ownsDisp = c.dispatcher == dispatcher
	return c, nil
}
