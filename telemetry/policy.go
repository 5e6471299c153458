package telemetry

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/lgc202/promptlog/httpx"
)

// DefaultClientErrorInterval bounds how often a rejected (4xx) delivery is
// logged outside debug mode.
const DefaultClientErrorInterval = time.Minute

// ErrorPolicy decides which delivery failures get logged.
//
// A 4xx usually means a bad API key or payload and is worth surfacing, but at
// most once per interval. 5xx responses and transport failures are the
// collector's problem and stay silent. Debug mode logs everything.
type ErrorPolicy struct {
	logger  *slog.Logger
	debug   bool
	sampler *rate.Limiter
}

func NewErrorPolicy(logger *slog.Logger, debug bool, interval time.Duration) *ErrorPolicy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = DefaultClientErrorInterval
	}
	return &ErrorPolicy{
		logger:  logger,
		debug:   debug,
		sampler: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Handle reports whether err was logged.
func (p *ErrorPolicy) Handle(op string, err error) bool {
	class := httpx.Classify(err)
	if class == httpx.ClassNone {
		return false
	}

	attrs := []any{slog.String("op", op), slog.String("class", class.String()), slog.Any("error", err)}
	if he, ok := httpx.AsError(err); ok {
		if he.StatusCode != 0 {
			attrs = append(attrs, slog.Int("status", he.StatusCode))
		}
		if he.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", he.RequestID))
		}
	}

	switch {
	case p.debug:
		p.logger.Warn("telemetry delivery failed", attrs...)
		return true
	case class == httpx.ClassClient && p.sampler.Allow():
		p.logger.Warn("telemetry delivery rejected", attrs...)
		return true
	default:
		return false
	}
}
