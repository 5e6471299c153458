package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// RateLimiter throttles outgoing requests. Wait blocks until a token is
// available or ctx is done. *rate.Limiter from golang.org/x/time satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

type BeforeHook func(req *http.Request) error

type AfterHook func(req *http.Request, resp *http.Response, err error, dur time.Duration)

// LogHook returns an AfterHook that records every round trip at debug level.
func LogHook(logger *slog.Logger) AfterHook {
	return func(req *http.Request, resp *http.Response, err error, dur time.Duration) {
		attrs := []slog.Attr{
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
			slog.Duration("duration", dur),
		}
		if resp != nil {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		logger.LogAttrs(req.Context(), slog.LevelDebug, "http round trip", attrs...)
	}
}
