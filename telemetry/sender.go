package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lgc202/promptlog/httpx"
	"github.com/lgc202/promptlog/version"
)

var (
	ErrMissingFeedbackKey = errors.New("telemetry: missing feedback key")
	ErrMissingAPIKey      = errors.New("telemetry: missing api key")
)

// Sender delivers events and feedback to the collector.
type Sender interface {
	SendEvent(ctx context.Context, ev Event) error
	SendFeedback(ctx context.Context, fb Feedback) error
}

type SenderOption func(*senderOptions)

type senderOptions struct {
	endpoints Endpoints
	apiKey    string
	logger    *slog.Logger
	transport http.RoundTripper
	timeout   time.Duration
	limiter   *rate.Limiter
	requestID httpx.RequestIDConfig
}

// maxErrorBody bounds how much of a rejected delivery's body is kept for logs.
const maxErrorBody = 4 << 10

// WithEndpoints sets where events and feedback are posted.
func WithEndpoints(e Endpoints) SenderOption {
	return func(o *senderOptions) { o.endpoints = e }
}

// WithDefaultAPIKey is used for feedback that carries no key of its own.
func WithDefaultAPIKey(key string) SenderOption {
	return func(o *senderOptions) { o.apiKey = key }
}

func WithSenderLogger(l *slog.Logger) SenderOption {
	return func(o *senderOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithSenderTransport(rt http.RoundTripper) SenderOption {
	return func(o *senderOptions) { o.transport = rt }
}

func WithSenderTimeout(d time.Duration) SenderOption {
	return func(o *senderOptions) { o.timeout = d }
}

// WithRequestIDHeader names the header that carries a fresh id on every
// delivery; the collector's echo of it is logged with rejected deliveries.
// An empty header disables ids.
func WithRequestIDHeader(header string) SenderOption {
	return func(o *senderOptions) {
		o.requestID = httpx.RequestIDConfig{Header: header, New: httpx.DefaultRequestID}
	}
}

// WithRateLimit caps outbound requests. A non-positive perSecond disables it.
func WithRateLimit(perSecond float64, burst int) SenderOption {
	return func(o *senderOptions) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// HTTPSender posts JSON to the collector over httpx.
type HTTPSender struct {
	endpoints Endpoints
	apiKey    string
	hc        *httpx.Client
	logger    *slog.Logger
}

var _ Sender = (*HTTPSender)(nil)

func NewHTTPSender(opts ...SenderOption) (*HTTPSender, error) {
	o := senderOptions{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:   10 * time.Second,
		requestID: httpx.DefaultRequestIDConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	hopts := []httpx.Option{
		httpx.WithTimeout(o.timeout),
		httpx.WithTransport(o.transport),
		httpx.WithUserAgent(version.UserAgent()),
		httpx.WithRequestID(o.requestID),
		httpx.WithMaxErrorBodyBytes(maxErrorBody),
	}
	if o.limiter != nil {
		hopts = append(hopts, httpx.WithRateLimiter(o.limiter))
	}
	hc, err := httpx.New(hopts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	hc.WithHooks(nil, []httpx.AfterHook{httpx.LogHook(o.logger)})

	return &HTTPSender{endpoints: o.endpoints, apiKey: o.apiKey, hc: hc, logger: o.logger}, nil
}

// SendEvent posts ev. Events without an API key are dropped without error.
func (s *HTTPSender) SendEvent(ctx context.Context, ev Event) error {
	if ev.APIKey == "" {
		return nil
	}
	if err := s.post(ctx, s.endpoints.EventURL(), ev); err != nil {
		return fmt.Errorf("telemetry: send event: %w", err)
	}
	return nil
}

// SendFeedback posts fb, filling in the default API key when fb has none.
// Missing keys are logged and reported without contacting the collector.
func (s *HTTPSender) SendFeedback(ctx context.Context, fb Feedback) error {
	if fb.FeedbackKey == "" {
		s.logger.Warn("could not send feedback: missing feedback key")
		return ErrMissingFeedbackKey
	}
	if fb.APIKey == "" {
		fb.APIKey = s.apiKey
	}
	if fb.APIKey == "" {
		s.logger.Warn("could not send feedback: missing api key", slog.String("feedback_key", fb.FeedbackKey))
		return ErrMissingAPIKey
	}
	if err := s.post(ctx, s.endpoints.FeedbackEndpoint(), fb); err != nil {
		return fmt.Errorf("telemetry: send feedback: %w", err)
	}
	return nil
}

func (s *HTTPSender) post(ctx context.Context, url string, body any) error {
	req, err := s.hc.NewJSONRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	_, err = s.hc.DoJSONInto(req, nil)
	return err
}
