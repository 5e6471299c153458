package openai_compat

import (
	"log/slog"
	"net/http"

	"github.com/lgc202/promptlog/httpx"
)

type Option func(*Provider) error

func WithProviderName(name string) Option {
	return func(p *Provider) error {
		p.name = name
		return nil
	}
}

func WithBaseURL(baseURL string) Option {
	return func(p *Provider) error {
		p.cfg.BaseURL = baseURL
		return nil
	}
}

// WithTransport replaces the underlying RoundTripper (tests, proxies, recording).
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Provider) error {
		p.cfg.Transport = rt
		return nil
	}
}

func WithUserAgent(ua string) Option {
	return func(p *Provider) error {
		p.cfg.UserAgent = ua
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

func WithDefaultHeader(key, value string) Option {
	return func(p *Provider) error {
		if p.cfg.DefaultHeaders == nil {
			p.cfg.DefaultHeaders = make(http.Header)
		}
		p.cfg.DefaultHeaders.Set(key, value)
		return nil
	}
}

// WithRateLimiter throttles outgoing provider calls.
func WithRateLimiter(rl httpx.RateLimiter) Option {
	return func(p *Provider) error {
		p.cfg.RateLimiter = rl
		return nil
	}
}

func WithChatCompletionsPath(path string) Option {
	return func(p *Provider) error {
		p.chatPath = path
		return nil
	}
}

func WithCompletionsPath(path string) Option {
	return func(p *Provider) error {
		p.completionPath = path
		return nil
	}
}

// WithDefaultModel is used when a request leaves Model empty.
func WithDefaultModel(model string) Option {
	return func(p *Provider) error {
		p.model = model
		return nil
	}
}

// WithStreamUsage controls whether streaming requests ask for a trailing
// usage-only chunk when the caller did not set stream_options. Default true.
func WithStreamUsage(enabled bool) Option {
	return func(p *Provider) error {
		p.streamUsage = enabled
		return nil
	}
}
