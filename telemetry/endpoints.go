package telemetry

import "strings"

// DefaultAPIPrefix points at the development collector started by
// `promptlog collect`.
const DefaultAPIPrefix = "http://localhost:8787/api"

// Endpoints locates the collector. Explicit URLs win over APIPrefix.
type Endpoints struct {
	ReportingURL string
	FeedbackURL  string
	APIPrefix    string
}

func (e Endpoints) EventURL() string {
	if e.ReportingURL != "" {
		return e.ReportingURL
	}
	return e.prefixed("event")
}

func (e Endpoints) FeedbackEndpoint() string {
	if e.FeedbackURL != "" {
		return e.FeedbackURL
	}
	return e.prefixed("feedback")
}

func (e Endpoints) prefixed(name string) string {
	prefix := e.APIPrefix
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	return strings.TrimRight(prefix, "/") + "/" + name
}
