// Package collector is an in-memory stand-in for the analytics backend. It
// accepts the events and feedback that telemetry.HTTPSender posts and serves
// them back for inspection. It backs `promptlog collect`.
package collector

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/lgc202/promptlog/telemetry"
)

const maxBodyBytes = 4 << 20

type Option func(*Collector)

// WithPrefix mounts the API under prefix. The default matches
// telemetry.DefaultAPIPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Collector) { c.prefix = "/" + strings.Trim(prefix, "/") }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnEvent registers a callback that runs after an event is stored.
func WithOnEvent(fn func(telemetry.Event)) Option {
	return func(c *Collector) { c.onEvent = fn }
}

type Collector struct {
	prefix  string
	logger  *slog.Logger
	onEvent func(telemetry.Event)

	mu       sync.RWMutex
	events   []telemetry.Event
	feedback []telemetry.Feedback
}

func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "/api",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handler returns the collector's routes:
//
//	POST {prefix}/event
//	POST {prefix}/feedback
//	GET  {prefix}/events
//	GET  {prefix}/events/{feedbackKey}
//	GET  {prefix}/feedback
//	GET  /healthz
func (c *Collector) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix(c.prefix).Subrouter()
	api.HandleFunc("/event", c.postEvent).Methods(http.MethodPost)
	api.HandleFunc("/feedback", c.postFeedback).Methods(http.MethodPost)
	api.HandleFunc("/events", c.listEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{feedbackKey}", c.getEvent).Methods(http.MethodGet)
	api.HandleFunc("/feedback", c.listFeedback).Methods(http.MethodGet)
	return r
}

func (c *Collector) Events() []telemetry.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.events)
}

func (c *Collector) Feedback() []telemetry.Feedback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.feedback)
}

func (c *Collector) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev telemetry.Event
	if !decode(w, r, &ev) {
		return
	}
	if ev.APIKey == "" {
		writeError(w, http.StatusUnauthorized, "missing apiKey")
		return
	}

	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()

	c.logger.Info("event",
		slog.String("template", ev.PromptTemplateName),
		slog.String("feedback_key", ev.FeedbackKey),
		slog.String("chat_id", ev.ChatID),
		slog.Int64("response_ms", ev.ResponseTime),
		slog.Int("errors", len(ev.ResponseErrors)),
	)
	if c.onEvent != nil {
		c.onEvent(ev)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"feedbackKey": ev.FeedbackKey})
}

func (c *Collector) postFeedback(w http.ResponseWriter, r *http.Request) {
	var fb telemetry.Feedback
	if !decode(w, r, &fb) {
		return
	}
	switch {
	case fb.FeedbackKey == "":
		writeError(w, http.StatusBadRequest, "missing feedback_key")
		return
	case fb.APIKey == "":
		writeError(w, http.StatusUnauthorized, "missing apiKey")
		return
	case fb.Rating != nil && (*fb.Rating < 0 || *fb.Rating > 1):
		writeError(w, http.StatusBadRequest, "rating must be between 0 and 1")
		return
	}

	c.mu.Lock()
	c.feedback = append(c.feedback, fb)
	c.mu.Unlock()

	c.logger.Info("feedback", slog.String("feedback_key", fb.FeedbackKey), slog.Bool("deleted", fb.IsDeleted))
	writeJSON(w, http.StatusCreated, map[string]string{"feedbackKey": fb.FeedbackKey})
}

func (c *Collector) listEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.Events())
}

func (c *Collector) listFeedback(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.Feedback())
}

func (c *Collector) getEvent(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["feedbackKey"]
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].FeedbackKey == key {
			writeJSON(w, http.StatusOK, c.events[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "no event with feedback key "+key)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
