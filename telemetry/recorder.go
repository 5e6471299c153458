package telemetry

import (
	"context"
	"slices"
	"sync"
)

// Recorder is an in-memory Sender. It backs `promptlog chat --dry-run` and
// tests.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	feedback []Feedback
	notify   chan struct{}
}

var _ Sender = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) SendEvent(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.signal()
	return nil
}

func (r *Recorder) SendFeedback(_ context.Context, fb Feedback) error {
	if fb.FeedbackKey == "" {
		return ErrMissingFeedbackKey
	}
	r.mu.Lock()
	r.feedback = append(r.feedback, fb)
	r.mu.Unlock()
	r.signal()
	return nil
}

func (r *Recorder) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *Recorder) Feedback() []Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.feedback)
}

// WaitEvents blocks until at least n events were recorded or ctx ends.
func (r *Recorder) WaitEvents(ctx context.Context, n int) ([]Event, error) {
	for {
		if evs := r.Events(); len(evs) >= n {
			return evs, nil
		}
		select {
		case <-r.notify:
		case <-ctx.Done():
			return r.Events(), ctx.Err()
		}
	}
}
