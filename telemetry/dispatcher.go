package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lgc202/promptlog/taskqueue"
)

// DispatchPolicy selects whether Dispatch waits for delivery.
type DispatchPolicy int

const (
	// FireAndForget queues the event and returns at once. Events of one chat
	// are still delivered in the order they were dispatched.
	FireAndForget DispatchPolicy = iota
	// Awaited delivers on the calling goroutine.
	Awaited
)

func (p DispatchPolicy) String() string {
	switch p {
	case FireAndForget:
		return "fire-and-forget"
	case Awaited:
		return "awaited"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Dispatcher hands events to a Sender according to a DispatchPolicy.
type Dispatcher struct {
	sender  Sender
	policy  DispatchPolicy
	errs    *ErrorPolicy
	queue   *taskqueue.Keyed
	owned   bool
	timeout time.Duration
	logger  *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithPolicy(p DispatchPolicy) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

// WithQueue shares a queue with other components. The caller owns its Close.
func WithQueue(q *taskqueue.Keyed) DispatcherOption {
	return func(d *Dispatcher) {
		if q != nil {
			d.queue, d.owned = q, false
		}
	}
}

func WithErrorPolicy(p *ErrorPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.errs = p
		}
	}
}

// WithDeliveryTimeout bounds each queued delivery.
func WithDeliveryTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = t }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		timeout: 10 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.errs == nil {
		d.errs = NewErrorPolicy(d.logger, false, 0)
	}
	if d.queue == nil {
		d.queue, d.owned = taskqueue.New(taskqueue.WithLogger(d.logger)), true
	}
	return d
}

func (d *Dispatcher) Policy() DispatchPolicy { return d.policy }

// Dispatch delivers ev. Failures are handed to the ErrorPolicy and never
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if d.policy == Awaited {
		d.deliver(ctx, ev)
		return
	}

	// Events without a chat have no ordering requirement.
	key := ev.ChatID
	if key == "" {
		key = "event:" + ev.FeedbackKey
	}
	err := d.queue.Enqueue(key, func(qctx context.Context) {
		ctx, cancel := context.WithTimeout(qctx, d.timeout)
		defer cancel()
		d.deliver(ctx, ev)
	})
	if err != nil {
		d.logger.Debug("event dropped", slog.String("feedback_key", ev.FeedbackKey), slog.Any("error", err))
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	if err := d.sender.SendEvent(ctx, ev); err != nil {
		d.errs.Handle("event", err)
	}
}

// Close waits for queued deliveries when the Dispatcher owns its queue.
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.owned {
		return nil
	}
	return d.queue.Close(ctx)
}
