// Package taskqueue runs background work in per-key FIFO order.
//
// Tasks sharing a key run one at a time in submission order. Different keys
// run in parallel. A key with nothing pending holds no goroutine.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("taskqueue: closed")

// Task is one unit of work. ctx is cancelled when Close gives up waiting.
type Task func(ctx context.Context)

type Option func(*Keyed)

func WithLogger(l *slog.Logger) Option {
	return func(k *Keyed) {
		if l != nil {
			k.logger = l
		}
	}
}

// Keyed is a set of FIFO queues addressed by key.
type Keyed struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string][]Task
	closed  bool
	wg      sync.WaitGroup
}

func New(opts ...Option) *Keyed {
	ctx, cancel := context.WithCancel(context.Background())
	k := &Keyed{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string][]Task),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Enqueue appends task to key's queue, starting a worker for the key if none
// is running.
func (k *Keyed) Enqueue(key string, task Task) error {
	if task == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	q, running := k.pending[key]
	k.pending[key] = append(q, task)
	if !running {
		k.wg.Add(1)
		go k.drain(key)
	}
	return nil
}

// Keys reports how many keys currently have a worker.
func (k *Keyed) Keys() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.pending)
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx ends
// first, running tasks see their context cancelled and Close returns ctx.Err().
func (k *Keyed) Close(ctx context.Context) error {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		k.cancel()
		return nil
	case <-ctx.Done():
		k.cancel()
		return ctx.Err()
	}
}

func (k *Keyed) drain(key string) {
	defer k.wg.Done()
	for {
		k.mu.Lock()
		q := k.pending[key]
		if len(q) == 0 {
			delete(k.pending, key)
			k.mu.Unlock()
			return
		}
		task := q[0]
		q[0] = nil
		k.pending[key] = q[1:]
		k.mu.Unlock()

		k.run(key, task)
	}
}

func (k *Keyed) run(key string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("task panicked", slog.String("key", key), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	task(k.ctx)
}
