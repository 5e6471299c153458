package reconcile

import (
	"errors"
	"io"
	"iter"
	"sync"
)

// ErrClosed is returned by Recv after Close.
var ErrClosed = errors.New("reconcile: stream closed")

// Source is the upstream chunk sequence. llm.Stream satisfies it.
type Source[C any] interface {
	Recv() (C, error)
	Close() error
}

// State tracks a stream's lifecycle. Drained, Failed and Closed are terminal.
type State int

const (
	StateCreated State = iota
	StateConsuming
	StateDrained // upstream returned io.EOF
	StateFailed  // upstream returned an error
	StateClosed  // the caller stopped early
)

func (s State) Terminal() bool { return s >= StateDrained }

// Stream forwards upstream chunks unchanged, tagged with the feedback key, and
// folds each one into an Accumulator as the caller pulls it.
type Stream[C any] struct {
	src  Source[C]
	key  string
	fold func(*Accumulator, C)

	future *Future

	mu        sync.Mutex
	acc       Accumulator
	state     State
	termErr   error
	srcClosed bool
}

func newStream[C any](src Source[C], key string, fold func(*Accumulator, C)) *Stream[C] {
	return &Stream[C]{src: src, key: key, fold: fold, future: newFuture()}
}

// FeedbackKey returns the key every chunk is tagged with.
func (s *Stream[C]) FeedbackKey() string { return s.key }

// Future settles once the stream reaches a terminal state.
func (s *Stream[C]) Future() *Future { return s.future }

func (s *Stream[C]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recv pulls the next chunk from upstream. It returns io.EOF at the end and
// the upstream error unchanged on failure; both settle the Future.
func (s *Stream[C]) Recv() (Tagged[C], error) {
	var zero Tagged[C]

	s.mu.Lock()
	if s.state.Terminal() {
		err := s.termErr
		s.mu.Unlock()
		return zero, err
	}
	s.state = StateConsuming
	s.mu.Unlock()

	// Upstream is read without holding the lock so Close can interrupt it.
	c, err := s.src.Recv()

	if err != nil {
		state, futureErr := StateFailed, err
		if errors.Is(err, io.EOF) {
			state, futureErr = StateDrained, nil
		}
		s.finish(state, err, futureErr)
		// A concurrent Close may have won; report whatever ended the stream.
		s.mu.Lock()
		err = s.termErr
		s.mu.Unlock()
		return zero, err
	}

	s.mu.Lock()
	if s.state.Terminal() {
		// Closed while this Recv was in flight; the summary is already out.
		err := s.termErr
		s.mu.Unlock()
		return zero, err
	}
	s.fold(&s.acc, c)
	s.mu.Unlock()

	return Tagged[C]{Value: c, FeedbackKey: s.key}, nil
}

// Close stops the stream early. The Future settles with whatever was
// accumulated and a nil error. Close is idempotent.
func (s *Stream[C]) Close() error {
	return s.finish(StateClosed, ErrClosed, nil)
}

// All ranges over the tagged chunks. An upstream error is yielded once as the
// last pair. Breaking out of the loop closes the stream.
func (s *Stream[C]) All() iter.Seq2[Tagged[C], error] {
	return func(yield func(Tagged[C], error) bool) {
		defer s.Close()
		for {
			t, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(t, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// finish moves the stream into a terminal state, releases upstream and
// settles the Future. Only the first call has any effect besides returning
// the upstream Close error.
func (s *Stream[C]) finish(state State, recvErr, futureErr error) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.state = state
	s.termErr = recvErr
	res := s.acc.Result()
	closeSrc := !s.srcClosed
	s.srcClosed = true
	s.mu.Unlock()

	var closeErr error
	if closeSrc {
		closeErr = s.src.Close()
	}
	s.future.settle(res, futureErr)
	return closeErr
}
