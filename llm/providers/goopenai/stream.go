package goopenai

import (
	"errors"
	"io"
	"sync"

	"github.com/lgc202/promptlog/llm"
)

// stream converts each go-openai chunk S into the wire type T.
type stream[S, T any] struct {
	p     *Provider
	recv  func() (S, error)
	close func() error

	mu     sync.Mutex
	closed bool
}

func (s *stream[S, T]) Recv() (T, error) {
	var zero T
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return zero, llm.ErrStreamClosed
	}

	chunk, err := s.recv()
	if errors.Is(err, io.EOF) {
		return zero, io.EOF
	}
	if err != nil {
		return zero, s.p.mapError(err)
	}
	return convert[T](s.p.name, chunk)
}

func (s *stream[S, T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.close()
}
