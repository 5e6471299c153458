package llm

import (
	"errors"
	"io"
)

// Stream yields chunks until io.EOF.
//
// Implementations should return io.EOF once the stream finishes normally and
// ErrStreamClosed after Close. Close must be safe to call more than once.
type Stream[T any] interface {
	Recv() (T, error)
	Close() error
}

var ErrStreamClosed = errors.New("llm: stream closed")

// SliceStream replays a fixed list of chunks, then returns Err (or io.EOF).
type SliceStream[T any] struct {
	Chunks []T
	// Err is returned after the last chunk instead of io.EOF when non-nil.
	Err error

	closed bool
}

func NewSliceStream[T any](chunks ...T) *SliceStream[T] {
	return &SliceStream[T]{Chunks: chunks}
}

func (s *SliceStream[T]) Recv() (T, error) {
	var zero T
	if s.closed {
		return zero, ErrStreamClosed
	}
	if len(s.Chunks) == 0 {
		if s.Err != nil {
			return zero, s.Err
		}
		return zero, io.EOF
	}
	c := s.Chunks[0]
	s.Chunks = s.Chunks[1:]
	return c, nil
}

func (s *SliceStream[T]) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceStream[T]) Closed() bool { return s.closed }

// Collect reads s to the end and closes it.
func Collect[T any](s Stream[T]) ([]T, error) {
	defer s.Close()

	var out []T
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}
