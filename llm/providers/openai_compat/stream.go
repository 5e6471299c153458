package openai_compat

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/lgc202/promptlog/llm"
)

var doneMarker = []byte("[DONE]")

// stream decodes each SSE data payload into a T until [DONE].
type stream[T any] struct {
	provider string
	resp     *http.Response
	dec      *sseDecoder

	mu     sync.Mutex
	closed bool
	done   bool
}

func newStream[T any](provider string, resp *http.Response) *stream[T] {
	return &stream[T]{
		provider: provider,
		resp:     resp,
		dec:      newSSEDecoder(resp.Body),
	}
}

func (s *stream[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Body.Close()
}

func (s *stream[T]) Recv() (T, error) {
	var zero T

	s.mu.Lock()
	closed, done := s.closed, s.done
	s.mu.Unlock()
	if closed {
		return zero, llm.ErrStreamClosed
	}
	if done {
		return zero, io.EOF
	}

	for {
		data, err := s.dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Some servers close the connection without sending [DONE].
				s.markDone()
				return zero, io.EOF
			}
			if s.isClosed() {
				return zero, llm.ErrStreamClosed
			}
			return zero, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindUnknown, Message: "stream read failed", Cause: err}
		}

		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, doneMarker) {
			s.markDone()
			return zero, io.EOF
		}

		if msg, code, ok := parseErrorEnvelope(data); ok {
			return zero, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindServer, Message: msg, ProviderCode: code, Raw: data}
		}

		var chunk T
		if err := json.Unmarshal(data, &chunk); err != nil {
			return zero, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindParse, Message: "failed to decode stream chunk", Raw: data, Cause: err}
		}
		return chunk, nil
	}
}

func (s *stream[T]) markDone() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

func (s *stream[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
