package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/promptlog/llm/schema"
)

// countingSource replays chunks and records how far it has been read.
type countingSource[C any] struct {
	chunks []C
	tail   error
	reads  atomic.Int32
	closed atomic.Int32
}

func (s *countingSource[C]) Recv() (C, error) {
	var zero C
	n := int(s.reads.Add(1)) - 1
	if n < len(s.chunks) {
		return s.chunks[n], nil
	}
	if s.tail != nil {
		return zero, s.tail
	}
	return zero, io.EOF
}

func (s *countingSource[C]) Close() error {
	s.closed.Add(1)
	return nil
}

func textChunk(s string) schema.ChatCompletionChunk {
	return schema.ChatCompletionChunk{ID: "c", Choices: []schema.ChunkChoice{{Delta: schema.ChunkDelta{Content: s}}}}
}

func finishChunk(reason schema.FinishReason) schema.ChatCompletionChunk {
	return schema.ChatCompletionChunk{ID: "c", Choices: []schema.ChunkChoice{{FinishReason: reason}}}
}

func toolChunk(deltas ...schema.ToolCallDelta) schema.ChatCompletionChunk {
	return schema.ChatCompletionChunk{ID: "c", Choices: []schema.ChunkChoice{{Delta: schema.ChunkDelta{ToolCalls: deltas}}}}
}

func wait(t *testing.T, f *Future) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future never settled")
	return res, err
}

func TestStream_PassthroughIsUnchanged(t *testing.T) {
	upstream := []schema.ChatCompletionChunk{
		textChunk("a"),
		toolChunk(schema.ToolCallDelta{Index: 0, ID: "x", Function: schema.FunctionCall{Name: "f"}}),
		finishChunk(schema.FinishReasonStop),
		{ID: "c", Usage: &schema.Usage{TotalTokens: 3}},
	}
	src := &countingSource[schema.ChatCompletionChunk]{chunks: upstream}

	s, _, err := Chat.Stream(src, nil, "fk-1")
	require.NoError(t, err)

	var got []schema.ChatCompletionChunk
	for tagged, err := range s.All() {
		require.NoError(t, err)
		assert.Equal(t, "fk-1", tagged.FeedbackKey)
		got = append(got, tagged.Value)
	}
	assert.Equal(t, upstream, got)
	assert.Equal(t, StateDrained, s.State())
	assert.EqualValues(t, 1, src.closed.Load())
}

func TestStream_IsLazy(t *testing.T) {
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{textChunk("a"), textChunk("b")}}

	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)
	assert.Zero(t, src.reads.Load())
	assert.Equal(t, StateCreated, s.State())
	assert.False(t, fut.Settled())

	_, err = s.Recv()
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.reads.Load())
	assert.Equal(t, StateConsuming, s.State())
	assert.False(t, fut.Settled())
}

func TestStream_TextAndFinishReason(t *testing.T) {
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{
		textChunk("Hel"), textChunk("lo"), textChunk(" world"), finishChunk(schema.FinishReasonStop),
	}}

	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)
	for _, err := range s.All() {
		require.NoError(t, err)
	}

	res, err := wait(t, fut)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", res.Text())
	assert.Equal(t, "stop", res.FinishReason)
	assert.Empty(t, res.ToolCalls)
}

func TestStream_ToolCallFragments(t *testing.T) {
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{
		toolChunk(schema.ToolCallDelta{Index: 0, ID: "c1", Type: schema.ToolCallTypeFunction, Function: schema.FunctionCall{Name: "get_weather"}}),
		toolChunk(schema.ToolCallDelta{Index: 0, Function: schema.FunctionCall{Arguments: `{"loc`}}),
		toolChunk(schema.ToolCallDelta{Index: 0, Function: schema.FunctionCall{Arguments: `ation":"NY"}`}}),
		finishChunk(schema.FinishReasonToolCalls),
	}}

	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)
	for _, err := range s.All() {
		require.NoError(t, err)
	}

	res, err := wait(t, fut)
	require.NoError(t, err)
	assert.Equal(t, []ToolCall{{ID: "c1", Name: "get_weather", Arguments: `{"location":"NY"}`}}, res.ToolCalls)
	assert.Equal(t, "tool_calls", res.FinishReason)
	assert.JSONEq(t,
		`{"tool_calls":[{"id":"c1","type":"function","function":{"name":"get_weather","arguments":"{\"location\":\"NY\"}"}}]}`,
		res.Text())
}

func TestStream_ConcurrentToolCallSlotsSortedByIndex(t *testing.T) {
	res := Chat.Accumulate(
		toolChunk(
			schema.ToolCallDelta{Index: 1, ID: "b", Function: schema.FunctionCall{Name: "second", Arguments: "{"}},
			schema.ToolCallDelta{Index: 0, ID: "a", Function: schema.FunctionCall{Name: "first", Arguments: "["}},
		),
		toolChunk(
			schema.ToolCallDelta{Index: 0, Function: schema.FunctionCall{Arguments: "]"}},
			schema.ToolCallDelta{Index: 1, Function: schema.FunctionCall{Arguments: "}"}},
		),
		// Later identity fields never overwrite the first ones.
		toolChunk(schema.ToolCallDelta{Index: 0, ID: "zzz", Function: schema.FunctionCall{Name: "other"}}),
	)

	assert.Equal(t, []ToolCall{
		{ID: "a", Name: "first", Arguments: "[]"},
		{ID: "b", Name: "second", Arguments: "{}"},
	}, res.ToolCalls)
}

func TestStream_EarlyExitSettlesWithPartialResult(t *testing.T) {
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{
		textChunk("one"), textChunk("two"), textChunk("three"),
	}}

	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)
	for _, err := range s.All() {
		require.NoError(t, err)
		break
	}

	res, err := wait(t, fut)
	require.NoError(t, err)
	assert.Equal(t, "one", res.Text())
	assert.Equal(t, StateClosed, s.State())
	assert.EqualValues(t, 1, src.reads.Load())
	assert.EqualValues(t, 1, src.closed.Load())

	_, err = s.Recv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStream_UpstreamErrorMidStream(t *testing.T) {
	boom := errors.New("connection reset")
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{textChunk("par"), textChunk("tial")}, tail: boom}

	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)

	var seen int
	var iterErr error
	for _, err := range s.All() {
		if err != nil {
			iterErr = err
			break
		}
		seen++
	}
	assert.Equal(t, 2, seen)
	assert.ErrorIs(t, iterErr, boom)

	res, err := wait(t, fut)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", res.Text())
	assert.Equal(t, StateFailed, s.State())

	// The terminal error sticks.
	_, err = s.Recv()
	assert.ErrorIs(t, err, boom)
}

func TestStream_UpstreamErrorBeforeStream(t *testing.T) {
	boom := errors.New("401")
	s, fut, err := Chat.Stream(nil, boom, "k")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, boom)
	require.True(t, fut.Settled())
	_, ferr := wait(t, fut)
	assert.ErrorIs(t, ferr, boom)
}

func TestStream_UsageOnlyChunkIsCapturedAndForwarded(t *testing.T) {
	usage := &schema.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{
		textChunk("hi"), finishChunk(schema.FinishReasonStop), {ID: "c", Choices: []schema.ChunkChoice{}, Usage: usage},
	}}

	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)

	var last schema.ChatCompletionChunk
	for tagged, err := range s.All() {
		require.NoError(t, err)
		last = tagged.Value
	}
	assert.Same(t, usage, last.Usage)

	res, _ := wait(t, fut)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 5, res.Usage.TotalTokens)
	assert.NotSame(t, usage, res.Usage)
	assert.Equal(t, "stop", res.FinishReason)
}

func TestStream_FunctionCallDeltas(t *testing.T) {
	chunk := func(fc schema.FunctionCall) schema.ChatCompletionChunk {
		return schema.ChatCompletionChunk{Choices: []schema.ChunkChoice{{Delta: schema.ChunkDelta{FunctionCall: &fc}}}}
	}
	res := Chat.Accumulate(
		chunk(schema.FunctionCall{Name: "lookup"}),
		chunk(schema.FunctionCall{Arguments: `{"q":`}),
		chunk(schema.FunctionCall{Arguments: `1}`}),
	)
	assert.JSONEq(t, `{"function_call":{"name":"lookup","arguments":"{\"q\":1}"}}`, res.Text())
}

func TestStream_RefusalAndLogprobs(t *testing.T) {
	res := Chat.Accumulate(
		schema.ChatCompletionChunk{Choices: []schema.ChunkChoice{{Delta: schema.ChunkDelta{Refusal: "I can't "}, Logprobs: json.RawMessage(`{"content":[1]}`)}}},
		schema.ChatCompletionChunk{Choices: []schema.ChunkChoice{{Delta: schema.ChunkDelta{Refusal: "help."}, Logprobs: json.RawMessage(`null`)}}},
		schema.ChatCompletionChunk{Choices: []schema.ChunkChoice{{Index: 1, Delta: schema.ChunkDelta{Content: "other choice"}}}},
	)
	assert.Equal(t, "I can't help.", res.Refusal)
	assert.JSONEq(t, `{"content":[1]}`, string(res.Logprobs))
	assert.Equal(t, "", res.Text())
}

func TestStream_CompletionShape(t *testing.T) {
	chunk := func(text string, finish schema.FinishReason) schema.Completion {
		return schema.Completion{Choices: []schema.CompletionChoice{{Text: text, FinishReason: finish}}}
	}
	src := &countingSource[schema.Completion]{chunks: []schema.Completion{chunk("foo", ""), chunk("bar", schema.FinishReasonLength)}}

	s, fut, err := Completion.Stream(src, nil, "k")
	require.NoError(t, err)
	assert.Equal(t, ShapeCompletion, Completion.Shape())
	for _, err := range s.All() {
		require.NoError(t, err)
	}
	res, err := wait(t, fut)
	require.NoError(t, err)
	assert.Equal(t, "foobar", res.Text())
	assert.Equal(t, "length", res.FinishReason)
}

// blockingSource blocks in Recv until Close is called.
type blockingSource struct {
	once   sync.Once
	closed chan struct{}
}

func (b *blockingSource) Recv() (schema.ChatCompletionChunk, error) {
	<-b.closed
	return schema.ChatCompletionChunk{}, errors.New("use of closed connection")
}

func (b *blockingSource) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestStream_CloseInterruptsBlockedRecv(t *testing.T) {
	src := &blockingSource{closed: make(chan struct{})}
	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)

	recvErr := make(chan error, 1)
	go func() {
		_, err := s.Recv()
		recvErr <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-recvErr:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
	_, ferr := wait(t, fut)
	assert.NoError(t, ferr)
	assert.Equal(t, StateClosed, s.State())
}

func TestFuture_OnSettleRunsOnce(t *testing.T) {
	src := &countingSource[schema.ChatCompletionChunk]{chunks: []schema.ChatCompletionChunk{textChunk("x")}}
	s, fut, err := Chat.Stream(src, nil, "k")
	require.NoError(t, err)

	var calls atomic.Int32
	fut.OnSettle(func(r Result, err error) {
		calls.Add(1)
		assert.Equal(t, "x", r.Text())
	})
	for _, err := range s.All() {
		require.NoError(t, err)
	}
	_ = s.Close()

	assert.EqualValues(t, 1, calls.Load())

	// Registered after settling: runs immediately.
	fut.OnSettle(func(Result, error) { calls.Add(1) })
	assert.EqualValues(t, 2, calls.Load())
}

func TestStatic_Passthrough(t *testing.T) {
	resp := schema.ChatCompletion{ID: "r1", Choices: []schema.ChatChoice{{Message: schema.ResponseMessage{Content: ptr("hi")}, FinishReason: schema.FinishReasonStop}}}

	tagged, fut, err := Chat.Static(resp, nil, "fk")
	require.NoError(t, err)
	assert.Equal(t, resp, tagged.Value)
	assert.Equal(t, "fk", tagged.FeedbackKey)
	require.True(t, fut.Settled())

	res, err := wait(t, fut)
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text())
	assert.Equal(t, "stop", res.FinishReason)
}

func TestStatic_UpstreamError(t *testing.T) {
	boom := errors.New("rate limited")
	_, fut, err := Chat.Static(schema.ChatCompletion{}, boom, "fk")
	assert.Same(t, boom, err)
	_, ferr := wait(t, fut)
	assert.Same(t, boom, ferr)
}

func TestStatic_ChatPriority(t *testing.T) {
	fc := &schema.FunctionCall{Name: "f", Arguments: "{}"}
	tcs := []schema.ToolCall{{ID: "t1", Type: schema.ToolCallTypeFunction, Function: schema.FunctionCall{Name: "g", Arguments: `{"a":1}`}}}

	tests := []struct {
		name      string
		msg       schema.ResponseMessage
		want      *string
		toolCalls int
	}{
		{
			name:      "content wins over everything",
			msg:       schema.ResponseMessage{Content: ptr("text"), FunctionCall: fc, ToolCalls: tcs},
			want:      ptr("text"),
			toolCalls: 1,
		},
		{
			name: "function_call wins over tool_calls",
			msg:  schema.ResponseMessage{Content: ptr(""), FunctionCall: fc, ToolCalls: tcs},
			want: ptr(`{"function_call":{"name":"f","arguments":"{}"}}`), toolCalls: 1,
		},
		{
			name:      "tool_calls",
			msg:       schema.ResponseMessage{ToolCalls: tcs},
			want:      ptr(`{"tool_calls":[{"id":"t1","type":"function","function":{"name":"g","arguments":"{\"a\":1}"}}]}`),
			toolCalls: 1,
		},
		{
			name: "nothing",
			msg:  schema.ResponseMessage{},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fut, err := Chat.Static(schema.ChatCompletion{Choices: []schema.ChatChoice{{Message: tt.msg}}}, nil, "k")
			require.NoError(t, err)
			res, _ := wait(t, fut)
			if tt.want == nil {
				assert.Nil(t, res.Response)
			} else {
				require.NotNil(t, res.Response)
				assert.JSONEq(t, jsonString(*tt.want), jsonString(*res.Response))
			}
			assert.Len(t, res.ToolCalls, tt.toolCalls)
		})
	}
}

func TestStatic_CompletionAndEmptyChoices(t *testing.T) {
	_, fut, err := Completion.Static(schema.Completion{
		Choices: []schema.CompletionChoice{{Text: "done", FinishReason: schema.FinishReasonStop, Logprobs: json.RawMessage(`null`)}},
		Usage:   &schema.Usage{TotalTokens: 7},
	}, nil, "k")
	require.NoError(t, err)
	res, _ := wait(t, fut)
	assert.Equal(t, "done", res.Text())
	assert.Nil(t, res.Logprobs)
	assert.Equal(t, 7, res.Usage.TotalTokens)

	_, fut, _ = Chat.Static(schema.ChatCompletion{Usage: &schema.Usage{TotalTokens: 1}}, nil, "k")
	res, _ = wait(t, fut)
	assert.Nil(t, res.Response)
	assert.Equal(t, 1, res.Usage.TotalTokens)
}

func ptr(s string) *string { return &s }

// jsonString lets JSONEq compare plain text too.
func jsonString(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}
