package llmlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/promptlog/config"
	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/llm/providers/mock"
	"github.com/lgc202/promptlog/llm/schema"
	"github.com/lgc202/promptlog/redact"
	"github.com/lgc202/promptlog/telemetry"
	"github.com/lgc202/promptlog/template"
)

func chatTemplate() *template.Template {
	return template.Compile([]any{
		map[string]any{"role": "system", "content": "You are a {tone} assistant."},
		map[string]any{"role": "user", "content": "{question}"},
	})
}

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(step)
		return now
	}
}

func newClient(p llm.Provider, opts ...Option) (*Client, *telemetry.Recorder) {
	rec := telemetry.NewRecorder()
	base := []Option{
		WithSender(rec),
		WithDispatchPolicy(telemetry.Awaited),
		WithAPIKey("test-key"),
		WithPromptTemplateName("support"),
		WithFeedbackKeys(func() string { return "fk-generated" }),
		WithClock(fakeClock(250 * time.Millisecond)),
	}
	return Wrap(p, append(base, opts...)...), rec
}

func TestChatCompletion_RendersTemplateAndRecordsEvent(t *testing.T) {
	p := mock.New().OnChat(mock.ChatReply("Hi Ada!"), nil)
	c, rec := newClient(p, WithChatID("chat-1"))

	temp := 0.2
	resp, err := c.CreateChatCompletion(context.Background(), ChatRequest{
		ChatRequest: schema.ChatRequest{Model: "gpt-4o-mini", Temperature: &temp},
		Trace: Trace{
			Template:       chatTemplate(),
			TemplateParams: map[string]any{"tone": "friendly", "question": "Who am I?"},
			ParentEventID:  "parent-1",
			Context:        map[string]any{"user": "u1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "fk-generated", resp.FeedbackKey)
	assert.Equal(t, "Hi Ada!", *resp.Value.Choices[0].Message.Content)

	sent := p.ChatRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, []schema.Message{
		{Role: schema.RoleSystem, Content: "You are a friendly assistant."},
		{Role: schema.RoleUser, Content: "Who am I?"},
	}, sent[0].Messages)
	assert.False(t, sent[0].Stream)

	evs := rec.Events()
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, "Hi Ada!", *ev.Response)
	assert.Equal(t, map[string]any{"tone": "friendly", "question": "Who am I?"}, ev.Params)
	assert.Equal(t, chatTemplate().Shape(), ev.PromptTemplateChat)
	assert.Nil(t, ev.PromptTemplateText)
	assert.Equal(t, "support", ev.PromptTemplateName)
	assert.Equal(t, "support", ev.APIName)
	assert.Equal(t, "test-key", ev.APIKey)
	assert.Equal(t, "chat-1", ev.ChatID)
	assert.Equal(t, "parent-1", ev.ParentEventID)
	assert.Equal(t, "parent-1", ev.ChainID)
	assert.Equal(t, "fk-generated", ev.FeedbackKey)
	assert.Equal(t, map[string]any{"user": "u1"}, ev.Context)
	assert.EqualValues(t, 250, ev.ResponseTime)
	assert.Empty(t, ev.ResponseErrors)
	require.NotNil(t, ev.ResponseMetrics)
	assert.Equal(t, "stop", ev.ResponseMetrics.FinishReason)
	assert.NotNil(t, ev.RawResponse)

	assert.Equal(t, "mock", ev.ModelParameters["modelProvider"])
	assert.Equal(t, "chat", ev.ModelParameters["modelType"])
	assert.Equal(t, "gpt-4o-mini", ev.ModelParameters["model"])
	assert.Equal(t, 0.2, ev.ModelParameters["temperature"])
	assert.NotContains(t, ev.ModelParameters, "messages")
}

func TestChatCompletion_ChatHistoryTemplate(t *testing.T) {
	p := mock.New().OnChat(mock.ChatReply("Paris."), nil)
	c, rec := newClient(p)

	tmpl := template.Compile([]schema.Message{
		schema.SystemMessage("Answer in one word."),
		schema.ChatHistory("history"),
		schema.UserMessage("{question}"),
	})
	_, err := c.CreateChatCompletion(context.Background(), ChatRequest{
		Trace: Trace{
			Template: tmpl,
			TemplateParams: map[string]any{
				"history": []schema.Message{
					schema.UserMessage("Capital of Italy?"),
					schema.AssistantMessage("Rome."),
				},
				"question": "Capital of France?",
			},
		},
	})
	require.NoError(t, err)

	sent := p.ChatRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, []schema.Message{
		schema.SystemMessage("Answer in one word."),
		schema.UserMessage("Capital of Italy?"),
		schema.AssistantMessage("Rome."),
		schema.UserMessage("Capital of France?"),
	}, sent[0].Messages)

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, tmpl.Shape(), evs[0].PromptTemplateChat)
}

func TestChatCompletion_TemplateErrorsFailBeforeProviderCall(t *testing.T) {
	p := mock.New()
	c, rec := newClient(p)

	_, err := c.CreateChatCompletion(context.Background(), ChatRequest{
		Trace: Trace{Template: chatTemplate(), TemplateParams: map[string]any{"tone": "dry"}},
	})
	var missing *template.MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "question", missing.Name)

	_, err = c.CreateChatCompletion(context.Background(), ChatRequest{Trace: Trace{Template: chatTemplate()}})
	assert.ErrorIs(t, err, ErrTemplateParams)

	assert.Empty(t, p.ChatRequests())
	assert.Empty(t, rec.Events())
}

func TestChatCompletion_UnnamedPromptsAreNotRecorded(t *testing.T) {
	p := mock.New().OnChat(mock.ChatReply("ok"), nil).OnChat(mock.ChatReply("ok"), nil)
	c, rec := newClient(p, WithPromptTemplateName(""))

	resp, err := c.CreateChatCompletion(context.Background(), ChatRequest{
		ChatRequest: schema.ChatRequest{Messages: []schema.Message{schema.UserMessage("hi")}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.FeedbackKey)
	assert.Empty(t, rec.Events())

	// A per-call name is enough.
	_, err = c.CreateChatCompletion(context.Background(), ChatRequest{
		ChatRequest: schema.ChatRequest{Messages: []schema.Message{schema.UserMessage("hi")}},
		Trace:       Trace{TemplateName: "adhoc", FeedbackKey: "mine"},
	})
	require.NoError(t, err)
	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "adhoc", evs[0].PromptTemplateName)
	assert.Equal(t, "mine", evs[0].FeedbackKey)
	assert.Equal(t, []schema.Message{schema.UserMessage("hi")}, evs[0].PromptTemplateChat)
}

func TestChatCompletion_AllowUnnamed(t *testing.T) {
	p := mock.New().OnChat(mock.ChatReply("ok"), nil)
	c, rec := newClient(p, WithPromptTemplateName(""), WithAllowUnnamedPrompts(true))
	_, err := c.CreateChatCompletion(context.Background(), ChatRequest{})
	require.NoError(t, err)
	require.Len(t, rec.Events(), 1)
	assert.Empty(t, rec.Events()[0].PromptTemplateName)
}

func TestChatCompletion_ProviderErrorIsReturnedAndReported(t *testing.T) {
	upstream := &llm.LLMError{Provider: "mock", Kind: llm.ErrKindRateLimit, HTTPStatus: 429, Message: "slow down", Raw: []byte(`{"error":"rate"}`)}
	p := mock.New().OnChat(schema.ChatCompletion{}, upstream)
	c, rec := newClient(p, WithChatID("c"))

	_, err := c.CreateChatCompletion(context.Background(), ChatRequest{Trace: Trace{TemplateParams: map[string]any{"q": "x"}}})
	assert.Same(t, upstream, err)

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Nil(t, evs[0].Response)
	assert.Equal(t, []string{upstream.Error(), `{"error":"rate"}`}, evs[0].ResponseErrors)
	assert.Equal(t, map[string]any{"q": "x"}, evs[0].Params)
	assert.Nil(t, evs[0].RawResponse)
}

func TestChatStream_EventAfterDrain(t *testing.T) {
	p := mock.New().OnChatStream(mock.TextChunks(schema.FinishReasonStop, "Hel", "lo", " world"), nil)
	c, rec := newClient(p)

	s, err := c.CreateChatCompletionStream(context.Background(), ChatRequest{
		ChatRequest: schema.ChatRequest{Model: "m", Messages: []schema.Message{schema.UserMessage("greet")}},
	})
	require.NoError(t, err)
	assert.True(t, p.ChatRequests()[0].Stream)
	assert.Empty(t, rec.Events(), "nothing is reported before the stream is consumed")

	var chunks int
	for tagged, err := range s.All() {
		require.NoError(t, err)
		assert.Equal(t, "fk-generated", tagged.FeedbackKey)
		chunks++
	}
	assert.Equal(t, 4, chunks)

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "Hello world", *evs[0].Response)
	assert.Equal(t, "stop", evs[0].ResponseMetrics.FinishReason)
	assert.Nil(t, evs[0].RawResponse)
	assert.NotContains(t, evs[0].ModelParameters, "stream")
	assert.True(t, p.ChatStreams()[0].Closed())
}

func TestStreams_RequestUsageUnlessSet(t *testing.T) {
	p := mock.New().
		OnChatStream(nil, nil).
		OnChatStream(nil, nil).
		OnCompletionStream(nil, nil)
	c, _ := newClient(p)
	ctx := context.Background()

	s, err := c.CreateChatCompletionStream(ctx, ChatRequest{ChatRequest: schema.ChatRequest{Model: "m"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	explicit := &schema.StreamOptions{IncludeUsage: false}
	s, err = c.CreateChatCompletionStream(ctx, ChatRequest{ChatRequest: schema.ChatRequest{Model: "m", StreamOptions: explicit}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cs, err := c.CreateCompletionStream(ctx, CompletionRequest{CompletionRequest: schema.CompletionRequest{Model: "m", Prompt: "hi"}})
	require.NoError(t, err)
	require.NoError(t, cs.Close())

	chats := p.ChatRequests()
	require.Len(t, chats, 2)
	require.NotNil(t, chats[0].StreamOptions)
	assert.True(t, chats[0].StreamOptions.IncludeUsage)
	assert.Same(t, explicit, chats[1].StreamOptions)

	comps := p.CompletionRequests()
	require.Len(t, comps, 1)
	require.NotNil(t, comps[0].StreamOptions)
	assert.True(t, comps[0].StreamOptions.IncludeUsage)
}

func TestChatStream_EarlyCloseReportsPartial(t *testing.T) {
	p := mock.New().OnChatStream(mock.TextChunks("", "one ", "two ", "three"), nil)
	c, rec := newClient(p)

	s, err := c.CreateChatCompletionStream(context.Background(), ChatRequest{})
	require.NoError(t, err)
	_, err = s.Recv()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "one ", *evs[0].Response)
	assert.Empty(t, evs[0].ResponseErrors)
}

func TestChatStream_Errors(t *testing.T) {
	t.Run("before the stream", func(t *testing.T) {
		boom := errors.New("connect failed")
		p := mock.New().OnChatStreamError(boom)
		c, rec := newClient(p)

		s, err := c.CreateChatCompletionStream(context.Background(), ChatRequest{})
		assert.Nil(t, s)
		assert.ErrorIs(t, err, boom)
		require.Len(t, rec.Events(), 1)
		assert.Equal(t, []string{"connect failed"}, rec.Events()[0].ResponseErrors)
	})

	t.Run("mid stream", func(t *testing.T) {
		reset := errors.New("reset")
		p := mock.New().OnChatStream(mock.TextChunks("", "par"), reset)
		c, rec := newClient(p)

		s, err := c.CreateChatCompletionStream(context.Background(), ChatRequest{})
		require.NoError(t, err)
		_, err = s.Recv()
		require.NoError(t, err)
		_, err = s.Recv()
		assert.ErrorIs(t, err, reset)

		evs := rec.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, []string{"reset"}, evs[0].ResponseErrors)
	})
}

func TestCompletion(t *testing.T) {
	text := func(s string, finish schema.FinishReason) schema.Completion {
		return schema.Completion{Choices: []schema.CompletionChoice{{Text: s, FinishReason: finish}}}
	}
	p := mock.New().
		OnCompletion(text("Paris", schema.FinishReasonStop), nil).
		OnCompletionStream([]schema.Completion{text("Ber", ""), text("lin", schema.FinishReasonLength)}, nil)
	c, rec := newClient(p)

	tmpl := template.Text("Capital of {country}:")
	resp, err := c.CreateCompletion(context.Background(), CompletionRequest{
		CompletionRequest: schema.CompletionRequest{Model: "instruct"},
		Trace:             Trace{Template: tmpl, TemplateParams: map[string]any{"country": "France"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fk-generated", resp.FeedbackKey)
	assert.Equal(t, "Capital of France:", p.CompletionRequests()[0].Prompt)

	s, err := c.CreateCompletionStream(context.Background(), CompletionRequest{
		CompletionRequest: schema.CompletionRequest{Model: "instruct", Prompt: "Capital of Germany:"},
	})
	require.NoError(t, err)
	for _, err := range s.All() {
		require.NoError(t, err)
	}

	evs := rec.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, "Paris", *evs[0].Response)
	assert.Equal(t, "Capital of {country}:", *evs[0].PromptTemplateText)
	assert.Equal(t, "completion", evs[0].ModelParameters["modelType"])
	assert.NotContains(t, evs[0].ModelParameters, "prompt")

	assert.Equal(t, "Berlin", *evs[1].Response)
	assert.Equal(t, "Capital of Germany:", *evs[1].PromptTemplateText)
	assert.Equal(t, "length", evs[1].ResponseMetrics.FinishReason)
}

func TestRedaction(t *testing.T) {
	reply := mock.ChatReply("Mail me at joe@example.com")
	reply.Choices[0].Message.ToolCalls = []schema.ToolCall{{
		ID: "t1", Type: schema.ToolCallTypeFunction,
		Function: schema.FunctionCall{Name: "notify", Arguments: `{"phone":"510.748.8230"}`},
	}}
	p := mock.New().OnChat(reply, nil)
	c, rec := newClient(p, WithRedactor(redact.NewRegex()))

	resp, err := c.CreateChatCompletion(context.Background(), ChatRequest{
		Trace: Trace{TemplateParams: map[string]any{"ip": "10.0.0.1", "n": 3}},
	})
	require.NoError(t, err)
	// The caller always sees the real response.
	assert.Equal(t, "Mail me at joe@example.com", *resp.Value.Choices[0].Message.Content)

	ev := rec.Events()[0]
	assert.Equal(t, "Mail me at EMAIL_ADDRESS", *ev.Response)
	assert.Equal(t, map[string]any{"ip": "IP_ADDRESS", "n": 3}, ev.Params)
	assert.Equal(t, `{"phone":"PHONE_NUMBER"}`, ev.ToolCalls[0].Arguments)
	assert.Nil(t, ev.RawResponse)
}

func TestRedaction_FailureIsBestEffort(t *testing.T) {
	p := mock.New().OnChat(mock.ChatReply("fine"), nil)
	c, rec := newClient(p, WithRedactor(failing{}))
	_, err := c.CreateChatCompletion(context.Background(), ChatRequest{Trace: Trace{TemplateParams: map[string]any{"a": "b"}}})
	require.NoError(t, err)
	ev := rec.Events()[0]
	assert.Equal(t, "fine", *ev.Response)
	assert.Equal(t, map[string]any{"a": "b"}, ev.Params)
}

type failing struct{}

func (failing) Redact(any) (any, error) { return nil, errors.New("nope") }

func TestFireAndForgetDrainsOnClose(t *testing.T) {
	p := mock.New()
	for i := 0; i < 5; i++ {
		p.OnChat(mock.ChatReply("ok"), nil)
	}
	c, rec := newClient(p, WithDispatchPolicy(telemetry.FireAndForget), WithChatID("chat"))

	for i := 0; i < 5; i++ {
		_, err := c.CreateChatCompletion(context.Background(), ChatRequest{})
		require.NoError(t, err)
	}
	require.NoError(t, c.Close(context.Background()))
	assert.Len(t, rec.Events(), 5)
}

func TestSendFeedback(t *testing.T) {
	c, rec := newClient(mock.New())
	rating := 1.0
	require.NoError(t, c.SendFeedback(context.Background(), telemetry.Feedback{FeedbackKey: "fk", Rating: &rating}))
	fb := rec.Feedback()
	require.Len(t, fb, 1)
	assert.Equal(t, "test-key", fb[0].APIKey)

	assert.ErrorIs(t, c.SendFeedback(context.Background(), telemetry.Feedback{}), telemetry.ErrMissingFeedbackKey)
}

func TestFromSettings(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collect/event", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	s := config.Settings{
		APIKey:             "settings-key",
		PromptTemplateName: "from-settings",
		ChatID:             "chat-s",
		RedactPII:          true,
		WaitForEvent:       true,
		APIPrefix:          srv.URL + "/collect",
		Rate:               config.RateSettings{EventsPerSecond: 100, Burst: 1},
	}
	p := mock.New().OnChat(mock.ChatReply("call 510.748.8230"), nil)
	c, err := FromSettings(p, s, nil)
	require.NoError(t, err)
	defer c.Close(context.Background())

	_, err = c.CreateChatCompletion(context.Background(), ChatRequest{})
	require.NoError(t, err)

	// Awaited: the event is already there.
	select {
	case body := <-got:
		assert.Equal(t, "settings-key", body["apiKey"])
		assert.Equal(t, "from-settings", body["promptTemplateName"])
		assert.Equal(t, "chat-s", body["chatId"])
		assert.Equal(t, "call PHONE_NUMBER", body["response"])
	default:
		t.Fatal("event was not delivered before the call returned")
	}

	_, err = FromSettings(p, config.Settings{Rate: config.RateSettings{EventsPerSecond: -1}}, nil)
	assert.Error(t, err)
}
