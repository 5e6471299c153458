package llmlog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lgc202/promptlog/llm/schema"
	"github.com/lgc202/promptlog/template"
)

// ErrTemplateParams is returned when a request carries a template but no
// params to render it with.
var ErrTemplateParams = errors.New("llmlog: template requires params, but none were provided")

// Trace is the per-call telemetry metadata. Zero fields fall back to the
// Client's defaults.
type Trace struct {
	// Template, when set, is rendered with TemplateParams and replaces the
	// request's Messages (chat) or Prompt (completion).
	Template       *template.Template
	TemplateParams map[string]any

	TemplateName  string
	FeedbackKey   string
	ChatID        string
	ParentEventID string
	// ChainID defaults to ParentEventID.
	ChainID string
	Context map[string]any
	APIKey  string
}

type ChatRequest struct {
	schema.ChatRequest
	Trace Trace
}

type CompletionRequest struct {
	schema.CompletionRequest
	Trace Trace
}

// call is a prepared request plus everything the event needs later.
type call struct {
	trace        Trace
	templateName string
	feedbackKey  string
	record       bool

	promptText *string
	promptChat any

	tools       []schema.Tool
	modelParams map[string]any
}

func (c *Client) prepareChat(req ChatRequest) (schema.ChatRequest, call, error) {
	wire := req.ChatRequest
	cl := c.newCall(req.Trace)
	cl.promptChat = wire.Messages

	if t := req.Trace.Template; t != nil {
		if req.Trace.TemplateParams == nil {
			return wire, cl, ErrTemplateParams
		}
		var msgs []schema.Message
		if err := t.FormatInto(req.Trace.TemplateParams, &msgs); err != nil {
			return wire, cl, fmt.Errorf("llmlog: render chat template: %w", err)
		}
		wire.Messages = msgs
		cl.promptChat = t.Shape()
	}

	cl.tools = wire.Tools
	cl.modelParams = c.modelParameters("chat", wire, "messages", "tools")
	return wire, cl, nil
}

func (c *Client) prepareCompletion(req CompletionRequest) (schema.CompletionRequest, call, error) {
	wire := req.CompletionRequest
	cl := c.newCall(req.Trace)
	prompt := wire.Prompt
	cl.promptText = &prompt

	if t := req.Trace.Template; t != nil {
		if req.Trace.TemplateParams == nil {
			return wire, cl, ErrTemplateParams
		}
		rendered, err := t.FormatString(req.Trace.TemplateParams)
		if err != nil {
			return wire, cl, fmt.Errorf("llmlog: render prompt template: %w", err)
		}
		wire.Prompt = rendered
		if s, ok := t.Shape().(string); ok {
			cl.promptText = &s
		}
	}

	cl.modelParams = c.modelParameters("completion", wire, "prompt")
	return wire, cl, nil
}

func (c *Client) newCall(tr Trace) call {
	name := tr.TemplateName
	if name == "" {
		name = c.templateName
	}
	cl := call{
		trace:        tr,
		templateName: name,
		record:       name != "" || c.allowUnnamed,
	}
	if cl.record {
		cl.feedbackKey = tr.FeedbackKey
		if cl.feedbackKey == "" {
			cl.feedbackKey = c.newFeedbackKey()
		}
	}
	return cl
}

// modelParameters flattens the wire request into the collector's
// modelParameters object, minus the prompt itself and transport flags.
func (c *Client) modelParameters(modelType string, wire any, drop ...string) map[string]any {
	params := map[string]any{}
	if b, err := json.Marshal(wire); err == nil {
		_ = json.Unmarshal(b, &params)
	}
	for _, k := range append(drop, "stream", "stream_options") {
		delete(params, k)
	}
	params["modelProvider"] = c.providerName
	params["modelType"] = modelType
	return params
}
