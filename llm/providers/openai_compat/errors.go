package openai_compat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lgc202/promptlog/httpx"
	"github.com/lgc202/promptlog/llm"
)

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (p *Provider) mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindCanceled, Message: "request canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindTimeout, Message: "request deadline exceeded", Cause: err}
	}

	he, ok := httpx.AsError(err)
	if !ok {
		// JSON decode of a 2xx body.
		var se *json.SyntaxError
		var te *json.UnmarshalTypeError
		if errors.As(err, &se) || errors.As(err, &te) {
			return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindParse, Message: "failed to decode response", Cause: err}
		}
		return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindUnknown, Message: err.Error(), Cause: err}
	}
	if he.StatusCode == 0 {
		return &llm.LLMError{Provider: p.name, Kind: llm.ErrKindUnknown, Message: "transport error", Cause: err}
	}

	msg, code, _ := parseErrorEnvelope(he.RawBody)
	if msg == "" {
		msg = http.StatusText(he.StatusCode)
	}
	return &llm.LLMError{
		Provider:     p.name,
		Kind:         llm.KindFromStatus(he.StatusCode),
		HTTPStatus:   he.StatusCode,
		ProviderCode: code,
		Message:      msg,
		Raw:          he.RawBody,
		Cause:        err,
	}
}

// parseErrorEnvelope extracts {"error":{"message","code"}}; ok is false when raw is not one.
func parseErrorEnvelope(raw []byte) (message, code string, ok bool) {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == nil {
		return "", "", false
	}
	switch c := env.Error.Code.(type) {
	case nil:
	case string:
		code = c
	default:
		b, _ := json.Marshal(c)
		code = string(b)
	}
	return env.Error.Message, code, true
}
