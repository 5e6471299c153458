// Package redact 在遥测数据离开进程前替换其中的个人敏感信息（PII）。
package redact

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Redactor replaces PII in an arbitrary JSON-like value and returns the
// redacted copy. The input is never modified.
type Redactor interface {
	Redact(v any) (any, error)
}

// Func adapts a string rewriter to a Redactor.
type Func func(string) string

func (f Func) Redact(v any) (any, error) { return walk(v, f) }

// Nop returns values unchanged.
type Nop struct{}

func (Nop) Redact(v any) (any, error) { return v, nil }

// walk rewrites every string reachable from v. Map keys are kept. Numbers are
// rewritten only when their text form contains PII, otherwise they keep their
// type. Values that are not plain JSON shapes go through a JSON round trip first.
func walk(v any, rewrite func(string) string) (any, error) {
	switch x := v.(type) {
	case nil, bool:
		return x, nil
	case string:
		return rewrite(x), nil
	case json.Number:
		return number(string(x), x, rewrite), nil
	case float64:
		return number(strconv.FormatFloat(x, 'f', -1, 64), x, rewrite), nil
	case int:
		return number(strconv.Itoa(x), x, rewrite), nil
	case int64:
		return number(strconv.FormatInt(x, 10), x, rewrite), nil
	case []string:
		out := make([]string, len(x))
		for i, s := range x {
			out[i] = rewrite(s)
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			r, err := walk(el, rewrite)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			r, err := walk(el, rewrite)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, s := range x {
			out[k] = rewrite(s)
		}
		return out, nil
	case json.RawMessage:
		var generic any
		if err := json.Unmarshal(x, &generic); err != nil {
			return nil, fmt.Errorf("redact: decode raw json: %w", err)
		}
		return walk(generic, rewrite)
	}

	if rv := reflect.ValueOf(v); isNilable(rv.Kind()) && rv.IsNil() {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("redact: encode %T: %w", v, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("redact: decode %T: %w", v, err)
	}
	return walk(generic, rewrite)
}

func number(text string, orig any, rewrite func(string) string) any {
	if r := rewrite(text); r != text {
		return r
	}
	return orig
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}
