package template

import (
	"encoding/json"
	"reflect"
	"slices"
	"sort"
)

const (
	roleKey     = "role"
	contentKey  = "content"
	chatHistory = "chat_history"
)

// Template is a compiled, immutable prompt shape. It is safe for concurrent use.
type Template struct {
	shape     any
	root      node
	variables []string
}

type node interface {
	format(params map[string]any) (any, error)
	collect(vs *varSet)
}

// Text compiles a single template string.
func Text(s string) *Template {
	return newTemplate(s, compileText(s))
}

// Compile compiles an arbitrary template shape.
//
// Strings, slices, arrays, Object values and string-keyed maps are walked.
// Plain maps are visited in sorted key order; use Object (or ParseJSON) when
// key order matters. Structs are compiled through their JSON encoding. Any
// other value is kept as an opaque literal.
func Compile(shape any) *Template {
	return newTemplate(shape, compileNode(shape))
}

func newTemplate(shape any, root node) *Template {
	var vs varSet
	root.collect(&vs)
	return &Template{shape: shape, root: root, variables: vs.list}
}

// Shape returns the original, unsubstituted template value.
func (t *Template) Shape() any { return t.shape }

// Variables returns the placeholder names in first-seen order.
func (t *Template) Variables() []string { return slices.Clone(t.variables) }

// Format substitutes params into a fresh copy of the shape. It fails without
// partial output when any placeholder or chat_history binding can't be resolved.
func (t *Template) Format(params map[string]any) (any, error) {
	return t.root.format(params)
}

// FormatString formats a template built from a single string.
func (t *Template) FormatString(params map[string]any) (string, error) {
	n, ok := t.root.(*textNode)
	if !ok {
		return "", ErrNotText
	}
	return n.formatString(params)
}

// FormatInto formats the template and decodes the result into dst through JSON.
func (t *Template) FormatInto(params map[string]any, dst any) error {
	out, err := t.Format(params)
	if err != nil {
		return err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

type literal struct{ v any }

func (l literal) format(map[string]any) (any, error) { return l.v, nil }
func (literal) collect(*varSet)                      {}

type arrayNode struct {
	elems []node
}

func (n *arrayNode) collect(vs *varSet) {
	for _, e := range n.elems {
		e.collect(vs)
	}
}

func (n *arrayNode) format(params map[string]any) (any, error) {
	out := make([]any, 0, len(n.elems))
	for _, e := range n.elems {
		if ch, ok := e.(*chatHistoryNode); ok {
			turns, err := ch.expand(params)
			if err != nil {
				return nil, err
			}
			out = append(out, turns...)
			continue
		}
		v, err := e.format(params)
		if err != nil {
			return nil, err
		}
		// Element results are flattened one level.
		if inner, ok := v.([]any); ok {
			out = append(out, inner...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

type field struct {
	key   *textNode
	value node
}

type objectNode struct {
	fields  []field
	ordered bool
}

func (n *objectNode) collect(vs *varSet) {
	for _, f := range n.fields {
		f.key.collect(vs)
		f.value.collect(vs)
	}
}

func (n *objectNode) format(params map[string]any) (any, error) {
	var obj Object
	var m map[string]any
	if n.ordered {
		obj = make(Object, 0, len(n.fields))
	} else {
		m = make(map[string]any, len(n.fields))
	}
	for _, f := range n.fields {
		k, err := f.key.formatString(params)
		if err != nil {
			return nil, err
		}
		v, err := f.value.format(params)
		if err != nil {
			return nil, err
		}
		if n.ordered {
			obj = append(obj, Field{Key: k, Value: v})
		} else {
			m[k] = v
		}
	}
	if n.ordered {
		return obj, nil
	}
	return m, nil
}

// chatHistoryNode stands for a {"role": "chat_history"} list element.
type chatHistoryNode struct {
	names []string
}

func (n *chatHistoryNode) collect(vs *varSet) {
	for _, name := range n.names {
		vs.add(name)
	}
}

func (n *chatHistoryNode) format(params map[string]any) (any, error) {
	turns, err := n.expand(params)
	if err != nil {
		return nil, err
	}
	return turns, nil
}

func (n *chatHistoryNode) expand(params map[string]any) ([]any, error) {
	if len(n.names) == 0 {
		return nil, &ChatHistoryError{Reason: "expected to find a variable in the content of the chat_history role, but none was found"}
	}
	var out []any
	for _, name := range n.names {
		v, ok := params[name]
		if !ok || v == nil {
			return nil, &ChatHistoryError{Name: name, Reason: "no value was found in the template parameters"}
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, &ChatHistoryError{Name: name, Reason: "value is not a list of messages"}
		}
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
	}
	return out, nil
}

func compileNode(v any) node {
	switch x := v.(type) {
	case nil:
		return literal{}
	case string:
		return compileText(x)
	case json.Number, bool, []byte, json.RawMessage:
		return literal{v: v}
	case Object:
		n := &objectNode{ordered: true, fields: make([]field, 0, len(x))}
		for _, f := range x {
			n.fields = append(n.fields, field{key: compileText(f.Key), value: compileNode(f.Value)})
		}
		return n
	case []any:
		return compileArray(len(x), func(i int) any { return x[i] })
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := &objectNode{fields: make([]field, 0, len(keys))}
		for _, k := range keys {
			n.fields = append(n.fields, field{key: compileText(k), value: compileNode(x[k])})
		}
		return n
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return compileText(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return literal{v: v}
		}
		return compileArray(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Array:
		return compileArray(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return literal{v: v}
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		n := &objectNode{fields: make([]field, 0, len(keys))}
		for _, k := range keys {
			n.fields = append(n.fields, field{key: compileText(k.String()), value: compileNode(rv.MapIndex(k).Interface())})
		}
		return n
	case reflect.Struct, reflect.Pointer:
		if decoded, ok := plainJSON(v); ok {
			return compileNode(decoded)
		}
	}
	return literal{v: v}
}

func compileArray(n int, at func(int) any) node {
	out := &arrayNode{elems: make([]node, 0, n)}
	for i := 0; i < n; i++ {
		el := at(i)
		if isChatHistory(el) {
			out.elems = append(out.elems, newChatHistoryNode(el))
			continue
		}
		out.elems = append(out.elems, compileNode(el))
	}
	return out
}

// plainJSON returns the decoded JSON form of struct values (and pointers to
// them), so their field order survives. Other values are returned unchanged.
func plainJSON(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return v, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return v, false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v, false
	}
	decoded, err := decodeOrdered(b)
	if err != nil {
		return v, false
	}
	return decoded, true
}

func lookup(v any, key string) (any, bool) {
	switch x := v.(type) {
	case Object:
		return x.Get(key)
	case map[string]any:
		val, ok := x[key]
		return val, ok
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String && !rv.IsNil() {
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if val.IsValid() {
			return val.Interface(), true
		}
	}
	return nil, false
}

func isChatHistory(v any) bool {
	if v == nil {
		return false
	}
	v, _ = plainJSON(v)
	role, ok := lookup(v, roleKey)
	if !ok {
		return false
	}
	s, ok := stringValue(role)
	return ok && s == chatHistory
}

// stringValue returns the content of strings and of named string types such
// as schema.Role.
func stringValue(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func newChatHistoryNode(el any) *chatHistoryNode {
	el, _ = plainJSON(el)
	content, _ := lookup(el, contentKey)
	s, _ := stringValue(content)
	return &chatHistoryNode{names: compileText(s).names()}
}
