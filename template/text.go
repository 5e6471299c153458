package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	// placeholder matches {name}; group 1 is the variable name.
	placeholder = regexp.MustCompile(`\{([a-zA-Z0-9_\[\].]+)\}`)
	// escaped matches \{name\}.
	escaped = regexp.MustCompile(`\\\{([a-zA-Z0-9_\[\].]+)\\\}`)
)

type span struct {
	start, end int
	name       string
}

// textNode is a compiled string leaf.
type textNode struct {
	src   string
	spans []span
}

func compileText(s string) *textNode {
	n := &textNode{src: s}
	for _, m := range placeholder.FindAllStringSubmatchIndex(s, -1) {
		n.spans = append(n.spans, span{start: m[0], end: m[1], name: s[m[2]:m[3]]})
	}
	return n
}

func (n *textNode) collect(vs *varSet) {
	for _, sp := range n.spans {
		vs.add(sp.name)
	}
}

func (n *textNode) names() []string {
	var vs varSet
	n.collect(&vs)
	return vs.list
}

func (n *textNode) format(params map[string]any) (any, error) {
	return n.formatString(params)
}

func (n *textNode) formatString(params map[string]any) (string, error) {
	if len(n.spans) == 0 {
		return unescape(n.src), nil
	}

	var b strings.Builder
	b.Grow(len(n.src))
	last := 0
	for _, sp := range n.spans {
		v, ok := params[sp.name]
		if !ok {
			return "", &MissingVariableError{Name: sp.name}
		}
		b.WriteString(n.src[last:sp.start])
		b.WriteString(stringify(v))
		last = sp.end
	}
	b.WriteString(n.src[last:])
	return unescape(b.String()), nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\{`) {
		return s
	}
	return escaped.ReplaceAllString(s, "{${1}}")
}

// stringify renders a parameter value for substitution into text.
// Composite values are rendered as JSON.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	}
	// Named scalar types (schema.Role and the like) render like their base type.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// varSet keeps first-seen order and drops duplicates.
type varSet struct {
	seen map[string]struct{}
	list []string
}

func (s *varSet) add(name string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.list = append(s.list, name)
}
