// Package template implements prompt templates with named placeholders.
//
// A placeholder is a {name} token inside any string of a template shape. Shapes
// are strings or arbitrarily nested slices and objects built from strings and
// primitives, typically a list of chat messages:
//
//	t := template.Compile([]any{
//		map[string]any{"role": "system", "content": "You help {audience}."},
//		map[string]any{"role": "chat_history", "content": "{history}"},
//		map[string]any{"role": "user", "content": "{question}"},
//	})
//	t.Variables() // [audience history question]
//	msgs, err := t.Format(map[string]any{...})
//
// An element whose role is "chat_history" is replaced by the messages bound to
// the variables in its content, spliced into the surrounding list in order.
//
// Placeholders written as \{name\} are never substituted; formatting turns them
// into the literal text {name}.
package template
