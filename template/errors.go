package template

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingVariable reports a placeholder without a matching parameter.
	ErrMissingVariable = errors.New("template: missing variable")

	// ErrInvalidChatHistory reports a chat_history entry that cannot be expanded.
	ErrInvalidChatHistory = errors.New("template: invalid chat history binding")

	// ErrNotText is returned by FormatString for templates whose shape is not a string.
	ErrNotText = errors.New("template: not a text template")
)

// MissingVariableError names the placeholder that had no parameter.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template: can't format template, missing variable: %s", e.Name)
}

func (e *MissingVariableError) Unwrap() error { return ErrMissingVariable }

// ChatHistoryError describes why a chat_history entry could not be expanded.
// Name is empty when the entry declares no variable at all.
type ChatHistoryError struct {
	Name   string
	Reason string
}

func (e *ChatHistoryError) Error() string {
	if e.Name == "" {
		return "template: " + e.Reason
	}
	return fmt.Sprintf("template: chat_history variable %q: %s", e.Name, e.Reason)
}

func (e *ChatHistoryError) Unwrap() error { return ErrInvalidChatHistory }
