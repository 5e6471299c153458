package openai_compat

import (
	"fmt"
	"slices"
	"strings"
)

// Preset holds the endpoint layout of a known OpenAI-compatible vendor.
type Preset struct {
	Name           string
	BaseURL        string
	ChatPath       string
	CompletionPath string
}

var presets = map[string]Preset{
	"openai":   {Name: "openai", BaseURL: "https://api.openai.com", ChatPath: "/v1/chat/completions", CompletionPath: "/v1/completions"},
	"deepseek": {Name: "deepseek", BaseURL: "https://api.deepseek.com", ChatPath: "/chat/completions", CompletionPath: "/beta/completions"},
	"kimi":     {Name: "kimi", BaseURL: "https://api.moonshot.cn/v1", ChatPath: "/chat/completions", CompletionPath: "/completions"},
	"qwen":     {Name: "qwen", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", ChatPath: "/chat/completions", CompletionPath: "/completions"},
	"ollama":   {Name: "ollama", BaseURL: "http://localhost:11434", ChatPath: "/v1/chat/completions", CompletionPath: "/v1/completions"},
}

// Presets returns the known preset names, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// LookupPreset finds a preset by case-insensitive name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// NewPreset returns a Provider configured for the named vendor. opts are
// applied after the preset, so WithBaseURL still overrides it.
func NewPreset(name, apiKey string, opts ...Option) (*Provider, error) {
	ps, ok := LookupPreset(name)
	if !ok {
		return nil, fmt.Errorf("openai_compat: unknown preset %q (known: %s)", name, strings.Join(Presets(), ", "))
	}
	return New(apiKey, append([]Option{
		WithProviderName(ps.Name),
		WithBaseURL(ps.BaseURL),
		WithChatCompletionsPath(ps.ChatPath),
		WithCompletionsPath(ps.CompletionPath),
	}, opts...)...)
}
