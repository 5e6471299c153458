package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadSettings_DefaultsOnly(t *testing.T) {
	c, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	s := c.Get()
	if s.APIPrefix != "http://localhost:8787/api" {
		t.Errorf("APIPrefix = %q", s.APIPrefix)
	}
	if s.Provider.Preset != "openai" {
		t.Errorf("Provider.Preset = %q", s.Provider.Preset)
	}
	if s.Rate.Burst != 1 || s.Rate.EventsPerSecond != 0 {
		t.Errorf("Rate = %+v", s.Rate)
	}
	if c.Path() != "" {
		t.Errorf("Path() = %q, want empty", c.Path())
	}
}

func TestLoadSettings_Env(t *testing.T) {
	t.Setenv("PROMPTLOG_API_KEY", "env-key")
	t.Setenv("PROMPTLOG_REDACT_PII", "true")
	t.Setenv("PROMPTLOG_PROVIDER_MODEL", "gpt-4o-mini")
	t.Setenv("PROMPTLOG_RATE_EVENTS_PER_SECOND", "2.5")

	c, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	s := c.Get()
	if s.APIKey != "env-key" || !s.RedactPII || s.Provider.Model != "gpt-4o-mini" || s.Rate.EventsPerSecond != 2.5 {
		t.Errorf("env not applied: %+v", s)
	}
}

func TestLoadSettings_FileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptlog.yaml")
	writeFile(t, path, `
api_key: file-key
prompt_template_name: greeting
chat_id: chat-1
provider:
  preset: deepseek
  model: deepseek-chat
rate:
  events_per_second: 5
  burst: 10
`)
	t.Setenv("PROMPTLOG_CHAT_ID", "chat-env")

	c, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	s := c.Get()
	if s.APIKey != "file-key" || s.PromptTemplateName != "greeting" {
		t.Errorf("file values not applied: %+v", s)
	}
	if s.ChatID != "chat-env" {
		t.Errorf("ChatID = %q, env should win over file", s.ChatID)
	}
	if s.Provider.Preset != "deepseek" || s.Provider.Model != "deepseek-chat" {
		t.Errorf("Provider = %+v", s.Provider)
	}
	if s.Rate.EventsPerSecond != 5 || s.Rate.Burst != 10 {
		t.Errorf("Rate = %+v", s.Rate)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptlog.yaml")
	writeFile(t, path, "rate:\n  events_per_second: -1\n")
	if _, err := LoadSettings(path); err == nil {
		t.Fatal("expected validation error")
	}

	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfig_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptlog.json")
	writeFile(t, path, `{"debug": false, "api_key": "a"}`)

	c, err := LoadSettings(path, WithDebounce[Settings](20*time.Millisecond))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	changed := make(chan Settings, 1)
	c.OnChange(func(old, new Settings) {
		if !Changed(old.Debug, new.Debug) {
			return
		}
		select {
		case changed <- new:
		default:
		}
	})

	writeFile(t, path, `{"debug": true, "api_key": "a"}`)

	select {
	case s := <-changed:
		if !s.Debug {
			t.Errorf("callback got Debug = false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnChange callback not called")
	}
	if !c.Get().Debug {
		t.Error("Get() did not observe the reload")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	type nested struct {
		Tags []string `mapstructure:"tags" json:"tags"`
	}
	c, err := Load[nested]("", WithDefaults[nested](map[string]any{"tags": []string{"a"}}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := c.Get()
	got.Tags[0] = "mutated"
	if c.Get().Tags[0] != "a" {
		t.Error("Get() leaked internal state")
	}
}

func TestSettings_LogLevel(t *testing.T) {
	if (Settings{Debug: true}).LogLevel().String() != "DEBUG" {
		t.Error("debug settings should log at DEBUG")
	}
	if (Settings{}).LogLevel().String() != "INFO" {
		t.Error("default settings should log at INFO")
	}
}
