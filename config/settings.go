package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// EnvPrefix 环境变量前缀，例如 PROMPTLOG_API_KEY、PROMPTLOG_PROVIDER_MODEL
const EnvPrefix = "PROMPTLOG"

// Settings 是 promptlog 的全部运行配置
type Settings struct {
	// 遥测
	APIKey              string `mapstructure:"api_key" json:"api_key"`
	PromptTemplateName  string `mapstructure:"prompt_template_name" json:"prompt_template_name"`
	AllowUnnamedPrompts bool   `mapstructure:"allow_unnamed_prompts" json:"allow_unnamed_prompts"`
	ChatID              string `mapstructure:"chat_id" json:"chat_id"`
	RedactPII           bool   `mapstructure:"redact_pii" json:"redact_pii"`
	WaitForEvent        bool   `mapstructure:"wait_for_event" json:"wait_for_event"`
	Debug               bool   `mapstructure:"debug" json:"debug"`

	// 采集端地址；ReportingURL / FeedbackURL 优先于 APIPrefix
	ReportingURL string `mapstructure:"reporting_url" json:"reporting_url"`
	FeedbackURL  string `mapstructure:"feedback_url" json:"feedback_url"`
	APIPrefix    string `mapstructure:"api_prefix" json:"api_prefix"`

	Provider ProviderSettings `mapstructure:"provider" json:"provider"`
	Rate     RateSettings     `mapstructure:"rate" json:"rate"`
}

// ProviderSettings 上游 LLM 服务
type ProviderSettings struct {
	// Preset 为 openai_compat 预置名（openai、deepseek、kimi、qwen、ollama）
	Preset  string `mapstructure:"preset" json:"preset"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	Model   string `mapstructure:"model" json:"model"`
}

// RateSettings 遥测出站限流，EventsPerSecond <= 0 表示不限流
type RateSettings struct {
	EventsPerSecond float64 `mapstructure:"events_per_second" json:"events_per_second"`
	Burst           int     `mapstructure:"burst" json:"burst"`
}

// Defaults 返回所有键的默认值，环境变量覆盖依赖于此
func Defaults() map[string]any {
	return map[string]any{
		"api_key":                "",
		"prompt_template_name":   "",
		"allow_unnamed_prompts":  false,
		"chat_id":                "",
		"redact_pii":             false,
		"wait_for_event":         false,
		"debug":                  false,
		"reporting_url":          "",
		"feedback_url":           "",
		"api_prefix":             "http://localhost:8787/api",
		"provider.preset":        "openai",
		"provider.base_url":      "",
		"provider.api_key":       "",
		"provider.model":         "",
		"rate.events_per_second": 0,
		"rate.burst":             1,
	}
}

// LoadSettings 加载 Settings。path 为空时只使用默认值与 PROMPTLOG_* 环境变量
func LoadSettings(path string, opts ...Option[Settings]) (*Config[Settings], error) {
	base := []Option[Settings]{WithDefaults[Settings](Defaults()), WithEnv[Settings](EnvPrefix)}
	c, err := Load(path, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := c.Get().Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 检查取值范围
func (s Settings) Validate() error {
	var errs []error
	if s.Rate.EventsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate.events_per_second must be >= 0, got %v", s.Rate.EventsPerSecond))
	}
	if s.Rate.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate.burst must be >= 0, got %d", s.Rate.Burst))
	}
	return errors.Join(errs...)
}

// LogLevel debug 打开时为 Debug，否则为 Info
func (s Settings) LogLevel() slog.Level {
	if s.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
