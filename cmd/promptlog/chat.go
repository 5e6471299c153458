package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lgc202/promptlog/config"
	"github.com/lgc202/promptlog/llm"
	"github.com/lgc202/promptlog/llm/providers/goopenai"
	"github.com/lgc202/promptlog/llm/providers/openai_compat"
	"github.com/lgc202/promptlog/llm/schema"
	"github.com/lgc202/promptlog/llmlog"
	"github.com/lgc202/promptlog/telemetry"
)

// goOpenAI selects the go-openai adapter instead of an openai_compat preset.
const goOpenAI = "go-openai"

type chatOptions struct {
	message      string
	system       string
	templatePath string
	params       string
	templateName string
	provider     string
	model        string
	chatID       string
	stream       bool
	dryRun       bool
}

func newChatCmd(a *app) *cobra.Command {
	var o chatOptions
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "发送一次带日志的 chat completion 请求",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runChat(ctx, o)
		},
	}
	f := chatCmd.Flags()
	f.StringVarP(&o.message, "message", "m", "", "用户消息")
	f.StringVar(&o.system, "system", "", "系统提示词")
	f.StringVarP(&o.templatePath, "template", "t", "", "chat 模板文件（JSON 消息数组），替代 --message")
	f.StringVarP(&o.params, "params", "p", "", "模板参数：内联 JSON 对象或 JSON 文件路径")
	f.StringVar(&o.templateName, "template-name", "", "上报的模板名，覆盖配置中的 prompt_template_name")
	f.StringVar(&o.provider, "provider", "", "provider 预置名或 go-openai，覆盖配置中的 provider.preset")
	f.StringVar(&o.model, "model", "", "模型名，覆盖配置中的 provider.model")
	f.StringVar(&o.chatID, "chat-id", "", "会话 ID")
	f.BoolVarP(&o.stream, "stream", "s", false, "使用流式响应")
	f.BoolVar(&o.dryRun, "dry-run", false, "不上报事件，而是把事件 JSON 打印到标准输出")
	chatCmd.MarkFlagsMutuallyExclusive("message", "template")
	chatCmd.MarkFlagsOneRequired("message", "template")
	return chatCmd
}

func (a *app) runChat(ctx context.Context, o chatOptions) error {
	ps := a.settings.Provider
	if o.model != "" {
		ps.Model = o.model
	}
	name := ps.Preset
	if o.provider != "" {
		name = o.provider
	}
	provider, err := a.newProvider(name, ps, a.logger)
	if err != nil {
		return err
	}

	var (
		opts     []llmlog.Option
		recorder *telemetry.Recorder
	)
	if o.dryRun {
		recorder = telemetry.NewRecorder()
		opts = append(opts,
			llmlog.WithSender(recorder),
			llmlog.WithDispatcher(telemetry.NewDispatcher(recorder, telemetry.WithPolicy(telemetry.Awaited))),
		)
	}
	client, err := llmlog.FromSettings(provider, a.settings, a.logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			a.logger.Warn("telemetry not fully delivered", slog.Any("error", err))
		}
	}()

	req, err := o.request(ps.Model)
	if err != nil {
		return err
	}

	var key string
	if o.stream {
		key, err = a.streamChat(ctx, client, req)
	} else {
		key, err = a.bufferedChat(ctx, client, req)
	}
	if err != nil {
		return err
	}
	if key != "" {
		a.logger.Info("logged", slog.String("feedback_key", key))
	}

	if recorder != nil {
		events := recorder.Events()
		if len(events) == 0 {
			a.logger.Warn("no event recorded: the call has no template name and allow_unnamed_prompts is off")
		}
		return a.printEvents(events)
	}
	return nil
}

func (o chatOptions) request(model string) (llmlog.ChatRequest, error) {
	req := llmlog.ChatRequest{
		ChatRequest: schema.ChatRequest{Model: model},
		Trace: llmlog.Trace{
			TemplateName: o.templateName,
			ChatID:       o.chatID,
		},
	}
	if o.templatePath == "" {
		if o.system != "" {
			req.Messages = append(req.Messages, schema.SystemMessage(o.system))
		}
		req.Messages = append(req.Messages, schema.UserMessage(o.message))
		return req, nil
	}

	if o.system != "" {
		return req, errors.New("--system cannot be combined with --template; put the system message in the template")
	}
	tmpl, err := loadTemplate(o.templatePath, "")
	if err != nil {
		return req, err
	}
	params, err := loadParams(o.params)
	if err != nil {
		return req, err
	}
	req.Trace.Template = tmpl
	req.Trace.TemplateParams = params
	return req, nil
}

func (a *app) bufferedChat(ctx context.Context, client *llmlog.Client, req llmlog.ChatRequest) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	for _, c := range resp.Value.Choices {
		a.printf("%s\n", c.Message.Text())
		for _, tc := range c.Message.ToolCalls {
			a.printf("[tool_call] %s(%s)\n", tc.Function.Name, tc.Function.Arguments)
		}
	}
	return resp.FeedbackKey, nil
}

func (a *app) streamChat(ctx context.Context, client *llmlog.Client, req llmlog.ChatRequest) (string, error) {
	s, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	for chunk, err := range s.All() {
		if err != nil {
			a.printf("\n")
			return s.FeedbackKey(), err
		}
		for _, c := range chunk.Value.Choices {
			a.printf("%s", c.Delta.Content)
		}
	}
	a.printf("\n")
	return s.FeedbackKey(), nil
}

func (a *app) printEvents(events []telemetry.Event) error {
	for _, ev := range events {
		b, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			return err
		}
		a.printf("%s\n", b)
	}
	return nil
}

func buildProvider(name string, s config.ProviderSettings, logger *slog.Logger) (llm.Provider, error) {
	if name == goOpenAI {
		opts := []goopenai.Option{goopenai.WithDefaultModel(s.Model)}
		if s.BaseURL != "" {
			opts = append(opts, goopenai.WithBaseURL(s.BaseURL))
		}
		return goopenai.New(s.APIKey, opts...), nil
	}

	opts := []openai_compat.Option{
		openai_compat.WithLogger(logger),
		openai_compat.WithDefaultModel(s.Model),
	}
	if s.BaseURL != "" {
		opts = append(opts, openai_compat.WithBaseURL(s.BaseURL))
	}
	p, err := openai_compat.NewPreset(name, s.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	return p, nil
}
