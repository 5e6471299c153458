// Package llmlog wraps an llm.Provider so that every call is reported to the
// analytics collector.
//
// A wrapped call renders its prompt template, forwards the request, and
// returns the provider's response (tagged with a feedback key) or its error
// unchanged. Once the response is complete, which for streams means once the
// caller has drained or closed the stream, an event describing the exchange is
// redacted and dispatched. Telemetry failures never reach the caller.
//
//	client := llmlog.Wrap(provider,
//		llmlog.WithAPIKey(key),
//		llmlog.WithPromptTemplateName("support-answer"),
//	)
//	defer client.Close(ctx)
//
//	resp, err := client.CreateChatCompletion(ctx, llmlog.ChatRequest{
//		ChatRequest: schema.ChatRequest{Model: "gpt-4o-mini"},
//		Trace: llmlog.Trace{
//			Template:       template.Compile(messages),
//			TemplateParams: map[string]any{"question": q},
//		},
//	})
package llmlog
