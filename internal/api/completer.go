package api

import "context"

// CompletionRequest is one prompt sent to the text-generation endpoint.
type CompletionRequest struct {
	// Prompt is the user message.
	Prompt string
	// System is an optional system prompt.
	System string
	// Model overrides the client's default model when set.
	Model string
	// MaxTokens caps the response length. Zero uses the client default.
	MaxTokens int64
	// Temperature is optional; nil leaves the provider default.
	Temperature *float64
}

// Completer is the single capability the heavy orchestrator needs from an LLM:
// send a prompt, get generated text or an error. Implementations must be safe
// for concurrent use; timeouts and cancellation arrive through ctx.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts an ordinary function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f(ctx, req).
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
