package adapter

import "context"

// Usage for a single completion call, as reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionAdapter is the port for text completion. Implementations return a
// best-effort Usage even on partial failures; callers must treat any error as
// "no response" and never crash on it.
type CompletionAdapter interface {
	// Complete sends the prompt (with optional system context) to the given
	// model and returns the assistant text plus token usage. The deadline on
	// ctx bounds the call.
	Complete(ctx context.Context, model, prompt, systemContext string) (string, Usage, error)

	// CountTokens estimates prompt tokens for affordability checks when the
	// provider has not yet reported usage.
	CountTokens(model, text string) (int, error)
}
