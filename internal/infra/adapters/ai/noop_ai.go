package ai

import (
	"context"
	"strings"

	"market-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*NoopAdapter)(nil)

// NoopAdapter answers every prompt with a canned echo. Used by the demo
// binary and dev mode so the pipeline runs without API keys.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

func (n *NoopAdapter) Complete(_ context.Context, model, prompt, _ string) (string, adapter.Usage, error) {
	reply := "[noop " + model + "] " + prompt
	u := adapter.Usage{
		PromptTokens:     len(strings.Fields(prompt)),
		CompletionTokens: len(strings.Fields(reply)),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return reply, u, nil
}

func (n *NoopAdapter) CountTokens(_ string, text string) (int, error) {
	return len(strings.Fields(text)), nil
}
