// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"strings"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*MultiAdapter)(nil)

// MultiAdapter routes each call to the provider owning the requested model,
// so the gateway can fall between tiers of different vendors without knowing
// which SDK backs them.
type MultiAdapter struct {
	defaultProvider string
	byProvider      map[string]adapter.CompletionAdapter
	modelToProvider map[string]string
}

func NewMultiAdapter(
	defaultProvider string,
	byProvider map[string]adapter.CompletionAdapter,
	modelToProvider map[string]string,
) *MultiAdapter {
	return &MultiAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAdapter) pick(model string) adapter.CompletionAdapter {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return a
	}
	// last resort: first available
	for _, a := range m.byProvider {
		if a != nil {
			return a
		}
	}
	return nil
}

func (m *MultiAdapter) Complete(ctx context.Context, model, prompt, systemContext string) (string, adapter.Usage, error) {
	a := m.pick(model)
	if a == nil {
		return "", adapter.Usage{}, domain.ErrNoBackend
	}
	return a.Complete(ctx, model, prompt, systemContext)
}

func (m *MultiAdapter) CountTokens(model, text string) (int, error) {
	a := m.pick(model)
	if a == nil {
		return estimateTokens(model, text)
	}
	return a.CountTokens(model, text)
}
