package ai

import (
	"context"

	"market-ai-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.CompletionAdapter = (*limitedAdapter)(nil)

// limitedAdapter bounds concurrent backend calls with a semaphore. Token
// counting is local and stays unthrottled.
type limitedAdapter struct {
	inner adapter.CompletionAdapter
	sem   chan struct{}
}

func NewLimitedAdapter(inner adapter.CompletionAdapter, maxConcurrent int) adapter.CompletionAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAdapter{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAdapter) Complete(ctx context.Context, model, prompt, systemContext string) (string, adapter.Usage, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, model, prompt, systemContext)
}

func (l *limitedAdapter) CountTokens(model, text string) (int, error) {
	return l.inner.CountTokens(model, text)
}
