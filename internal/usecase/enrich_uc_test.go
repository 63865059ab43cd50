//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/usecase"
)

func newEnricher(sub *MockSubmitter, repo *MockAnalysisRepo) *usecase.DocumentEnricher {
	cache := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())
	return usecase.NewDocumentEnricher(sub, cache, usecase.EnricherOptions{
		SourceID:     "edgar",
		DocumentType: "filing",
	}, newTestLogger())
}

func TestDocumentEnricher_EnrichItem(t *testing.T) {
	ctx := context.Background()

	t.Run("miss goes through the gateway and is cached", func(t *testing.T) {
		sub := &MockSubmitter{}
		repo := NewMockAnalysisRepo()
		e := newEnricher(sub, repo)

		out, err := e.EnrichItem(ctx, "ACME", "quarterly report body")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		raw, ok := out.(json.RawMessage)
		if !ok {
			t.Fatalf("expected json.RawMessage, got %T", out)
		}
		var payload struct {
			Analysis string `json:"analysis"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if payload.Analysis == "" {
			t.Error("expected a non-empty analysis")
		}
		if sub.CallCount() != 1 {
			t.Errorf("expected 1 gateway call, got %d", sub.CallCount())
		}
		if len(repo.Recs) != 1 {
			t.Errorf("expected the analysis to be cached, got %d records", len(repo.Recs))
		}
	})

	t.Run("identical item served from cache without a gateway call", func(t *testing.T) {
		sub := &MockSubmitter{}
		repo := NewMockAnalysisRepo()
		e := newEnricher(sub, repo)

		if _, err := e.EnrichItem(ctx, "ACME", "same body"); err != nil {
			t.Fatalf("first enrich: %v", err)
		}
		if _, err := e.EnrichItem(ctx, "ACME", "same body"); err != nil {
			t.Fatalf("second enrich: %v", err)
		}
		if sub.CallCount() != 1 {
			t.Errorf("expected 1 gateway call for 2 identical items, got %d", sub.CallCount())
		}
	})

	t.Run("changed content misses the cache", func(t *testing.T) {
		sub := &MockSubmitter{}
		repo := NewMockAnalysisRepo()
		e := newEnricher(sub, repo)

		e.EnrichItem(ctx, "ACME", "v1 body")
		e.EnrichItem(ctx, "ACME", "v2 body")
		if sub.CallCount() != 2 {
			t.Errorf("expected 2 gateway calls for distinct content, got %d", sub.CallCount())
		}
	})

	t.Run("gateway rejection surfaces as an error", func(t *testing.T) {
		sub := &MockSubmitter{}
		sub.SubmitFunc = func(context.Context, string, string, int, time.Duration, model.Callback) (string, error) {
			return "", domain.ErrQueueFull
		}
		e := newEnricher(sub, NewMockAnalysisRepo())

		if _, err := e.EnrichItem(ctx, "ACME", "body"); !errors.Is(err, domain.ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got: %v", err)
		}
	})

	t.Run("callback error surfaces and nothing is cached", func(t *testing.T) {
		sub := &MockSubmitter{}
		sub.SubmitFunc = func(_ context.Context, _, _ string, _ int, _ time.Duration, cb model.Callback) (string, error) {
			cb("", errors.New("model overloaded"))
			return "req-1", nil
		}
		repo := NewMockAnalysisRepo()
		e := newEnricher(sub, repo)

		if _, err := e.EnrichItem(ctx, "ACME", "body"); err == nil {
			t.Fatal("expected an error from the failed completion")
		}
		if len(repo.Recs) != 0 {
			t.Errorf("expected nothing cached on failure, got %d records", len(repo.Recs))
		}
	})
}
