//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/usecase"
)

func TestAnalysisCache_GetPut(t *testing.T) {
	ctx := context.Background()
	result := json.RawMessage(`{"analysis":"bullish"}`)

	t.Run("miss then hit round trip", func(t *testing.T) {
		repo := NewMockAnalysisRepo()
		c := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())

		if _, ok := c.Get(ctx, "edgar", "ACME", "10-K", "h1"); ok {
			t.Fatal("expected a miss on empty cache")
		}
		if !c.Put(ctx, "edgar", "ACME", "10-K", "h1", result) {
			t.Fatal("expected put to succeed")
		}
		got, ok := c.Get(ctx, "edgar", "ACME", "10-K", "h1")
		if !ok {
			t.Fatal("expected a hit after put")
		}
		if string(got) != string(result) {
			t.Errorf("expected %s, got %s", result, got)
		}
	})

	t.Run("hits increment the record hit count", func(t *testing.T) {
		repo := NewMockAnalysisRepo()
		c := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())

		c.Put(ctx, "edgar", "ACME", "10-K", "h1", result)
		c.Get(ctx, "edgar", "ACME", "10-K", "h1")
		c.Get(ctx, "edgar", "ACME", "10-K", "h1")

		key := model.AnalysisCacheKey("edgar", "ACME", "10-K", "h1")
		if n := repo.HitCount(key); n != 2 {
			t.Errorf("expected hit count 2, got %d", n)
		}
	})

	t.Run("different content hashes are distinct entries", func(t *testing.T) {
		repo := NewMockAnalysisRepo()
		c := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())

		c.Put(ctx, "edgar", "ACME", "10-K", "h1", result)
		if _, ok := c.Get(ctx, "edgar", "ACME", "10-K", "h2"); ok {
			t.Error("expected a miss for a different content hash")
		}
	})

	t.Run("storage read failure is a miss, not an error", func(t *testing.T) {
		repo := NewMockAnalysisRepo()
		repo.FindFunc = func(context.Context, string) (*model.AnalysisRecord, error) {
			return nil, errors.New("connection refused")
		}
		c := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())

		if _, ok := c.Get(ctx, "edgar", "ACME", "10-K", "h1"); ok {
			t.Error("expected a miss when storage is down")
		}
	})

	t.Run("storage write failure is a logged no-op", func(t *testing.T) {
		repo := NewMockAnalysisRepo()
		repo.UpsertFunc = func(context.Context, *model.AnalysisRecord) error {
			return errors.New("connection refused")
		}
		c := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())

		if c.Put(ctx, "edgar", "ACME", "10-K", "h1", result) {
			t.Error("expected put to report failure")
		}
	})
}

func TestAnalysisCache_Expiry(t *testing.T) {
	ctx := context.Background()
	result := json.RawMessage(`{"analysis":"stale"}`)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMockAnalysisRepo()
	c := usecase.NewAnalysisCacheAt(repo, time.Hour, newTestLogger(), func() time.Time { return now })

	c.Put(ctx, "edgar", "ACME", "10-K", "h1", result)
	if _, ok := c.Get(ctx, "edgar", "ACME", "10-K", "h1"); !ok {
		t.Fatal("expected a hit before expiry")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(ctx, "edgar", "ACME", "10-K", "h1"); ok {
		t.Fatal("expected a miss after expiry")
	}
	// Lazy expiry deleted the record.
	key := model.AnalysisCacheKey("edgar", "ACME", "10-K", "h1")
	if _, exists := repo.Recs[key]; exists {
		t.Error("expected expired record to be deleted on read")
	}
}

func TestAnalysisCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	result := json.RawMessage(`{}`)

	repo := NewMockAnalysisRepo()
	c := usecase.NewAnalysisCache(repo, time.Hour, newTestLogger())

	c.Put(ctx, "edgar", "ACME", "10-K", "h1", result)
	c.Put(ctx, "edgar", "ACME", "10-Q", "h2", result)
	c.Put(ctx, "edgar", "ACME", "8-K", "h3", result)
	c.Put(ctx, "edgar", "GLOBEX", "10-K", "h4", result)

	// Prefix match removes both 10-K and 10-Q for the subject, nothing else.
	if n := c.Invalidate(ctx, "ACME", "10-"); n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}
	if _, ok := c.Get(ctx, "edgar", "ACME", "8-K", "h3"); !ok {
		t.Error("expected unrelated document type to survive")
	}
	if _, ok := c.Get(ctx, "edgar", "GLOBEX", "10-K", "h4"); !ok {
		t.Error("expected other subject to survive")
	}

	// Empty prefix clears the whole subject.
	if n := c.Invalidate(ctx, "ACME", ""); n != 1 {
		t.Errorf("expected 1 invalidated, got %d", n)
	}
}

func TestAnalysisCache_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	result := json.RawMessage(`{}`)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMockAnalysisRepo()
	c := usecase.NewAnalysisCacheAt(repo, time.Hour, newTestLogger(), func() time.Time { return now })

	c.Put(ctx, "edgar", "ACME", "10-K", "h1", result)
	now = now.Add(30 * time.Minute)
	c.Put(ctx, "edgar", "GLOBEX", "10-K", "h2", result)

	now = now.Add(45 * time.Minute) // first record expired, second not
	if n := c.CleanupExpired(ctx); n != 1 {
		t.Errorf("expected 1 reclaimed, got %d", n)
	}
	if _, ok := c.Get(ctx, "edgar", "GLOBEX", "10-K", "h2"); !ok {
		t.Error("expected unexpired record to survive cleanup")
	}
}
