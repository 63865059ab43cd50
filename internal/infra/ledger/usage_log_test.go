//go:build !integration

package ledger_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/infra/ledger"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func event(ts time.Time, provider string, cost float64) *model.UsageEvent {
	return &model.UsageEvent{
		Timestamp:    ts,
		Provider:     provider,
		Model:        "gpt-pro",
		Operation:    "completion",
		InputTokens:  100,
		OutputTokens: 50,
		TotalTokens:  150,
		TotalCost:    cost,
		Success:      true,
	}
}

func TestFileUsageLog_AppendAndReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage_log.jsonl")
	store := ledger.NewFileUsageLog(path, newTestLogger())
	defer store.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, event(base.Add(time.Duration(i)*time.Hour), "openai", 0.5)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var got []*model.UsageEvent
	err := store.Replay(ctx, base, base.Add(3*time.Hour), func(ev *model.UsageEvent) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	// Log order is preserved.
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Error("expected events in log order")
		}
	}
}

func TestFileUsageLog_ReplayWindowIsHalfOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage_log.jsonl")
	store := ledger.NewFileUsageLog(path, newTestLogger())
	defer store.Close()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, off := range []time.Duration{-time.Hour, 0, time.Hour, 2 * time.Hour} {
		if err := store.Append(ctx, event(base.Add(off), "openai", 1)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n := 0
	if err := store.Replay(ctx, base, base.Add(2*time.Hour), func(*model.UsageEvent) error {
		n++
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	// since is inclusive, until exclusive: only the 0h and 1h events qualify.
	if n != 2 {
		t.Errorf("expected 2 events in window, got %d", n)
	}
}

func TestFileUsageLog_ReplaySkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage_log.jsonl")
	store := ledger.NewFileUsageLog(path, newTestLogger())
	defer store.Close()

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Append(ctx, event(ts, "openai", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Simulate a torn write.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{\"timestamp\": gar\n"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()
	if err := store.Append(ctx, event(ts.Add(time.Minute), "openai", 1)); err != nil {
		t.Fatalf("append after garbage: %v", err)
	}

	n := 0
	if err := store.Replay(ctx, ts.Add(-time.Hour), ts.Add(time.Hour), func(*model.UsageEvent) error {
		n++
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 valid events, got %d", n)
	}
}

func TestFileUsageLog_ReplayMissingFileIsEmpty(t *testing.T) {
	store := ledger.NewFileUsageLog(filepath.Join(t.TempDir(), "absent.jsonl"), newTestLogger())
	err := store.Replay(context.Background(), time.Time{}, time.Now(), func(*model.UsageEvent) error {
		t.Fatal("expected no events")
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error for a missing log, got: %v", err)
	}
}

func TestFileUsageLog_FieldNamesAreStable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage_log.jsonl")
	store := ledger.NewFileUsageLog(path, newTestLogger())
	defer store.Close()

	if err := store.Append(ctx, event(time.Now().UTC(), "openai", 0.25)); err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, field := range []string{
		`"timestamp"`, `"provider"`, `"model"`, `"operation"`,
		`"input_tokens"`, `"output_tokens"`, `"total_tokens"`,
		`"input_cost"`, `"output_cost"`, `"total_cost"`, `"success"`,
	} {
		if !bytes.Contains(b, []byte(field)) {
			t.Errorf("expected field %s in log line", field)
		}
	}
}
