package repository

import (
	"context"
	"time"

	"market-ai-pipeline/internal/domain/model"
)

// UsageLogStore is the append-only durable log of backend calls. Append never
// rewrites history; Replay is a non-destructive scan and may run concurrently
// with writers.
type UsageLogStore interface {
	Append(ctx context.Context, ev *model.UsageEvent) error

	// Replay calls fn for every event with since <= timestamp < until, in log
	// order. A non-nil error from fn aborts the scan.
	Replay(ctx context.Context, since, until time.Time, fn func(*model.UsageEvent) error) error
}
