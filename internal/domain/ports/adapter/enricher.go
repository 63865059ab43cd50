package adapter

import "context"

// Enricher is the port for the externally supplied per-item enrichment
// function. It may do network I/O and may fail; the dispatcher isolates
// failures per task. Tasks sharing a group key are handed to the same worker
// job sequentially, so implementations can reuse a key-level prefetch.
type Enricher interface {
	EnrichItem(ctx context.Context, groupKey string, item any) (any, error)
}

// EnrichFunc adapts a plain function to the Enricher port.
type EnrichFunc func(ctx context.Context, groupKey string, item any) (any, error)

func (f EnrichFunc) EnrichItem(ctx context.Context, groupKey string, item any) (any, error) {
	return f(ctx, groupKey, item)
}
