package repository

import (
	"context"
	"time"

	"market-ai-pipeline/internal/domain/model"
)

// AnalysisCacheRepository persists analysis records keyed by their composite
// cache key. Implementations do not apply TTL logic; the use case owns expiry
// and hit counting semantics.
type AnalysisCacheRepository interface {
	Find(ctx context.Context, cacheKey string) (*model.AnalysisRecord, error)
	Upsert(ctx context.Context, rec *model.AnalysisRecord) error
	IncrementHit(ctx context.Context, cacheKey string) error
	Delete(ctx context.Context, cacheKey string) error

	// DeleteMatching removes every record whose subject matches exactly and
	// whose document type starts with the given prefix. Returns rows removed.
	DeleteMatching(ctx context.Context, subjectID, documentTypePrefix string) (int, error)

	// DeleteExpired removes records with expires_at <= now. Returns rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
