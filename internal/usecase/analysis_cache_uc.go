package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/repository"
	"market-ai-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// AnalysisCache is the persisted per-document analysis cache. Caching here is
// strictly a performance optimization: storage read failures are misses and
// write failures are logged no-ops, never surfaced to callers.
type AnalysisCache interface {
	// Get returns the cached analysis for the composite key, or ok=false on
	// miss. Expired records are deleted on read (lazy expiry) and reported as
	// misses; hits increment the record's hit count.
	Get(ctx context.Context, sourceID, subjectID, documentType, contentHash string) (json.RawMessage, bool)

	// Put stores an analysis result under the composite key with the
	// configured TTL.
	Put(ctx context.Context, sourceID, subjectID, documentType, contentHash string, result json.RawMessage) bool

	// Invalidate removes every record for the subject whose document type
	// starts with the given prefix, for when a document is amended or
	// superseded. Returns the number of records removed.
	Invalidate(ctx context.Context, subjectID, documentTypePrefix string) int

	// CleanupExpired reclaims space held by expired records. Not required for
	// correctness; Get already treats expired records as misses.
	CleanupExpired(ctx context.Context) int
}

var _ AnalysisCache = (*analysisCache)(nil)

type analysisCache struct {
	// One coarse lock: the backing store does not guarantee safe concurrent
	// writers, and call volume is bounded by upstream batch sizes.
	mu   sync.Mutex
	repo repository.AnalysisCacheRepository
	ttl  time.Duration
	now  func() time.Time
	log  *zerolog.Logger
}

func NewAnalysisCache(repo repository.AnalysisCacheRepository, ttl time.Duration, logger *zerolog.Logger) *analysisCache {
	l := logger.With().Str("component", "AnalysisCache").Logger()
	return &analysisCache{repo: repo, ttl: ttl, now: time.Now, log: &l}
}

// NewAnalysisCacheAt is NewAnalysisCache with an injected clock.
func NewAnalysisCacheAt(repo repository.AnalysisCacheRepository, ttl time.Duration, logger *zerolog.Logger, now func() time.Time) *analysisCache {
	c := NewAnalysisCache(repo, ttl, logger)
	c.now = now
	return c
}

func (c *analysisCache) Get(ctx context.Context, sourceID, subjectID, documentType, contentHash string) (json.RawMessage, bool) {
	key := model.AnalysisCacheKey(sourceID, subjectID, documentType, contentHash)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.repo.Find(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.log.Warn().Err(err).Msg("analysis cache read failed; treating as miss")
		}
		metrics.IncCacheRequest("analysis", "miss")
		return nil, false
	}
	if rec.Expired(c.now()) {
		if err := c.repo.Delete(ctx, key); err != nil {
			c.log.Warn().Err(err).Msg("failed to delete expired analysis record")
		}
		metrics.IncCacheRequest("analysis", "expired")
		return nil, false
	}
	if err := c.repo.IncrementHit(ctx, key); err != nil {
		c.log.Debug().Err(err).Msg("failed to increment analysis hit count")
	}
	metrics.IncCacheRequest("analysis", "hit")
	return rec.Result, true
}

func (c *analysisCache) Put(ctx context.Context, sourceID, subjectID, documentType, contentHash string, result json.RawMessage) bool {
	now := c.now()
	rec := &model.AnalysisRecord{
		CacheKey:     model.AnalysisCacheKey(sourceID, subjectID, documentType, contentHash),
		SourceID:     sourceID,
		SubjectID:    subjectID,
		DocumentType: documentType,
		Result:       result,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.repo.Upsert(ctx, rec); err != nil {
		c.log.Warn().Err(err).Str("subject_id", subjectID).Str("document_type", documentType).Msg("analysis cache write failed")
		return false
	}
	return true
}

func (c *analysisCache) Invalidate(ctx context.Context, subjectID, documentTypePrefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.repo.DeleteMatching(ctx, subjectID, documentTypePrefix)
	if err != nil {
		c.log.Warn().Err(err).Str("subject_id", subjectID).Msg("analysis cache invalidation failed")
		return 0
	}
	if n > 0 {
		metrics.AddCacheInvalidations("analysis", "invalidate", n)
		c.log.Info().Str("subject_id", subjectID).Str("prefix", documentTypePrefix).Int("removed", n).Msg("invalidated analysis records")
	}
	return n
}

func (c *analysisCache) CleanupExpired(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.repo.DeleteExpired(ctx, c.now())
	if err != nil {
		c.log.Warn().Err(err).Msg("analysis cache cleanup failed")
		return 0
	}
	if n > 0 {
		metrics.AddCacheInvalidations("analysis", "expired", n)
	}
	return n
}
