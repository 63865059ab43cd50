// Package memory holds in-process repository implementations used by dev mode
// and the demo binary, where a database is not available.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.AnalysisCacheRepository = (*AnalysisRepo)(nil)

type AnalysisRepo struct {
	mu   sync.Mutex
	recs map[string]*model.AnalysisRecord
}

func NewAnalysisRepo() *AnalysisRepo {
	return &AnalysisRepo{recs: map[string]*model.AnalysisRecord{}}
}

func (r *AnalysisRepo) Find(_ context.Context, cacheKey string) (*model.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[cacheKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *AnalysisRepo) Upsert(_ context.Context, rec *model.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.HitCount = 0
	r.recs[rec.CacheKey] = &cp
	return nil
}

func (r *AnalysisRepo) IncrementHit(_ context.Context, cacheKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[cacheKey]
	if !ok {
		return domain.ErrNotFound
	}
	rec.HitCount++
	return nil
}

func (r *AnalysisRepo) Delete(_ context.Context, cacheKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, cacheKey)
	return nil
}

func (r *AnalysisRepo) DeleteMatching(_ context.Context, subjectID, documentTypePrefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, rec := range r.recs {
		if rec.SubjectID == subjectID && strings.HasPrefix(rec.DocumentType, documentTypePrefix) {
			delete(r.recs, k)
			n++
		}
	}
	return n, nil
}

func (r *AnalysisRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, rec := range r.recs {
		if rec.Expired(now) {
			delete(r.recs, k)
			n++
		}
	}
	return n, nil
}
