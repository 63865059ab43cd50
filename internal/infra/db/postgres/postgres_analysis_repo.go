package postgres

import (
	"context"
	"errors"
	"time"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.AnalysisCacheRepository = (*analysisRepo)(nil)

// analysisRepo persists analysis records in the analysis_cache table.
//
//	CREATE TABLE analysis_cache (
//	    cache_key         TEXT PRIMARY KEY,
//	    source_id         TEXT NOT NULL,
//	    subject_id        TEXT NOT NULL,
//	    document_type     TEXT NOT NULL,
//	    serialized_result JSONB NOT NULL,
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    expires_at        TIMESTAMPTZ NOT NULL,
//	    hit_count         INTEGER NOT NULL DEFAULT 0
//	);
type analysisRepo struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepo(pool *pgxpool.Pool) *analysisRepo {
	return &analysisRepo{pool: pool}
}

func (r *analysisRepo) Find(ctx context.Context, cacheKey string) (*model.AnalysisRecord, error) {
	const q = `
SELECT cache_key, source_id, subject_id, document_type, serialized_result, created_at, expires_at, hit_count
  FROM analysis_cache
 WHERE cache_key = $1;`

	var rec model.AnalysisRecord
	err := r.pool.QueryRow(ctx, q, cacheKey).Scan(
		&rec.CacheKey, &rec.SourceID, &rec.SubjectID, &rec.DocumentType,
		&rec.Result, &rec.CreatedAt, &rec.ExpiresAt, &rec.HitCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *analysisRepo) Upsert(ctx context.Context, rec *model.AnalysisRecord) error {
	const q = `
INSERT INTO analysis_cache (cache_key, source_id, subject_id, document_type, serialized_result, created_at, expires_at, hit_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (cache_key) DO UPDATE SET
  serialized_result = EXCLUDED.serialized_result,
  created_at = EXCLUDED.created_at,
  expires_at = EXCLUDED.expires_at,
  hit_count = 0;`

	_, err := r.pool.Exec(ctx, q,
		rec.CacheKey, rec.SourceID, rec.SubjectID, rec.DocumentType,
		rec.Result, rec.CreatedAt, rec.ExpiresAt, rec.HitCount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return domain.ErrOperationFailed
		}
		return err
	}
	return nil
}

func (r *analysisRepo) IncrementHit(ctx context.Context, cacheKey string) error {
	const q = `UPDATE analysis_cache SET hit_count = hit_count + 1 WHERE cache_key = $1;`
	tag, err := r.pool.Exec(ctx, q, cacheKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *analysisRepo) Delete(ctx context.Context, cacheKey string) error {
	const q = `DELETE FROM analysis_cache WHERE cache_key = $1;`
	_, err := r.pool.Exec(ctx, q, cacheKey)
	return err
}

func (r *analysisRepo) DeleteMatching(ctx context.Context, subjectID, documentTypePrefix string) (int, error) {
	const q = `DELETE FROM analysis_cache WHERE subject_id = $1 AND document_type LIKE $2 || '%';`
	tag, err := r.pool.Exec(ctx, q, subjectID, documentTypePrefix)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *analysisRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	const q = `DELETE FROM analysis_cache WHERE expires_at <= $1;`
	tag, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
