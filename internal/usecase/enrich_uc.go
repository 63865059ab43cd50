package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/adapter"
)

// CompletionSubmitter is the slice of the request gateway the enricher needs.
type CompletionSubmitter interface {
	Submit(ctx context.Context, prompt, systemContext string, priority int, timeout time.Duration, cb model.Callback) (string, error)
}

// EnricherOptions tunes how enrichment prompts are issued.
type EnricherOptions struct {
	SourceID      string
	DocumentType  string
	SystemContext string
	Priority      int
	CallTimeout   time.Duration
}

var _ adapter.Enricher = (*DocumentEnricher)(nil)

// DocumentEnricher turns queued items into analysed documents: it hashes the
// payload, serves repeats from the persisted analysis cache, and sends misses
// through the completion gateway. The group key doubles as the subject ID, so
// a batch of items about the same subject reuses one cached analysis.
type DocumentEnricher struct {
	gw    CompletionSubmitter
	cache AnalysisCache
	opts  EnricherOptions
	log   *zerolog.Logger
}

func NewDocumentEnricher(gw CompletionSubmitter, cache AnalysisCache, opts EnricherOptions, logger *zerolog.Logger) *DocumentEnricher {
	if opts.SourceID == "" {
		opts.SourceID = "pipeline"
	}
	if opts.DocumentType == "" {
		opts.DocumentType = "analysis"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "DocumentEnricher").Logger()
	return &DocumentEnricher{gw: gw, cache: cache, opts: opts, log: &l}
}

type analysisPayload struct {
	Analysis string `json:"analysis"`
}

func (e *DocumentEnricher) EnrichItem(ctx context.Context, groupKey string, item any) (any, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	sum := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:])

	if cached, ok := e.cache.Get(ctx, e.opts.SourceID, groupKey, e.opts.DocumentType, contentHash); ok {
		return cached, nil
	}

	resp, err := e.complete(ctx, string(raw))
	if err != nil {
		return nil, err
	}

	result, err := json.Marshal(analysisPayload{Analysis: resp})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	e.cache.Put(ctx, e.opts.SourceID, groupKey, e.opts.DocumentType, contentHash, result)
	return json.RawMessage(result), nil
}

// complete issues one gateway request and waits for its callback.
func (e *DocumentEnricher) complete(ctx context.Context, document string) (string, error) {
	type outcome struct {
		resp string
		err  error
	}
	done := make(chan outcome, 1)

	_, err := e.gw.Submit(ctx, document, e.opts.SystemContext, e.opts.Priority, e.opts.CallTimeout, func(resp string, cbErr error) {
		done <- outcome{resp: resp, err: cbErr}
	})
	if err != nil {
		return "", err
	}

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
