//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Mock UsageLogStore

type MockUsageLogStore struct {
	mu     sync.Mutex
	Events []*model.UsageEvent

	AppendFunc func(ctx context.Context, ev *model.UsageEvent) error
}

func NewMockUsageLogStore() *MockUsageLogStore { return &MockUsageLogStore{} }

func (m *MockUsageLogStore) Append(ctx context.Context, ev *model.UsageEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MockUsageLogStore) Replay(_ context.Context, since, until time.Time, fn func(*model.UsageEvent) error) error {
	m.mu.Lock()
	evs := make([]*model.UsageEvent, len(m.Events))
	copy(evs, m.Events)
	m.mu.Unlock()
	for _, ev := range evs {
		if ev.Timestamp.Before(since) || !ev.Timestamp.Before(until) {
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// --- Mock AnalysisCacheRepository

type MockAnalysisRepo struct {
	mu   sync.Mutex
	Recs map[string]*model.AnalysisRecord

	FindFunc   func(ctx context.Context, cacheKey string) (*model.AnalysisRecord, error)
	UpsertFunc func(ctx context.Context, rec *model.AnalysisRecord) error
}

func NewMockAnalysisRepo() *MockAnalysisRepo {
	return &MockAnalysisRepo{Recs: map[string]*model.AnalysisRecord{}}
}

func (m *MockAnalysisRepo) Find(ctx context.Context, cacheKey string) (*model.AnalysisRecord, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, cacheKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Recs[cacheKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockAnalysisRepo) Upsert(ctx context.Context, rec *model.AnalysisRecord) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.HitCount = 0
	m.Recs[rec.CacheKey] = &cp
	return nil
}

func (m *MockAnalysisRepo) IncrementHit(_ context.Context, cacheKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Recs[cacheKey]
	if !ok {
		return domain.ErrNotFound
	}
	rec.HitCount++
	return nil
}

func (m *MockAnalysisRepo) Delete(_ context.Context, cacheKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Recs, cacheKey)
	return nil
}

func (m *MockAnalysisRepo) DeleteMatching(_ context.Context, subjectID, documentTypePrefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, rec := range m.Recs {
		if rec.SubjectID == subjectID && strings.HasPrefix(rec.DocumentType, documentTypePrefix) {
			delete(m.Recs, k)
			n++
		}
	}
	return n, nil
}

func (m *MockAnalysisRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, rec := range m.Recs {
		if rec.Expired(now) {
			delete(m.Recs, k)
			n++
		}
	}
	return n, nil
}

func (m *MockAnalysisRepo) HitCount(cacheKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.Recs[cacheKey]; ok {
		return rec.HitCount
	}
	return 0
}

// --- Mock CompletionSubmitter

type MockSubmitter struct {
	mu    sync.Mutex
	Calls []string

	SubmitFunc func(ctx context.Context, prompt, systemContext string, priority int, timeout time.Duration, cb model.Callback) (string, error)
}

func (m *MockSubmitter) Submit(ctx context.Context, prompt, systemContext string, priority int, timeout time.Duration, cb model.Callback) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, prompt)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, prompt, systemContext, priority, timeout, cb)
	}
	cb("analysis of: "+prompt, nil)
	return "req-1", nil
}

func (m *MockSubmitter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
