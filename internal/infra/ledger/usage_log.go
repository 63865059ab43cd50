// File: internal/infra/ledger/usage_log.go
package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

var _ repository.UsageLogStore = (*FileUsageLog)(nil)

// FileUsageLog is the durable usage log: append-only line-delimited JSON, one
// event per line. A single mutex serializes writers; Replay opens its own read
// handle so it can run concurrently with Append.
type FileUsageLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
	log  *zerolog.Logger
}

func NewFileUsageLog(path string, logger *zerolog.Logger) *FileUsageLog {
	l := logger.With().Str("component", "UsageLog").Logger()
	return &FileUsageLog{path: path, log: &l}
}

func (s *FileUsageLog) Append(ctx context.Context, ev *model.UsageEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open usage log: %w", err)
		}
		s.f = f
	}
	if _, err := s.f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	return nil
}

func (s *FileUsageLog) Replay(ctx context.Context, since, until time.Time, fn func(*model.UsageEvent) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open usage log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev model.UsageEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			// A torn or corrupt line must not poison reporting.
			s.log.Debug().Err(err).Msg("skipping malformed usage log line")
			continue
		}
		if ev.Timestamp.Before(since) || !ev.Timestamp.Before(until) {
			continue
		}
		if err := fn(&ev); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (s *FileUsageLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
