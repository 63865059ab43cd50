// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

// Task is one unit of work run by the pool. Errors are logged, never fatal.
type Task func(ctx context.Context) error

// Pool is a fixed-size worker pool with a bounded job queue. Submit applies
// back-pressure up to a caller-supplied wait; Stop drains queued jobs
// best-effort and is idempotent.
type Pool struct {
	wg       sync.WaitGroup
	jobs     chan Task
	quit     chan struct{}
	stopOnce sync.Once
	n        int
	drainFor time.Duration
	log      *zerolog.Logger
}

func NewPool(workers int, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	poolLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		jobs:     make(chan Task, queueSize),
		quit:     make(chan struct{}),
		n:        workers,
		drainFor: 10 * time.Second,
		log:      &poolLog,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					p.drain(ctx, id)
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

// drain finishes jobs already queued at shutdown. Nothing new is accepted
// once quit is closed, so this terminates.
func (p *Pool) drain(ctx context.Context, id int) {
	for {
		select {
		case task := <-p.jobs:
			p.run(ctx, id, task)
		default:
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	if task == nil {
		return
	}
	if err := task(ctx); err != nil {
		p.log.Error().Int("worker", id).Err(err).Msg("task error")
	}
}

// Submit queues a task, waiting up to maxWait when the queue is full.
// Returns domain.ErrQueueFull after the bounded wait and domain.ErrStopped
// once the pool is shutting down.
func (p *Pool) Submit(ctx context.Context, task Task, maxWait time.Duration) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return domain.ErrStopped
	default:
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case p.jobs <- task:
		return nil
	case <-p.quit:
		return domain.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return domain.ErrQueueFull
	}
}

// Stop signals workers to finish and waits up to the drain timeout for
// in-flight and queued jobs. Safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(p.drainFor):
			p.log.Warn().Dur("timeout", p.drainFor).Msg("stop timed out waiting for workers")
		}
	})
}
