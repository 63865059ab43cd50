// File: internal/infra/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/adapter"
	"market-ai-pipeline/internal/infra/logging"
	"market-ai-pipeline/internal/infra/metrics"
	"market-ai-pipeline/internal/infra/worker"

	"github.com/rs/zerolog"
)

// Options configures a Dispatcher.
type Options struct {
	Workers        int
	QueueSize      int
	EnqueueTimeout time.Duration
	BatchSize      int
	BatchTimeout   time.Duration
	ResultMaxAge   time.Duration
	SweepInterval  time.Duration
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.EnqueueTimeout <= 0 {
		o.EnqueueTimeout = 2 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 2 * time.Second
	}
	if o.ResultMaxAge <= 0 {
		o.ResultMaxAge = 10 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
}

// Dispatcher accepts enrichment tasks, assembles batches by count or timeout,
// groups each batch by key so tasks sharing a key can amortize one expensive
// lookup, and fans groups out to a bounded worker pool. Results are held until
// claimed (pop-on-read) or swept after ResultMaxAge.
type Dispatcher struct {
	opts     Options
	enricher adapter.Enricher
	pool     *worker.Pool
	tasks    chan *model.EnrichmentTask
	quit     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
	log      *zerolog.Logger

	mu        sync.Mutex
	results   map[string]*model.EnrichmentResult
	notify    chan struct{}
	lastSweep time.Time
}

func New(opts Options, enricher adapter.Enricher, logger *zerolog.Logger) *Dispatcher {
	opts.applyDefaults()
	dispLog := logger.With().Str("component", "Dispatcher").Logger()
	return &Dispatcher{
		opts:     opts,
		enricher: enricher,
		pool:     worker.NewPool(opts.Workers, opts.QueueSize, logger),
		tasks:    make(chan *model.EnrichmentTask, opts.QueueSize),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		log:      &dispLog,
		results:  map[string]*model.EnrichmentResult{},
		notify:   make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
	go d.runLoop(ctx)
	d.log.Info().Int("workers", d.opts.Workers).Int("batch_size", d.opts.BatchSize).
		Dur("batch_timeout", d.opts.BatchTimeout).Msg("dispatcher started")
}

// Stop stops intake, flushes the batch being collected, and drains the worker
// pool. Idempotent.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
		select {
		case <-d.loopDone:
		case <-time.After(d.opts.BatchTimeout + 5*time.Second):
			d.log.Warn().Msg("stop timed out waiting for batch loop")
		}
		d.pool.Stop()
		d.log.Info().Msg("dispatcher stopped")
	})
}

// Enqueue submits one item for enrichment, blocking up to EnqueueTimeout when
// the queue is full. A timed-out submission is dropped and logged, never a
// crash; callers must retry at a higher layer.
func (d *Dispatcher) Enqueue(ctx context.Context, item any, groupKey string) (string, error) {
	select {
	case <-d.quit:
		return "", domain.ErrStopped
	default:
	}
	if groupKey == "" {
		return "", domain.ErrInvalidArgument
	}

	task := model.NewEnrichmentTask(item, groupKey)
	timer := time.NewTimer(d.opts.EnqueueTimeout)
	defer timer.Stop()

	select {
	case d.tasks <- task:
		metrics.SetQueueDepth("dispatcher", len(d.tasks))
		return task.ID, nil
	case <-d.quit:
		return "", domain.ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		metrics.IncDropped("dispatcher")
		d.log.Warn().Str("group_key", groupKey).Dur("waited", d.opts.EnqueueTimeout).
			Msg("task queue saturated; dropping submission")
		return "", domain.ErrQueueFull
	}
}

// Poll waits up to timeout for the task's result and claims it: a second Poll
// for the same ID returns absent. Absence on timeout is not an error.
func (d *Dispatcher) Poll(ctx context.Context, taskID string, timeout time.Duration) (*model.EnrichmentResult, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		d.mu.Lock()
		if res, ok := d.results[taskID]; ok {
			delete(d.results, taskID)
			d.mu.Unlock()
			return res, true
		}
		ch := d.notify
		d.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// runLoop is the batch accumulator: collect up to BatchSize tasks or until
// BatchTimeout after the first one, whichever comes first, then dispatch.
func (d *Dispatcher) runLoop(ctx context.Context) {
	defer close(d.loopDone)
	for {
		batch, alive := d.collect(ctx)
		if len(batch) > 0 {
			d.dispatchBatch(ctx, batch)
		}
		d.maybeSweep()
		if !alive {
			return
		}
	}
}

func (d *Dispatcher) collect(ctx context.Context) ([]*model.EnrichmentTask, bool) {
	var batch []*model.EnrichmentTask

	// Wait for the first task; the batch timeout starts when it arrives.
	select {
	case t := <-d.tasks:
		batch = append(batch, t)
	case <-d.quit:
		return d.drainPending(), false
	case <-ctx.Done():
		return nil, false
	case <-time.After(d.opts.SweepInterval):
		// Idle wake-up so sweeping happens even without traffic.
		return nil, true
	}

	deadline := time.NewTimer(d.opts.BatchTimeout)
	defer deadline.Stop()
	for len(batch) < d.opts.BatchSize {
		select {
		case t := <-d.tasks:
			batch = append(batch, t)
		case <-deadline.C:
			return batch, true
		case <-d.quit:
			// Tasks still buffered were accepted; flush them with the batch.
			return append(batch, d.drainPending()...), false
		case <-ctx.Done():
			return batch, false
		}
	}
	return batch, true
}

// drainPending empties the queue at shutdown so already-accepted tasks still
// produce results.
func (d *Dispatcher) drainPending() []*model.EnrichmentTask {
	var batch []*model.EnrichmentTask
	for {
		select {
		case t := <-d.tasks:
			batch = append(batch, t)
		default:
			return batch
		}
	}
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, batch []*model.EnrichmentTask) {
	metrics.ObserveBatchSize(len(batch))
	metrics.SetQueueDepth("dispatcher", len(d.tasks))

	groups := map[string][]*model.EnrichmentTask{}
	for _, t := range batch {
		groups[t.GroupKey] = append(groups[t.GroupKey], t)
	}
	d.log.Debug().Int("tasks", len(batch)).Int("groups", len(groups)).Msg("dispatching batch")

	for key, tasks := range groups {
		key, tasks := key, tasks
		job := func(jobCtx context.Context) error {
			d.runGroup(jobCtx, key, tasks)
			return nil
		}
		if err := d.pool.Submit(ctx, job, d.opts.EnqueueTimeout); err != nil {
			// The pool is saturated or stopping; run inline so every accepted
			// task still gets a result.
			d.log.Warn().Err(err).Str("group_key", key).Msg("pool submit failed; running group inline")
			d.runGroup(ctx, key, tasks)
		}
	}
}

// runGroup enriches one group's tasks sequentially. A failing task never
// aborts its group; it stores a marked-failed result so pollers do not hang.
func (d *Dispatcher) runGroup(ctx context.Context, groupKey string, tasks []*model.EnrichmentTask) {
	log := logging.With(logging.WithGroupKey(ctx, groupKey), d.log)
	for _, t := range tasks {
		value, err := d.enrichOne(ctx, t)
		res := &model.EnrichmentResult{
			TaskID:      t.ID,
			Value:       value,
			CompletedAt: time.Now(),
		}
		if err != nil {
			res.Failed = true
			res.Err = err.Error()
			// Best-effort default: hand the caller back its own payload.
			res.Value = t.Payload
			log.Warn().Err(err).Str("task_id", t.ID).Msg("enrichment failed")
			metrics.IncTask("dispatcher", "failed")
		} else {
			metrics.IncTask("dispatcher", "ok")
		}
		d.storeResult(res)
	}
}

func (d *Dispatcher) enrichOne(ctx context.Context, t *model.EnrichmentTask) (value any, err error) {
	// The enricher is external code; a panic must not take the worker down.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enricher panicked: %v", r)
		}
	}()
	return d.enricher.EnrichItem(ctx, t.GroupKey, t.Payload)
}

func (d *Dispatcher) storeResult(res *model.EnrichmentResult) {
	d.mu.Lock()
	d.results[res.TaskID] = res
	close(d.notify)
	d.notify = make(chan struct{})
	d.mu.Unlock()
}

// maybeSweep drops unclaimed results older than ResultMaxAge, bounding memory
// when callers abandon their task IDs. Checked opportunistically from the
// batch loop.
func (d *Dispatcher) maybeSweep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if now.Sub(d.lastSweep) < d.opts.SweepInterval {
		return
	}
	d.lastSweep = now
	removed := 0
	for id, res := range d.results {
		if now.Sub(res.CompletedAt) > d.opts.ResultMaxAge {
			delete(d.results, id)
			removed++
		}
	}
	if removed > 0 {
		d.log.Info().Int("removed", removed).Msg("swept stale enrichment results")
	}
}

// PendingResults reports unclaimed results, for observability.
func (d *Dispatcher) PendingResults() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.results)
}
