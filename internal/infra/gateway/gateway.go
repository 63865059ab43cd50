// File: internal/infra/gateway/gateway.go
package gateway

import (
	"context"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/adapter"
	"market-ai-pipeline/internal/infra/logging"
	"market-ai-pipeline/internal/infra/metrics"
	"market-ai-pipeline/internal/usecase"

	"github.com/rs/zerolog"
)

const defaultCallTimeout = 30 * time.Second

// Options configures a Gateway.
type Options struct {
	Workers       int
	QueueSize     int
	DefaultModel  string
	FallbackModel string
	PollInterval  time.Duration
	Dev           bool
}

// Stats is a point-in-time snapshot of gateway counters.
type Stats struct {
	TotalRequests int     `json:"total_requests"`
	CacheHits     int     `json:"cache_hits"`
	CacheMisses   int     `json:"cache_misses"`
	HitRate       float64 `json:"hit_rate"`
	QueueDepth    int     `json:"queue_depth"`
	CacheSize     int     `json:"cache_size"`
}

// Gateway accepts completion requests, serves repeats from the response
// cache, and funnels misses through a priority queue to a fixed worker pool.
// Every submitted request's callback fires exactly once.
type Gateway struct {
	opts    Options
	queue   *requestQueue
	cache   ResponseCache
	backend adapter.CompletionAdapter
	ledger  usecase.UsageLedger
	prices  model.PriceTable
	log     *zerolog.Logger

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	statsMu       sync.Mutex
	totalRequests int
	cacheHits     int
	cacheMisses   int
}

func New(opts Options, cache ResponseCache, backend adapter.CompletionAdapter, ledger usecase.UsageLedger, prices model.PriceTable, logger *zerolog.Logger) *Gateway {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	gwLog := logger.With().Str("component", "Gateway").Logger()
	return &Gateway{
		opts:    opts,
		queue:   newRequestQueue(),
		cache:   cache,
		backend: backend,
		ledger:  ledger,
		prices:  prices,
		log:     &gwLog,
		quit:    make(chan struct{}),
	}
}

func (g *Gateway) Start(ctx context.Context) {
	for i := 0; i < g.opts.Workers; i++ {
		g.wg.Add(1)
		go g.workerLoop(ctx, i)
	}
	g.log.Info().Int("workers", g.opts.Workers).Msg("gateway started")
}

// Stop stops intake, waits for in-flight workers, and drains requests still
// queued so every accepted callback fires. Idempotent.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		close(g.quit)
		g.wg.Wait()
		g.drainQueue(context.Background())
		g.log.Info().Msg("gateway stopped")
	})
}

// drainQueue finishes requests already queued at shutdown. Intake stops once
// quit is closed, so this terminates.
func (g *Gateway) drainQueue(ctx context.Context) {
	for {
		req, ok := g.queue.Pop()
		if !ok {
			return
		}
		g.process(ctx, req)
	}
}

// Submit registers a completion request. On a cache hit the callback runs
// synchronously and nothing is queued; on a miss the request is queued and
// Submit returns immediately. The returned ID identifies the request in logs.
func (g *Gateway) Submit(ctx context.Context, prompt, systemContext string, priority int, timeout time.Duration, cb model.Callback) (string, error) {
	select {
	case <-g.quit:
		return "", domain.ErrStopped
	default:
	}
	if prompt == "" {
		return "", domain.ErrInvalidArgument
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	req := model.NewCompletionRequest(prompt, systemContext, priority, timeout, cb)
	log := logging.With(logging.WithRequestID(ctx, req.ID), g.log)

	g.statsMu.Lock()
	g.totalRequests++
	g.statsMu.Unlock()

	key := model.ResponseCacheKey(prompt, systemContext)
	if resp, ok := g.cache.Get(ctx, key); ok {
		g.statsMu.Lock()
		g.cacheHits++
		g.statsMu.Unlock()
		metrics.IncCacheRequest("response", "hit")
		log.Debug().Str("prompt", logging.Preview(prompt, g.opts.Dev)).Msg("served from response cache")
		if cb != nil {
			cb(resp, nil)
		}
		return req.ID, nil
	}

	if !g.queue.PushBounded(req, g.opts.QueueSize) {
		metrics.IncDropped("gateway")
		log.Warn().Int("queue_size", g.opts.QueueSize).Msg("request queue saturated; dropping submission")
		return "", domain.ErrQueueFull
	}

	// Dropped submissions never reach the backend, so only queued work counts
	// toward the miss rate.
	g.statsMu.Lock()
	g.cacheMisses++
	g.statsMu.Unlock()
	metrics.IncCacheRequest("response", "miss")
	metrics.SetQueueDepth("gateway", g.queue.Len())
	log.Debug().Int("priority", priority).Msg("request queued")
	return req.ID, nil
}

func (g *Gateway) workerLoop(ctx context.Context, id int) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.quit:
			return
		default:
		}

		req, ok := g.queue.Pop()
		if !ok {
			// Empty queue: block on the poll interval instead of spinning.
			select {
			case <-ctx.Done():
				return
			case <-g.quit:
				return
			case <-ticker.C:
			}
			continue
		}
		metrics.SetQueueDepth("gateway", g.queue.Len())
		g.process(ctx, req)
	}
}

// process executes one dequeued request end to end. The callback is invoked
// exactly once on every path out of this function.
func (g *Gateway) process(ctx context.Context, req *model.CompletionRequest) {
	log := logging.With(logging.WithRequestID(ctx, req.ID), g.log)

	modelName, ok := g.selectModel()
	if !ok {
		log.Warn().Msg("all configured models disabled; failing request without backend call")
		metrics.IncTask("gateway", "failed")
		if req.Callback != nil {
			req.Callback("", domain.ErrModelDisabled)
		}
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	start := time.Now()
	resp, usage, err := g.backend.Complete(callCtx, modelName, req.Prompt, req.SystemContext)
	cancel()
	latency := time.Since(start)

	if usage.PromptTokens == 0 {
		// Failed or usage-less calls still get a best-effort token estimate
		// so the ledger prices them.
		if n, cntErr := g.backend.CountTokens(modelName, req.SystemContext+req.Prompt); cntErr == nil {
			usage.PromptTokens = n
			usage.TotalTokens = n + usage.CompletionTokens
		}
	}

	provider := g.prices.ProviderOf(modelName)
	// Recording happens on the worker's own context: the request deadline
	// must not stop the ledger from seeing the call.
	ev, _ := g.ledger.RecordUsage(context.Background(), provider, modelName, "completion", usage.PromptTokens, usage.CompletionTokens, err == nil, err)
	costUSD := 0.0
	if ev != nil {
		costUSD = ev.TotalCost
	}
	metrics.ObserveBackendCall(provider, modelName, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, costUSD, int(latency/time.Millisecond), err == nil)

	if err != nil {
		log.Warn().Err(err).Str("model", modelName).Dur("latency", latency).Msg("backend call failed")
		metrics.IncTask("gateway", "failed")
		if req.Callback != nil {
			req.Callback("", err)
		}
		return
	}

	if resp != "" {
		g.cache.Set(ctx, model.ResponseCacheKey(req.Prompt, req.SystemContext), resp)
	}
	log.Debug().Str("model", modelName).Dur("latency", latency).Int("tokens", usage.TotalTokens).Msg("completion served")
	metrics.IncTask("gateway", "ok")
	if req.Callback != nil {
		req.Callback(resp, nil)
	}
}

// selectModel picks the first available tier: preferred model, then fallback.
// The availability table is authoritative.
func (g *Gateway) selectModel() (string, bool) {
	if g.ledger.IsModelAvailable(g.opts.DefaultModel) {
		return g.opts.DefaultModel, true
	}
	if g.opts.FallbackModel != "" && g.opts.FallbackModel != g.opts.DefaultModel && g.ledger.IsModelAvailable(g.opts.FallbackModel) {
		return g.opts.FallbackModel, true
	}
	return "", false
}

func (g *Gateway) Stats(ctx context.Context) Stats {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	s := Stats{
		TotalRequests: g.totalRequests,
		CacheHits:     g.cacheHits,
		CacheMisses:   g.cacheMisses,
		QueueDepth:    g.queue.Len(),
		CacheSize:     g.cache.Size(ctx),
	}
	if looked := s.CacheHits + s.CacheMisses; looked > 0 {
		s.HitRate = float64(s.CacheHits) / float64(looked)
	}
	return s
}
