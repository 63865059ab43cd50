// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"market-ai-pipeline/internal/config"
	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/adapter"
	aiAdapters "market-ai-pipeline/internal/infra/adapters/ai"
	mem "market-ai-pipeline/internal/infra/db/memory"
	pg "market-ai-pipeline/internal/infra/db/postgres"
	"market-ai-pipeline/internal/infra/dispatch"
	"market-ai-pipeline/internal/infra/gateway"
	"market-ai-pipeline/internal/infra/ledger"
	"market-ai-pipeline/internal/infra/logging"
	"market-ai-pipeline/internal/infra/metrics"
	red "market-ai-pipeline/internal/infra/redis"
	"market-ai-pipeline/internal/infra/web"
	"market-ai-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory stores, noop AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Pricing ----
	rows := make([]model.ModelPricing, 0, len(cfg.Pricing))
	modelToProvider := map[string]string{}
	for _, r := range cfg.Pricing {
		rows = append(rows, model.ModelPricing{
			Provider:    r.Provider,
			ModelName:   r.Model,
			InputPer1K:  r.InputPer1K,
			OutputPer1K: r.OutputPer1K,
		})
		modelToProvider[model.NormalizeModelName(r.Model)] = strings.ToLower(r.Provider)
	}
	prices := model.NewPriceTable(rows)

	// ---- Analysis store (Postgres, or in-memory in dev) ----
	var analysisCache usecase.AnalysisCache
	if cfg.Database.URL != "" {
		pool, perr := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if perr != nil {
			log.Fatalf("postgres: %v", perr)
		}
		defer pool.Close()
		analysisCache = usecase.NewAnalysisCache(pg.NewAnalysisRepo(pool), cfg.AnalysisCache.TTL, logger)
	} else if cfg.Runtime.Dev {
		logger.Warn().Msg("no database.url configured; using in-memory analysis store")
		analysisCache = usecase.NewAnalysisCache(mem.NewAnalysisRepo(), cfg.AnalysisCache.TTL, logger)
	} else {
		log.Fatalf("database.url is required outside dev mode")
	}

	// ---- Response cache (Redis when configured) ----
	var respCache gateway.ResponseCache
	if cfg.Redis.URL != "" {
		redisClient, rerr := red.NewClient(ctx, &cfg.Redis)
		if rerr != nil {
			log.Fatalf("redis: %v", rerr)
		}
		defer redisClient.Close()
		respCache = red.NewResponseCache(redisClient, cfg.Gateway.CacheTTL, logger)
	} else {
		respCache = gateway.NewMemoryResponseCache(cfg.Gateway.CacheTTL, cfg.Gateway.CacheMaxEntries)
	}

	// ---- Usage ledger ----
	usageLog := ledger.NewFileUsageLog(cfg.UsageLog.Path, logger)
	defer usageLog.Close()
	usageLedger := usecase.NewUsageLedger(usageLog, prices, usecase.LedgerOptions{
		WarnUSD:         cfg.Budget.WarnUSD,
		CritUSD:         cfg.Budget.CritUSD,
		EmergencyUSD:    cfg.Budget.EmergencyUSD,
		PrimaryProvider: cfg.Budget.PrimaryProvider,
	}, logger)

	// ---- AI backends ----
	byProvider := map[string]adapter.CompletionAdapter{}
	if cfg.AI.OpenAIKey != "" {
		oa, aerr := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.MaxOutputTokens)
		if aerr != nil {
			log.Fatalf("openai adapter: %v", aerr)
		}
		byProvider["openai"] = oa
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	}
	if cfg.AI.GeminiKey != "" {
		ga, aerr := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.MaxOutputTokens)
		if aerr != nil {
			log.Fatalf("gemini adapter: %v", aerr)
		}
		byProvider["gemini"] = ga
		logger.Info().Str("base", cfg.AI.GeminiURL).Msg("AI adapter: Gemini")
	}
	if len(byProvider) == 0 {
		if !cfg.Runtime.Dev {
			log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key in %s", *cfgPath)
		}
		logger.Warn().Msg("no AI keys configured; using noop backend")
		byProvider[cfg.Budget.PrimaryProvider] = aiAdapters.NewNoopAdapter()
	}
	backend := aiAdapters.NewLimitedAdapter(
		aiAdapters.NewMultiAdapter(cfg.Budget.PrimaryProvider, byProvider, modelToProvider),
		cfg.AI.ConcurrentLimit,
	)

	// ---- Gateway ----
	gw := gateway.New(gateway.Options{
		Workers:       cfg.Gateway.Workers,
		QueueSize:     cfg.Gateway.QueueSize,
		DefaultModel:  cfg.AI.DefaultModel,
		FallbackModel: cfg.AI.FallbackModel,
		Dev:           cfg.Runtime.Dev,
	}, respCache, backend, usageLedger, prices, logger)
	gw.Start(ctx)
	defer gw.Stop()

	// ---- Dispatcher ----
	enricher := usecase.NewDocumentEnricher(gw, analysisCache, usecase.EnricherOptions{
		SystemContext: "You are a market analyst. Summarize the document and list the key risks.",
		CallTimeout:   30 * time.Second,
	}, logger)
	disp := dispatch.New(dispatch.Options{
		Workers:        cfg.Dispatcher.Workers,
		QueueSize:      cfg.Dispatcher.QueueSize,
		EnqueueTimeout: cfg.Dispatcher.EnqueueTimeout,
		BatchSize:      cfg.Dispatcher.BatchSize,
		BatchTimeout:   cfg.Dispatcher.BatchTimeout,
		ResultMaxAge:   cfg.Dispatcher.ResultMaxAge,
		SweepInterval:  cfg.Dispatcher.SweepInterval,
	}, enricher, logger)
	disp.Start(ctx)
	defer disp.Stop()

	// ---- Admin server ----
	srv := web.NewServer(web.Options{
		Addr:      fmt.Sprintf(":%d", cfg.Admin.Port),
		APIKey:    cfg.Admin.APIKey,
		JWTSecret: cfg.Admin.JWTSecret,
		Dev:       cfg.Runtime.Dev,
	}, usageLedger, analysisCache, gw, *logger)
	go func() {
		if serr := srv.Start(); serr != nil {
			logger.Error().Err(serr).Msg("admin server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("admin server shutdown")
	}
	// The deferred stops drain the dispatcher and gateway before the root
	// context is cancelled.
}
