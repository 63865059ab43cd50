// File: cmd/demo/main.go
//
// Offline walkthrough of the pipeline: noop AI backend, in-memory stores, a
// temp usage log. Run with `go run ./cmd/demo`.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"market-ai-pipeline/internal/config"
	"market-ai-pipeline/internal/domain/model"
	aiAdapters "market-ai-pipeline/internal/infra/adapters/ai"
	mem "market-ai-pipeline/internal/infra/db/memory"
	"market-ai-pipeline/internal/infra/dispatch"
	"market-ai-pipeline/internal/infra/gateway"
	"market-ai-pipeline/internal/infra/ledger"
	"market-ai-pipeline/internal/infra/logging"
	"market-ai-pipeline/internal/infra/metrics"
	"market-ai-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	metrics.MustRegister()

	tmp, err := os.MkdirTemp("", "pipeline-demo-")
	if err != nil {
		log.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(tmp)

	rows := make([]model.ModelPricing, 0, 4)
	for _, r := range config.DefaultPricing() {
		rows = append(rows, model.ModelPricing{Provider: r.Provider, ModelName: r.Model, InputPer1K: r.InputPer1K, OutputPer1K: r.OutputPer1K})
	}
	prices := model.NewPriceTable(rows)

	usageLog := ledger.NewFileUsageLog(filepath.Join(tmp, "usage_log.jsonl"), logger)
	defer usageLog.Close()
	usageLedger := usecase.NewUsageLedger(usageLog, prices, usecase.LedgerOptions{
		WarnUSD:         5,
		CritUSD:         10,
		EmergencyUSD:    20,
		PrimaryProvider: "openai",
	}, logger)

	respCache := gateway.NewMemoryResponseCache(time.Hour, 100)
	gw := gateway.New(gateway.Options{
		Workers:      2,
		DefaultModel: "gpt-4o",
		Dev:          true,
	}, respCache, aiAdapters.NewNoopAdapter(), usageLedger, prices, logger)
	gw.Start(ctx)
	defer gw.Stop()

	analysisCache := usecase.NewAnalysisCache(mem.NewAnalysisRepo(), time.Hour, logger)
	enricher := usecase.NewDocumentEnricher(gw, analysisCache, usecase.EnricherOptions{
		SourceID:      "demo",
		SystemContext: "Summarize the filing.",
	}, logger)

	disp := dispatch.New(dispatch.Options{
		Workers:      2,
		BatchSize:    4,
		BatchTimeout: 200 * time.Millisecond,
	}, enricher, logger)
	disp.Start(ctx)
	defer disp.Stop()

	// Enqueue a few filings; two share a subject so the second batch run hits
	// the analysis cache.
	filings := []struct {
		subject string
		body    string
	}{
		{"ACME", "ACME Corp Q2 earnings: revenue up 12%, guidance raised."},
		{"ACME", "ACME Corp Q2 earnings: revenue up 12%, guidance raised."},
		{"GLOBEX", "Globex announces merger talks with Initech."},
	}

	ids := make([]string, 0, len(filings))
	for _, f := range filings {
		id, err := disp.Enqueue(ctx, f.body, f.subject)
		if err != nil {
			log.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		res, ok := disp.Poll(ctx, id, 5*time.Second)
		if !ok {
			fmt.Printf("%s: no result within timeout\n", id)
			continue
		}
		if res.Failed {
			fmt.Printf("%s: FAILED: %s\n", id, res.Err)
			continue
		}
		fmt.Printf("%s: %v\n", id, res.Value)
	}

	// Direct gateway use: the second submission is a cache hit.
	done := make(chan string, 2)
	for i := 0; i < 2; i++ {
		if _, err := gw.Submit(ctx, "What moved the market today?", "", 1, 5*time.Second, func(resp string, err error) {
			if err != nil {
				done <- "error: " + err.Error()
				return
			}
			done <- resp
		}); err != nil {
			log.Fatalf("submit: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		fmt.Println("completion:", <-done)
	}

	stats := gw.Stats(ctx)
	fmt.Printf("gateway: total=%d hits=%d misses=%d hit_rate=%.2f\n",
		stats.TotalRequests, stats.CacheHits, stats.CacheMisses, stats.HitRate)
	fmt.Printf("spend today: $%.6f, disabled models: %v\n", usageLedger.CostToday(), usageLedger.DisabledModels())
}
