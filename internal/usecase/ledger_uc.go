package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-ai-pipeline/internal/domain/model"
	"market-ai-pipeline/internal/domain/ports/repository"
	"market-ai-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// UsageLedger records every backend call, keeps the running daily spend, and
// owns the model availability table the gateway consults before dispatching.
type UsageLedger interface {
	// RecordUsage prices the call, appends it to the durable log, updates the
	// daily accumulator (resetting on UTC day rollover) and applies the single
	// highest budget tier reached. Called for failed backend calls too.
	RecordUsage(ctx context.Context, provider, modelName, operation string, inputTokens, outputTokens int, success bool, callErr error) (*model.UsageEvent, error)

	// IsModelAvailable is authoritative; dispatch paths must consult it.
	IsModelAvailable(modelName string) bool

	// DisableModel / EnableModel are idempotent operator overrides,
	// independent of the threshold logic.
	DisableModel(modelName string)
	EnableModel(modelName string)

	CostToday() float64
	DisabledModels() []string

	// Stats replays the durable log over [since, until). Non-destructive; may
	// run concurrently with writers.
	Stats(ctx context.Context, since, until time.Time) (*model.UsageStats, error)
}

// LedgerOptions carries the budget thresholds (USD per UTC day) and the clock.
// Thresholds must be ascending: Warn < Crit < Emergency.
type LedgerOptions struct {
	WarnUSD         float64
	CritUSD         float64
	EmergencyUSD    float64
	PrimaryProvider string
	Now             func() time.Time
}

var _ UsageLedger = (*usageLedger)(nil)

type usageLedger struct {
	store  repository.UsageLogStore
	prices model.PriceTable
	opts   LedgerOptions
	log    *zerolog.Logger

	costMu    sync.Mutex
	costToday float64
	lastReset string // UTC date, "2006-01-02"

	availMu  sync.Mutex
	disabled map[string]bool
}

func NewUsageLedger(store repository.UsageLogStore, prices model.PriceTable, opts LedgerOptions, logger *zerolog.Logger) UsageLedger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := logger.With().Str("component", "UsageLedger").Logger()
	return &usageLedger{
		store:    store,
		prices:   prices,
		opts:     opts,
		log:      &l,
		disabled: map[string]bool{},
	}
}

func (u *usageLedger) RecordUsage(ctx context.Context, provider, modelName, operation string, inputTokens, outputTokens int, success bool, callErr error) (*model.UsageEvent, error) {
	pricing := u.prices.Lookup(modelName)
	inCost, outCost := pricing.Cost(inputTokens, outputTokens)

	ev := &model.UsageEvent{
		Timestamp:    u.opts.Now().UTC(),
		Provider:     provider,
		Model:        model.NormalizeModelName(modelName),
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		InputCost:    inCost,
		OutputCost:   outCost,
		TotalCost:    inCost + outCost,
		Success:      success,
	}
	if callErr != nil {
		ev.Error = callErr.Error()
	}

	// The log write happens outside any ledger lock; a full disk must not
	// block accounting or availability decisions.
	if err := u.store.Append(ctx, ev); err != nil {
		u.log.Error().Err(err).Msg("failed to append usage event")
	}

	total := u.accumulate(ev)
	u.applyThresholds(total)
	return ev, nil
}

// accumulate adds the event's cost to the daily total, resetting exactly once
// when the UTC date changes, and returns the new total.
func (u *usageLedger) accumulate(ev *model.UsageEvent) float64 {
	u.costMu.Lock()
	defer u.costMu.Unlock()

	date := ev.Timestamp.Format("2006-01-02")
	if date != u.lastReset {
		if u.lastReset != "" {
			u.log.Info().Str("date", date).Float64("previous_total", u.costToday).Msg("daily cost accumulator reset")
		}
		u.costToday = 0
		u.lastReset = date
	}
	u.costToday += ev.TotalCost
	metrics.SetCostToday(u.costToday)
	return u.costToday
}

// applyThresholds applies the single highest tier reached; tiers do not stack.
func (u *usageLedger) applyThresholds(costToday float64) {
	switch {
	case costToday >= u.opts.EmergencyUSD:
		metrics.IncThresholdTrip("emergency")
		top := u.prices.MostExpensiveModel(u.opts.PrimaryProvider)
		if top != "" && u.disable(top) {
			u.log.Error().Str("model", top).Float64("cost_today", costToday).Msg("emergency budget threshold: disabled top tier")
		}
		if prov := u.prices.MostExpensiveProviderExcept(u.opts.PrimaryProvider); prov != "" {
			for _, m := range u.prices.ModelsOf(prov) {
				if u.disable(m) {
					u.log.Error().Str("provider", prov).Str("model", m).Float64("cost_today", costToday).Msg("emergency budget threshold: disabled secondary backend model")
				}
			}
		}
	case costToday >= u.opts.CritUSD:
		metrics.IncThresholdTrip("crit")
		top := u.prices.MostExpensiveModel(u.opts.PrimaryProvider)
		if top != "" && u.disable(top) {
			u.log.Error().Str("model", top).Float64("cost_today", costToday).Msg("critical budget threshold: disabled top tier")
		}
	case costToday >= u.opts.WarnUSD:
		metrics.IncThresholdTrip("warn")
		u.log.Warn().Float64("cost_today", costToday).Float64("warn_threshold", u.opts.WarnUSD).Msg("daily spend passed warning threshold")
	}
}

// disable flips the availability flag; reports whether it changed.
func (u *usageLedger) disable(modelName string) bool {
	mn := model.NormalizeModelName(modelName)
	u.availMu.Lock()
	defer u.availMu.Unlock()
	if u.disabled[mn] {
		return false
	}
	u.disabled[mn] = true
	metrics.SetModelDisabled(mn, true)
	return true
}

func (u *usageLedger) IsModelAvailable(modelName string) bool {
	u.availMu.Lock()
	defer u.availMu.Unlock()
	return !u.disabled[model.NormalizeModelName(modelName)]
}

func (u *usageLedger) DisableModel(modelName string) {
	if u.disable(modelName) {
		u.log.Warn().Str("model", model.NormalizeModelName(modelName)).Msg("model disabled")
	}
}

func (u *usageLedger) EnableModel(modelName string) {
	mn := model.NormalizeModelName(modelName)
	u.availMu.Lock()
	changed := u.disabled[mn]
	delete(u.disabled, mn)
	u.availMu.Unlock()
	metrics.SetModelDisabled(mn, false)
	if changed {
		u.log.Info().Str("model", mn).Msg("model re-enabled")
	}
}

func (u *usageLedger) CostToday() float64 {
	u.costMu.Lock()
	defer u.costMu.Unlock()
	// A read on a fresh day before any write still reports yesterday's total;
	// the reset is defined to happen on the first write of the new day.
	return u.costToday
}

func (u *usageLedger) DisabledModels() []string {
	u.availMu.Lock()
	defer u.availMu.Unlock()
	out := make([]string, 0, len(u.disabled))
	for m := range u.disabled {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (u *usageLedger) Stats(ctx context.Context, since, until time.Time) (*model.UsageStats, error) {
	stats := &model.UsageStats{
		Since:       since,
		Until:       until,
		ByProvider:  map[string]*model.UsageAggregate{},
		ByOperation: map[string]*model.UsageAggregate{},
	}
	err := u.store.Replay(ctx, since, until, func(ev *model.UsageEvent) error {
		stats.Add(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
