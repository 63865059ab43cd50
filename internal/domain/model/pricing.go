package model

import "strings"

// ModelPricing is one row of the static price table: USD per 1k tokens.
type ModelPricing struct {
	Provider    string
	ModelName   string
	InputPer1K  float64
	OutputPer1K float64
}

// Cost computes the spend for a single call under this pricing row.
func (p ModelPricing) Cost(inputTokens, outputTokens int) (inCost, outCost float64) {
	inCost = float64(inputTokens) / 1000.0 * p.InputPer1K
	outCost = float64(outputTokens) / 1000.0 * p.OutputPer1K
	return inCost, outCost
}

// PriceTable maps model name to its pricing row. Lookups are normalized the
// same way everywhere (trimmed, lower-cased).
type PriceTable map[string]ModelPricing

func NormalizeModelName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NewPriceTable(rows []ModelPricing) PriceTable {
	t := make(PriceTable, len(rows))
	for _, r := range rows {
		r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
		t[NormalizeModelName(r.ModelName)] = r
	}
	return t
}

// Lookup returns the pricing row for a model; unknown models price at zero so
// an unpriced call never blocks recording.
func (t PriceTable) Lookup(modelName string) ModelPricing {
	if p, ok := t[NormalizeModelName(modelName)]; ok {
		return p
	}
	return ModelPricing{ModelName: modelName}
}

// ProviderOf resolves a model to its backend provider via the table, falling
// back to name-prefix conventions for unpriced models.
func (t PriceTable) ProviderOf(modelName string) string {
	if p, ok := t[NormalizeModelName(modelName)]; ok && p.Provider != "" {
		return p.Provider
	}
	l := NormalizeModelName(modelName)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"):
		return "openai"
	default:
		return "unknown"
	}
}

// MostExpensiveModel returns the priciest model (by input rate) of the given
// provider, or of any provider when provider is empty.
func (t PriceTable) MostExpensiveModel(provider string) string {
	best := ""
	var bestRate float64 = -1
	for name, p := range t {
		if provider != "" && p.Provider != provider {
			continue
		}
		if p.InputPer1K > bestRate {
			bestRate = p.InputPer1K
			best = name
		}
	}
	return best
}

// MostExpensiveProviderExcept ranks providers by their priciest model and
// returns the top one, skipping the named provider.
func (t PriceTable) MostExpensiveProviderExcept(except string) string {
	rates := map[string]float64{}
	for _, p := range t {
		if p.Provider == "" || p.Provider == except {
			continue
		}
		if p.InputPer1K > rates[p.Provider] {
			rates[p.Provider] = p.InputPer1K
		}
	}
	best := ""
	var bestRate float64 = -1
	for prov, rate := range rates {
		if rate > bestRate {
			bestRate = rate
			best = prov
		}
	}
	return best
}

// ModelsOf lists every priced model of a provider.
func (t PriceTable) ModelsOf(provider string) []string {
	var out []string
	for name, p := range t {
		if p.Provider == provider {
			out = append(out, name)
		}
	}
	return out
}
