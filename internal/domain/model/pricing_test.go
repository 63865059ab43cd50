//go:build !integration

package model_test

import (
	"testing"

	"market-ai-pipeline/internal/domain/model"
)

func table() model.PriceTable {
	return model.NewPriceTable([]model.ModelPricing{
		{Provider: "openai", ModelName: "gpt-pro", InputPer1K: 1.0, OutputPer1K: 2.0},
		{Provider: "openai", ModelName: "gpt-lite", InputPer1K: 0.1, OutputPer1K: 0.2},
		{Provider: "gemini", ModelName: "gem-pro", InputPer1K: 0.5, OutputPer1K: 1.0},
		{Provider: "gemini", ModelName: "gem-lite", InputPer1K: 0.05, OutputPer1K: 0.1},
	})
}

func TestModelPricing_Cost(t *testing.T) {
	p := model.ModelPricing{InputPer1K: 1.0, OutputPer1K: 2.0}
	in, out := p.Cost(1500, 500)
	if in != 1.5 {
		t.Errorf("expected input cost 1.5, got %v", in)
	}
	if out != 1.0 {
		t.Errorf("expected output cost 1.0, got %v", out)
	}
}

func TestPriceTable_Lookup(t *testing.T) {
	tbl := table()

	if got := tbl.Lookup("GPT-Pro "); got.InputPer1K != 1.0 {
		t.Errorf("expected lookup to normalize the name, got %+v", got)
	}
	// Unknown models price at zero rather than erroring.
	unknown := tbl.Lookup("mystery-model")
	in, out := unknown.Cost(1000, 1000)
	if in != 0 || out != 0 {
		t.Errorf("expected zero cost for unknown model, got %v/%v", in, out)
	}
}

func TestPriceTable_ProviderOf(t *testing.T) {
	tbl := table()
	cases := map[string]string{
		"gpt-pro":          "openai",
		"gem-lite":         "gemini",
		"gpt-unpriced":     "openai", // prefix fallback
		"gemini-3.0-ultra": "gemini", // prefix fallback
		"mystery":          "unknown",
	}
	for m, want := range cases {
		if got := tbl.ProviderOf(m); got != want {
			t.Errorf("ProviderOf(%q): expected %q, got %q", m, want, got)
		}
	}
}

func TestPriceTable_MostExpensive(t *testing.T) {
	tbl := table()

	if got := tbl.MostExpensiveModel("openai"); got != "gpt-pro" {
		t.Errorf("expected gpt-pro, got %q", got)
	}
	// Empty provider means any.
	if got := tbl.MostExpensiveModel(""); got != "gpt-pro" {
		t.Errorf("expected gpt-pro overall, got %q", got)
	}
	if got := tbl.MostExpensiveProviderExcept("openai"); got != "gemini" {
		t.Errorf("expected gemini, got %q", got)
	}
	if got := tbl.MostExpensiveProviderExcept(""); got != "openai" {
		t.Errorf("expected openai, got %q", got)
	}
}

func TestPriceTable_ModelsOf(t *testing.T) {
	tbl := table()
	got := tbl.ModelsOf("gemini")
	if len(got) != 2 {
		t.Fatalf("expected 2 gemini models, got %v", got)
	}
	seen := map[string]bool{}
	for _, m := range got {
		seen[m] = true
	}
	if !seen["gem-pro"] || !seen["gem-lite"] {
		t.Errorf("unexpected gemini models: %v", got)
	}
}

func TestResponseCacheKey(t *testing.T) {
	a := model.ResponseCacheKey("prompt", "system")
	if a != model.ResponseCacheKey("prompt", "system") {
		t.Error("expected a deterministic key")
	}
	if a == model.ResponseCacheKey("prompt", "other") {
		t.Error("expected the system context to participate in the key")
	}
	// The separator keeps (prompt, system) boundaries unambiguous.
	if model.ResponseCacheKey("ab", "c") == model.ResponseCacheKey("a", "bc") {
		t.Error("expected shifted boundaries to produce distinct keys")
	}
}

func TestAnalysisCacheKey(t *testing.T) {
	a := model.AnalysisCacheKey("edgar", "ACME", "10-K", "h1")
	if a != model.AnalysisCacheKey("edgar", "ACME", "10-K", "h1") {
		t.Error("expected a deterministic key")
	}
	for _, other := range []string{
		model.AnalysisCacheKey("edgar", "ACME", "10-K", "h2"),
		model.AnalysisCacheKey("edgar", "ACME", "10-Q", "h1"),
		model.AnalysisCacheKey("edgar", "GLOBEX", "10-K", "h1"),
		model.AnalysisCacheKey("sedar", "ACME", "10-K", "h1"),
	} {
		if a == other {
			t.Error("expected every key component to participate in the hash")
		}
	}
}
