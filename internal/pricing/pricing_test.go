package pricing

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/AuraCoreDynamics/aurarouter/internal/usage"
)

func TestResolveHostingTier(t *testing.T) {
	tests := []struct {
		name     string
		tier     string
		provider string
		want     string
	}{
		{"explicit wins", "cloud", "ollama", "cloud"},
		{"explicit dedicated", "dedicated-tenant", "claude", "dedicated-tenant"},
		{"claude default", "", "claude", "cloud"},
		{"google default", "", "google", "cloud"},
		{"ollama default", "", "ollama", "on-prem"},
		{"llamacpp default", "", "llamacpp", "on-prem"},
		{"llamacpp-server default", "", "llamacpp-server", "on-prem"},
		{"openapi default", "", "openapi", "on-prem"},
		{"unknown provider", "", "mystery", "on-prem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveHostingTier(tt.tier, tt.provider); got != tt.want {
				t.Errorf("ResolveHostingTier(%q,%q) = %q, want %q", tt.tier, tt.provider, got, tt.want)
			}
		})
	}
}

func TestIsCloudProvider(t *testing.T) {
	for provider, want := range map[string]bool{
		"claude": true, "google": true,
		"ollama": false, "llamacpp": false, "llamacpp-server": false,
		"openapi": false, "unknown": false,
	} {
		if got := IsCloudProvider(provider); got != want {
			t.Errorf("IsCloudProvider(%q) = %v, want %v", provider, got, want)
		}
	}
}

func TestCatalogResolutionOrder(t *testing.T) {
	in, out := 1.0, 2.0
	resolver := func(modelName string) (*float64, *float64) {
		if modelName == "configured" {
			return &in, &out
		}
		if modelName == "half-configured" {
			return &in, nil
		}
		return nil, nil
	}

	catalog := NewCatalog(map[string]ModelPrice{
		"claude-sonnet-4-5-20250929": {9.99, 99.90}, // override builtin
		"custom-model":               {0.50, 1.50},
	}, resolver)

	tests := []struct {
		name     string
		model    string
		provider string
		want     ModelPrice
	}{
		{"config resolver wins", "configured", "claude", ModelPrice{1.0, 2.0}},
		{"partial config pair ignored", "half-configured", "ollama", ModelPrice{0, 0}},
		{"override beats builtin", "claude-sonnet-4-5-20250929", "claude", ModelPrice{9.99, 99.90}},
		{"override exact name", "custom-model", "openapi", ModelPrice{0.50, 1.50}},
		{"builtin exact name", "gemini-2.0-flash", "google", ModelPrice{0.10, 0.40}},
		{"provider catch-all", "some-local-model", "ollama", ModelPrice{0, 0}},
		{"unknown everything", "mystery", "claude", ModelPrice{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := catalog.GetPrice(tt.model, tt.provider); got != tt.want {
				t.Errorf("GetPrice(%q,%q) = %+v, want %+v", tt.model, tt.provider, got, tt.want)
			}
		})
	}
}

func TestBuiltinPrices(t *testing.T) {
	catalog := NewCatalog(nil, nil)
	if got := catalog.GetPrice("claude-haiku-4-5-20251001", "claude"); got != (ModelPrice{0.80, 4.00}) {
		t.Errorf("haiku price = %+v", got)
	}
	if got := catalog.GetPrice("gemini-2.0-pro", "google"); got != (ModelPrice{1.25, 10.00}) {
		t.Errorf("gemini pro price = %+v", got)
	}
}

type stubSource struct {
	records []usage.Record
	err     error
}

func (s *stubSource) Query(q usage.Query) ([]usage.Record, error) {
	return s.records, s.err
}

func TestCalculateCost(t *testing.T) {
	engine := NewCostEngine(NewCatalog(nil, nil), &stubSource{})

	// 1M input at $3 + 1M output at $15
	got := engine.CalculateCost(1_000_000, 1_000_000, "claude-sonnet-4-5-20250929", "claude")
	if math.Abs(got-18.00) > 1e-9 {
		t.Errorf("cost = %f, want 18.00", got)
	}

	if engine.CalculateCost(1_000_000, 1_000_000, "local-model", "ollama") != 0 {
		t.Error("local model should cost zero")
	}
}

func TestShadowCost(t *testing.T) {
	engine := NewCostEngine(NewCatalog(nil, nil), &stubSource{})

	cmp := engine.ShadowCost(1_000_000, 0, "local-model", "ollama", "claude-sonnet-4-5-20250929", "claude")
	if cmp.ActualCost != 0 {
		t.Errorf("actual = %f, want 0", cmp.ActualCost)
	}
	if math.Abs(cmp.ShadowCost-3.00) > 1e-9 {
		t.Errorf("shadow = %f, want 3.00", cmp.ShadowCost)
	}
	if math.Abs(cmp.Savings-3.00) > 1e-9 {
		t.Errorf("savings = %f, want 3.00", cmp.Savings)
	}
}

func TestTotalSpendAndByProvider(t *testing.T) {
	source := &stubSource{records: []usage.Record{
		{ModelID: "claude-sonnet-4-5-20250929", Provider: "claude", InputTokens: 1_000_000},
		{ModelID: "gemini-2.0-flash", Provider: "google", OutputTokens: 1_000_000},
		{ModelID: "local", Provider: "ollama", InputTokens: 5_000_000},
	}}
	engine := NewCostEngine(NewCatalog(nil, nil), source)

	total, err := engine.TotalSpend(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("TotalSpend: %v", err)
	}
	if math.Abs(total-3.40) > 1e-9 {
		t.Errorf("total = %f, want 3.40", total)
	}

	byProvider, err := engine.SpendByProvider(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SpendByProvider: %v", err)
	}
	if math.Abs(byProvider["claude"]-3.00) > 1e-9 || math.Abs(byProvider["google"]-0.40) > 1e-9 {
		t.Errorf("breakdown = %v", byProvider)
	}
	if byProvider["ollama"] != 0 {
		t.Errorf("ollama spend = %f, want 0", byProvider["ollama"])
	}
}

func TestMonthlyProjection(t *testing.T) {
	source := &stubSource{records: []usage.Record{
		{ModelID: "claude-sonnet-4-5-20250929", Provider: "claude", InputTokens: 1_000_000},
	}}
	engine := NewCostEngine(NewCatalog(nil, nil), source)
	// Fixed clock: day 10 of a 30-day month.
	engine.now = func() time.Time {
		return time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	}

	proj, err := engine.MonthlyProjection()
	if err != nil {
		t.Fatalf("MonthlyProjection: %v", err)
	}
	if proj.DaysElapsed != 10 || proj.DaysInMonth != 30 {
		t.Errorf("days = %d/%d, want 10/30", proj.DaysElapsed, proj.DaysInMonth)
	}
	if math.Abs(proj.SpentSoFar-3.00) > 1e-9 {
		t.Errorf("spent = %f, want 3.00", proj.SpentSoFar)
	}
	if math.Abs(proj.ProjectedMonthly-9.00) > 1e-9 {
		t.Errorf("projected = %f, want 9.00", proj.ProjectedMonthly)
	}
}

func TestROIEstimate(t *testing.T) {
	engine := NewCostEngine(NewCatalog(nil, nil), &stubSource{})

	spend := 100.0
	roi, err := engine.ROIEstimate(2000, &spend)
	if err != nil {
		t.Fatalf("ROIEstimate: %v", err)
	}
	if math.Abs(roi.PaybackMonths-20.0) > 1e-9 {
		t.Errorf("payback = %f, want 20", roi.PaybackMonths)
	}
	if math.Abs(roi.AnnualSavings-1200.0) > 1e-9 {
		t.Errorf("annual = %f, want 1200", roi.AnnualSavings)
	}

	zero := 0.0
	roi, err = engine.ROIEstimate(2000, &zero)
	if err != nil {
		t.Fatalf("ROIEstimate zero: %v", err)
	}
	if !math.IsInf(roi.PaybackMonths, 1) {
		t.Errorf("payback on zero spend = %f, want +Inf", roi.PaybackMonths)
	}
}

func TestSetCatalogConcurrentWithSpend(t *testing.T) {
	source := &stubSource{records: []usage.Record{
		{ModelID: "claude-sonnet-4-5-20250929", Provider: "claude", InputTokens: 1000, OutputTokens: 1000},
	}}
	engine := NewCostEngine(NewCatalog(nil, nil), source)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			engine.SetCatalog(NewCatalog(map[string]ModelPrice{
				"claude-sonnet-4-5-20250929": {InputPerMillion: float64(i), OutputPerMillion: float64(i)},
			}, nil))
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := engine.TotalSpend(time.Time{}, time.Time{}); err != nil {
				t.Errorf("TotalSpend: %v", err)
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	close(done)
	wg.Wait()
}
