package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/AuraCoreDynamics/aurarouter/internal/usage"
)

// UsageSource is the slice of the usage store the cost engine reads.
type UsageSource interface {
	Query(q usage.Query) ([]usage.Record, error)
}

// ShadowComparison reports actual vs hypothetical routing cost.
// Positive Savings means the actual route was cheaper.
type ShadowComparison struct {
	ActualCost float64
	ShadowCost float64
	Savings    float64
}

// MonthlyProjection is a linear extrapolation of current-month spend.
type MonthlyProjection struct {
	SpentSoFar       float64
	ProjectedMonthly float64
	DaysElapsed      int
	DaysInMonth      int
}

// ROIEstimate is a GPU payback estimate against cloud spend.
type ROIEstimate struct {
	MonthlyCloudSpend float64
	PaybackMonths     float64
	AnnualSavings     float64
}

// CostEngine calculates actual costs, shadow costs, projections and ROI.
// The catalog is swapped on config reload from the watcher goroutine
// while spend checks read it, so access goes through the lock.
type CostEngine struct {
	mu      sync.RWMutex
	catalog *Catalog
	store   UsageSource
	now     func() time.Time
}

// NewCostEngine builds an engine over a catalog and the usage ledger.
func NewCostEngine(catalog *Catalog, store UsageSource) *CostEngine {
	return &CostEngine{catalog: catalog, store: store, now: time.Now}
}

// Catalog returns the engine's price catalog.
func (e *CostEngine) Catalog() *Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog
}

// SetCatalog swaps the price catalog, for config reloads.
func (e *CostEngine) SetCatalog(c *Catalog) {
	e.mu.Lock()
	e.catalog = c
	e.mu.Unlock()
}

// CalculateCost returns the dollar cost for a single request.
func (e *CostEngine) CalculateCost(inputTokens, outputTokens int, modelName, provider string) float64 {
	price := e.Catalog().GetPrice(modelName, provider)
	return (float64(inputTokens)*price.InputPerMillion +
		float64(outputTokens)*price.OutputPerMillion) / 1_000_000
}

// ShadowCost compares the actual route against a hypothetical one for
// the same token volume.
func (e *CostEngine) ShadowCost(inputTokens, outputTokens int, actualModel, actualProvider, shadowModel, shadowProvider string) ShadowComparison {
	actual := e.CalculateCost(inputTokens, outputTokens, actualModel, actualProvider)
	shadow := e.CalculateCost(inputTokens, outputTokens, shadowModel, shadowProvider)
	return ShadowComparison{
		ActualCost: actual,
		ShadowCost: shadow,
		Savings:    shadow - actual,
	}
}

// TotalSpend sums the dollar cost of all recorded usage in the range.
func (e *CostEngine) TotalSpend(start, end time.Time) (float64, error) {
	records, err := e.store.Query(usage.Query{Start: start, End: end})
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range records {
		total += e.CalculateCost(r.InputTokens, r.OutputTokens, r.ModelID, r.Provider)
	}
	return total, nil
}

// SpendByProvider breaks the range's spend down per provider.
func (e *CostEngine) SpendByProvider(start, end time.Time) (map[string]float64, error) {
	records, err := e.store.Query(usage.Query{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	breakdown := map[string]float64{}
	for _, r := range records {
		breakdown[r.Provider] += e.CalculateCost(r.InputTokens, r.OutputTokens, r.ModelID, r.Provider)
	}
	return breakdown, nil
}

// MonthlyProjection linearly projects current-month spend to month end.
func (e *CostEngine) MonthlyProjection() (MonthlyProjection, error) {
	now := e.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := monthStart.AddDate(0, 1, -1).Day()
	daysElapsed := now.Day()

	spent, err := e.TotalSpend(monthStart, time.Time{})
	if err != nil {
		return MonthlyProjection{}, err
	}

	projected := 0.0
	if daysElapsed > 0 {
		projected = spent / float64(daysElapsed) * float64(daysInMonth)
	}

	return MonthlyProjection{
		SpentSoFar:       spent,
		ProjectedMonthly: projected,
		DaysElapsed:      daysElapsed,
		DaysInMonth:      daysInMonth,
	}, nil
}

// ROIEstimate estimates the payback period for local hardware. When
// monthlyCloudSpend is nil the current monthly projection is used.
func (e *CostEngine) ROIEstimate(hardwareCost float64, monthlyCloudSpend *float64) (ROIEstimate, error) {
	var spend float64
	if monthlyCloudSpend != nil {
		spend = *monthlyCloudSpend
	} else {
		proj, err := e.MonthlyProjection()
		if err != nil {
			return ROIEstimate{}, err
		}
		spend = proj.ProjectedMonthly
	}

	payback := math.Inf(1)
	if spend > 0 {
		payback = hardwareCost / spend
	}

	return ROIEstimate{
		MonthlyCloudSpend: spend,
		PaybackMonths:     payback,
		AnnualSavings:     spend * 12,
	}, nil
}
