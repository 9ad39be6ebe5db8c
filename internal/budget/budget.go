// Package budget enforces daily and monthly spend caps on cloud calls.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	"github.com/AuraCoreDynamics/aurarouter/internal/pricing"
)

const cacheTTL = 60 * time.Second

// Status is the result of one budget check.
type Status struct {
	Allowed      bool
	Reason       string
	DailySpend   float64
	MonthlySpend float64
	DailyLimit   *float64
	MonthlyLimit *float64
}

type cachedSpend struct {
	value   float64
	fetched time.Time
}

// Manager checks spend against configured limits before cloud provider
// calls. Local providers are never gated. Spend lookups are cached with
// a 60s TTL; the cache lock is not held across the cost-engine query.
type Manager struct {
	engine *pricing.CostEngine

	mu    sync.Mutex
	cfg   config.BudgetConfig
	cache map[string]cachedSpend

	now func() time.Time
}

// NewManager builds a budget manager over a cost engine.
func NewManager(engine *pricing.CostEngine, cfg config.BudgetConfig) *Manager {
	return &Manager{
		engine: engine,
		cfg:    cfg,
		cache:  map[string]cachedSpend{},
		now:    time.Now,
	}
}

// IsEnabled reports whether budget enforcement is switched on.
func (m *Manager) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Enabled
}

// CheckBudget decides whether a request to provider may proceed.
func (m *Manager) CheckBudget(provider string) Status {
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	if !cfg.Enabled {
		return Status{Allowed: true}
	}

	if !pricing.IsCloudProvider(provider) {
		return Status{
			Allowed:      true,
			DailySpend:   m.DailySpend(),
			MonthlySpend: m.MonthlySpend(),
			DailyLimit:   cfg.DailyLimit,
			MonthlyLimit: cfg.MonthlyLimit,
		}
	}

	daily := m.DailySpend()
	monthly := m.MonthlySpend()

	if cfg.DailyLimit != nil && daily >= *cfg.DailyLimit {
		return Status{
			Allowed:      false,
			Reason:       fmt.Sprintf("Daily budget exceeded ($%.2f/$%.2f)", daily, *cfg.DailyLimit),
			DailySpend:   daily,
			MonthlySpend: monthly,
			DailyLimit:   cfg.DailyLimit,
			MonthlyLimit: cfg.MonthlyLimit,
		}
	}

	if cfg.MonthlyLimit != nil && monthly >= *cfg.MonthlyLimit {
		return Status{
			Allowed:      false,
			Reason:       fmt.Sprintf("Monthly budget exceeded ($%.2f/$%.2f)", monthly, *cfg.MonthlyLimit),
			DailySpend:   daily,
			MonthlySpend: monthly,
			DailyLimit:   cfg.DailyLimit,
			MonthlyLimit: cfg.MonthlyLimit,
		}
	}

	return Status{
		Allowed:      true,
		DailySpend:   daily,
		MonthlySpend: monthly,
		DailyLimit:   cfg.DailyLimit,
		MonthlyLimit: cfg.MonthlyLimit,
	}
}

// DailySpend returns today's spend, cached with TTL.
func (m *Manager) DailySpend() float64 {
	return m.cachedSpend("daily")
}

// MonthlySpend returns this month's spend, cached with TTL.
func (m *Manager) MonthlySpend() float64 {
	return m.cachedSpend("monthly")
}

// DailyRemaining returns the remaining daily budget, nil when unlimited.
func (m *Manager) DailyRemaining() *float64 {
	m.mu.Lock()
	limit := m.cfg.DailyLimit
	m.mu.Unlock()
	if limit == nil {
		return nil
	}
	r := max(0, *limit-m.DailySpend())
	return &r
}

// MonthlyRemaining returns the remaining monthly budget, nil when unlimited.
func (m *Manager) MonthlyRemaining() *float64 {
	m.mu.Lock()
	limit := m.cfg.MonthlyLimit
	m.mu.Unlock()
	if limit == nil {
		return nil
	}
	r := max(0, *limit-m.MonthlySpend())
	return &r
}

// UpdateConfig swaps the limits and clears the spend cache in one
// critical section.
func (m *Manager) UpdateConfig(cfg config.BudgetConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.cache = map[string]cachedSpend{}
}

func (m *Manager) cachedSpend(period string) float64 {
	now := m.now()

	m.mu.Lock()
	if c, ok := m.cache[period]; ok && now.Sub(c.fetched) < cacheTTL {
		m.mu.Unlock()
		return c.value
	}
	m.mu.Unlock()

	// Miss: query outside the lock, the SQLite scan can be slow
	utcNow := now.UTC()
	var start time.Time
	if period == "daily" {
		start = time.Date(utcNow.Year(), utcNow.Month(), utcNow.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		start = time.Date(utcNow.Year(), utcNow.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	value, err := m.engine.TotalSpend(start, time.Time{})
	if err != nil {
		// Treat a failed lookup as zero spend rather than blocking routing
		value = 0
	}

	m.mu.Lock()
	m.cache[period] = cachedSpend{value: value, fetched: now}
	m.mu.Unlock()
	return value
}
