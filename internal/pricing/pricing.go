// Package pricing resolves hosting tiers and per-token prices, and
// computes spend, projections and ROI over the usage ledger.
package pricing

import "sync"

// Provider default hosting tiers. openapi defaults to on-prem since it
// usually fronts a self-hosted server; set an explicit tier otherwise.
var providerDefaultTiers = map[string]string{
	"ollama":          "on-prem",
	"llamacpp":        "on-prem",
	"llamacpp-server": "on-prem",
	"google":          "cloud",
	"claude":          "cloud",
	"openapi":         "on-prem",
}

// ResolveHostingTier determines the effective tier for a model:
// explicit config value, then the provider default, then on-prem.
func ResolveHostingTier(hostingTier, provider string) string {
	if hostingTier != "" {
		return hostingTier
	}
	if tier, ok := providerDefaultTiers[provider]; ok {
		return tier
	}
	return "on-prem"
}

// IsCloudTier reports whether the resolved tier is cloud.
func IsCloudTier(hostingTier, provider string) bool {
	return ResolveHostingTier(hostingTier, provider) == "cloud"
}

// IsCloudProvider reports whether the provider itself is a cloud API.
func IsCloudProvider(provider string) bool {
	return providerDefaultTiers[provider] == "cloud"
}

// ModelPrice is the cost per 1 million tokens for a specific model.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var builtinPrices = map[string]ModelPrice{
	// Claude
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	// Gemini
	"gemini-2.0-flash": {0.10, 0.40},
	"gemini-2.0-pro":   {1.25, 10.00},
	// Provider catch-alls (local = free)
	"ollama:*":          {0, 0},
	"llamacpp:*":        {0, 0},
	"llamacpp-server:*": {0, 0},
}

// ConfigResolver optionally supplies per-model prices straight from the
// model's config entry (cost_per_1m_input/output). Both values must be
// present for the pair to apply.
type ConfigResolver func(modelName string) (input, output *float64)

// Catalog is an immutable-per-reload price lookup. Resolution order:
// model-config prices, exact-name override, exact-name built-in,
// provider:* catch-all, zero.
type Catalog struct {
	mu       sync.RWMutex
	prices   map[string]ModelPrice
	resolver ConfigResolver
}

// NewCatalog builds a catalog with user overrides layered on the
// built-in table.
func NewCatalog(overrides map[string]ModelPrice, resolver ConfigResolver) *Catalog {
	prices := make(map[string]ModelPrice, len(builtinPrices)+len(overrides))
	for k, v := range builtinPrices {
		prices[k] = v
	}
	for k, v := range overrides {
		prices[k] = v
	}
	return &Catalog{prices: prices, resolver: resolver}
}

// GetPrice looks up the token price for modelName on provider.
func (c *Catalog) GetPrice(modelName, provider string) ModelPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.resolver != nil {
		in, out := c.resolver(modelName)
		if in != nil && out != nil {
			return ModelPrice{InputPerMillion: *in, OutputPerMillion: *out}
		}
	}

	if price, ok := c.prices[modelName]; ok {
		return price
	}

	if price, ok := c.prices[provider+":*"]; ok {
		return price
	}

	return ModelPrice{}
}
