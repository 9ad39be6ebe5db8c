// Package triage selects a role from a complexity score using ordered
// threshold rules.
package triage

import (
	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// DefaultRole is used when no rule matches and none is configured.
const DefaultRole = "coding"

// Router evaluates rules in order; the first rule whose MaxComplexity
// is >= the score wins.
type Router struct {
	rules       []config.TriageRule
	defaultRole string
}

// NewRouter builds a triage router from the savings.triage config.
func NewRouter(cfg config.TriageConfig) *Router {
	defaultRole := cfg.DefaultRole
	if defaultRole == "" {
		defaultRole = DefaultRole
	}
	return &Router{rules: cfg.Rules, defaultRole: defaultRole}
}

// SelectRole returns the preferred role for a complexity score.
func (r *Router) SelectRole(complexityScore int) string {
	for _, rule := range r.rules {
		if complexityScore <= rule.MaxComplexity {
			L_info("triage matched rule",
				"complexity", complexityScore,
				"max", rule.MaxComplexity,
				"role", rule.PreferredRole,
				"rule", rule.Description)
			return rule.PreferredRole
		}
	}

	L_info("triage matched no rule, using default",
		"complexity", complexityScore, "role", r.defaultRole)
	return r.defaultRole
}
