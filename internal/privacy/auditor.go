// Package privacy scans cloud-bound prompts for sensitive data and
// persists audit events. Prompt text is never stored.
package privacy

import (
	"regexp"
	"time"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/pricing"
)

// Pattern is a single regex rule for detecting sensitive data.
type Pattern struct {
	Name        string
	Regex       string
	Severity    string // low, medium, high
	Description string
}

// Match is one hit in a prompt. MatchedText is redacted to the first
// four characters plus "***".
type Match struct {
	PatternName string
	Severity    string
	MatchedText string
	Position    int
}

// Event records all matches found in a single prompt.
type Event struct {
	Timestamp      time.Time
	ModelID        string
	Provider       string
	Matches        []Match
	PromptLength   int
	Recommendation string
}

var builtinPatterns = []Pattern{
	{
		Name:        "Email Address",
		Regex:       `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`,
		Severity:    "medium",
		Description: "Email address detected in prompt.",
	},
	{
		Name:        "API Key",
		Regex:       `(?i)(?:api[_-]?key|token|secret|password)\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`,
		Severity:    "high",
		Description: "Possible API key or secret detected in prompt.",
	},
	{
		Name:        "AWS Access Key",
		Regex:       `AKIA[0-9A-Z]{16}`,
		Severity:    "high",
		Description: "AWS access key ID detected in prompt.",
	},
	{
		Name:        "SSN",
		Regex:       `\b\d{3}-\d{2}-\d{4}\b`,
		Severity:    "high",
		Description: "Social Security Number detected in prompt.",
	},
	{
		Name:        "Credit Card",
		Regex:       `\b(?:\d{4}[- ]?){3}\d{4}\b`,
		Severity:    "high",
		Description: "Possible credit card number detected in prompt.",
	},
	{
		Name:        "Confidential Marker",
		Regex:       `(?i)\b(?:confidential|classified|top\s+secret|internal\s+only|proprietary)\b`,
		Severity:    "medium",
		Description: "Confidentiality marker detected in prompt.",
	},
	{
		Name:        "Private IP Address",
		Regex:       `\b(?:10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3})\b`,
		Severity:    "low",
		Description: "Private/internal IP address detected in prompt.",
	},
}

type compiledPattern struct {
	pattern  Pattern
	compiled *regexp.Regexp
}

// Auditor scans prompts with the built-in patterns plus any custom
// ones. Custom patterns extend the built-ins, never replace them.
type Auditor struct {
	patterns []compiledPattern
}

// NewAuditor compiles the built-in patterns plus custom ones from
// config. Patterns that fail to compile are skipped with a warning.
func NewAuditor(custom []config.PatternConfig) *Auditor {
	all := make([]Pattern, 0, len(builtinPatterns)+len(custom))
	all = append(all, builtinPatterns...)
	for _, c := range custom {
		severity := c.Severity
		if severity == "" {
			severity = "medium"
		}
		all = append(all, Pattern{
			Name:        c.Name,
			Regex:       c.Pattern,
			Severity:    severity,
			Description: c.Description,
		})
	}

	a := &Auditor{patterns: make([]compiledPattern, 0, len(all))}
	for _, p := range all {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			L_warn("skipping unparseable privacy pattern", "name", p.Name, "error", err)
			continue
		}
		a.patterns = append(a.patterns, compiledPattern{pattern: p, compiled: re})
	}
	return a
}

// Audit runs every pattern against the prompt. Returns nil when the
// destination is not cloud-tier or nothing matched.
func (a *Auditor) Audit(prompt, modelID, provider, hostingTier string) *Event {
	if !pricing.IsCloudTier(hostingTier, provider) {
		return nil
	}

	var matches []Match
	for _, cp := range a.patterns {
		for _, loc := range cp.compiled.FindAllStringIndex(prompt, -1) {
			matches = append(matches, Match{
				PatternName: cp.pattern.Name,
				Severity:    cp.pattern.Severity,
				MatchedText: redact(prompt[loc[0]:loc[1]]),
				Position:    loc[0],
			})
		}
	}

	if len(matches) == 0 {
		return nil
	}

	return &Event{
		Timestamp:      time.Now().UTC(),
		ModelID:        modelID,
		Provider:       provider,
		Matches:        matches,
		PromptLength:   len(prompt),
		Recommendation: "Consider routing to a local model",
	}
}

// redact keeps the first 4 characters and appends "***".
func redact(text string) string {
	if len(text) <= 4 {
		return text + "***"
	}
	return text[:4] + "***"
}

func severityRank(s string) int {
	switch s {
	case "low":
		return 0
	case "medium":
		return 1
	case "high":
		return 2
	}
	return 0
}
