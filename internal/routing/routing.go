// Package routing layers intent classification and plan generation on
// top of the fabric's role chains.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// Intent labels emitted by AnalyzeIntent.
const (
	IntentSimpleCode       = "SIMPLE_CODE"
	IntentComplexReasoning = "COMPLEX_REASONING"
)

// DefaultComplexity is assumed when the classifier output is missing
// or unparseable.
const DefaultComplexity = 5

// TriageResult is the classifier's verdict for a task.
type TriageResult struct {
	Intent     string `json:"intent"`
	Complexity int    `json:"complexity"`
}

// AnalyzeIntent classifies a task through the router role. Malformed
// or unparseable classifier output degrades to SIMPLE_CODE with the
// default complexity.
func AnalyzeIntent(ctx context.Context, f *fabric.Fabric, task string) TriageResult {
	fallback := TriageResult{Intent: IntentSimpleCode, Complexity: DefaultComplexity}

	prompt := fmt.Sprintf(
		"CLASSIFY intent.\nTask: %q\nOptions: [\"SIMPLE_CODE\", \"COMPLEX_REASONING\"]\n"+
			"Also rate complexity from 1 (trivial) to 10 (architectural).\n"+
			"Return JSON: {\"intent\": \"...\", \"complexity\": N}",
		task)

	res, err := f.Execute(ctx, "router", prompt, &fabric.ExecuteOpts{JSONMode: true, Intent: "triage"})
	if err != nil {
		L_warn("intent classification failed, defaulting", "error", err)
		return fallback
	}

	var parsed TriageResult
	if err := json.Unmarshal([]byte(res), &parsed); err != nil || parsed.Intent == "" {
		return fallback
	}
	if parsed.Complexity < 1 || parsed.Complexity > 10 {
		parsed.Complexity = DefaultComplexity
	}
	return parsed
}

// GeneratePlan asks the reasoning role for an ordered list of atomic
// steps. Any failure collapses to a single-step plan holding the task
// itself.
func GeneratePlan(ctx context.Context, f *fabric.Fabric, task, taskContext string) []string {
	prompt := fmt.Sprintf(
		"You are a Lead Software Architect.\nTASK: %s\nCONTEXT: %s\n\n"+
			"Create a strictly sequential JSON list of atomic coding steps.\n"+
			"Example: [\"Create utils.py\", \"Implement class in utils.py\", \"Update main.py\"]\n"+
			"Return JSON List only.",
		task, taskContext)

	res, err := f.Execute(ctx, "reasoning", prompt, &fabric.ExecuteOpts{Intent: "plan"})
	if err != nil || strings.TrimSpace(res) == "" {
		return []string{task}
	}

	clean := strings.ReplaceAll(res, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var steps []string
	if err := json.Unmarshal([]byte(clean), &steps); err != nil || len(steps) == 0 {
		return []string{task}
	}
	return steps
}
