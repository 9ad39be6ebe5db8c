package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	"github.com/AuraCoreDynamics/aurarouter/internal/pricing"
)

// ListModelsTool reports the configured models, their providers,
// hosting tiers and the roles that reference them.
type ListModelsTool struct {
	Fabric *fabric.Fabric
}

func (t *ListModelsTool) Name() string { return "list_models" }

func (t *ListModelsTool) Description() string {
	return "List configured models with provider, hosting tier and role membership."
}

func (t *ListModelsTool) Schema() map[string]any {
	return objectSchema(map[string]any{})
}

func (t *ListModelsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	cfg := t.Fabric.Config()
	models := cfg.Models()

	// model -> roles that reference it
	roleIndex := map[string][]string{}
	for _, role := range cfg.Roles() {
		for _, modelID := range cfg.RoleChain(role) {
			roleIndex[modelID] = append(roleIndex[modelID], role)
		}
	}

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		mc := models[name]
		tier := pricing.ResolveHostingTier(mc.HostingTier, mc.Provider)
		roles := roleIndex[name]
		sort.Strings(roles)
		line := fmt.Sprintf("- %s (provider: %s, tier: %s", name, mc.Provider, tier)
		if len(roles) > 0 {
			line += ", roles: " + strings.Join(roles, ", ")
		}
		line += ")"
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return "No models configured.", nil
	}
	return strings.Join(lines, "\n"), nil
}

// CompareModelsTool runs a prompt across every model in a chain and
// reports every response side by side. Expensive; off by default.
type CompareModelsTool struct {
	Fabric *fabric.Fabric
}

func (t *CompareModelsTool) Name() string { return "compare_models" }

func (t *CompareModelsTool) Description() string {
	return "Run a prompt across multiple models and return all responses."
}

func (t *CompareModelsTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"prompt": stringProp("The prompt to run on every model"),
		"models": stringProp("Comma-separated model IDs; default is the coding chain"),
	}, "prompt")
}

func (t *CompareModelsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Prompt string `json:"prompt"`
		Models string `json:"models"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	var modelIDs []string
	for _, m := range strings.Split(args.Models, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modelIDs = append(modelIDs, m)
		}
	}

	results := t.Fabric.ExecuteAll(ctx, "coding", args.Prompt, modelIDs, false)
	if len(results) == 0 {
		return "Error: No models available for comparison.", nil
	}

	var parts []string
	for _, r := range results {
		status := "FAILED"
		if r.Success {
			status = "SUCCESS"
		}
		parts = append(parts, fmt.Sprintf("=== %s (%s) [%s] (%.2fs, %din/%dout) ===",
			r.ModelID, r.Provider, status, r.ElapsedSeconds, r.InputTokens, r.OutputTokens))
		parts = append(parts, r.Text)
		parts = append(parts, "")
	}

	return strings.Join(parts, "\n"), nil
}
