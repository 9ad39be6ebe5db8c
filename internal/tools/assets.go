package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// AssetsListTool enumerates the model assets in the live config.
type AssetsListTool struct {
	Fabric *fabric.Fabric
}

func (t *AssetsListTool) Name() string { return "aurarouter.assets.list" }

func (t *AssetsListTool) Description() string {
	return "List registered model assets as JSON."
}

func (t *AssetsListTool) Schema() map[string]any {
	return objectSchema(map[string]any{})
}

func (t *AssetsListTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	models := t.Fabric.Config().Models()

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	type asset struct {
		Name        string `json:"name"`
		Provider    string `json:"provider"`
		ModelName   string `json:"model_name,omitempty"`
		Endpoint    string `json:"endpoint,omitempty"`
		HostingTier string `json:"hosting_tier,omitempty"`
	}
	assets := make([]asset, 0, len(names))
	for _, name := range names {
		mc := models[name]
		assets = append(assets, asset{
			Name:        name,
			Provider:    mc.Provider,
			ModelName:   mc.ModelName,
			Endpoint:    mc.Endpoint,
			HostingTier: mc.HostingTier,
		})
	}

	out, err := json.MarshalIndent(assets, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// AssetsRegisterTool adds or replaces a model asset and persists the
// config.
type AssetsRegisterTool struct {
	Fabric *fabric.Fabric
}

func (t *AssetsRegisterTool) Name() string { return "aurarouter.assets.register" }

func (t *AssetsRegisterTool) Description() string {
	return "Register a model asset in the config; replaces any existing asset of the same name."
}

func (t *AssetsRegisterTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"name":         stringProp("Asset identifier used in role chains"),
		"provider":     stringProp("Provider: ollama, claude, google, openapi, llamacpp, llamacpp-server"),
		"model_name":   stringProp("Provider-side model name, defaults to the asset name"),
		"endpoint":     stringProp("Override endpoint URL"),
		"hosting_tier": stringProp("Explicit hosting tier: cloud or on-prem"),
		"roles":        stringProp("Comma-separated roles to append this asset to"),
	}, "name", "provider")
}

func (t *AssetsRegisterTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Name        string `json:"name"`
		Provider    string `json:"provider"`
		ModelName   string `json:"model_name"`
		Endpoint    string `json:"endpoint"`
		HostingTier string `json:"hosting_tier"`
		Roles       string `json:"roles"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Name == "" || args.Provider == "" {
		return "", fmt.Errorf("name and provider are required")
	}

	cfg := t.Fabric.Config()
	err := cfg.SetModel(args.Name, &config.ModelConfig{
		Provider:    args.Provider,
		ModelName:   args.ModelName,
		Endpoint:    args.Endpoint,
		HostingTier: args.HostingTier,
	})
	if err != nil {
		return "", err
	}

	for _, role := range strings.Split(args.Roles, ",") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		chain := cfg.RoleChain(role)
		if !slices.Contains(chain, args.Name) {
			cfg.SetRoleChain(role, append(chain, args.Name))
		}
	}

	if err := cfg.Save(); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}

	L_info("asset registered", "name", args.Name, "provider", args.Provider)
	t.Fabric.UpdateConfig(cfg)
	return fmt.Sprintf("Asset %s registered.", args.Name), nil
}

// AssetsUnregisterTool removes a model asset from the config and every
// role chain referencing it.
type AssetsUnregisterTool struct {
	Fabric *fabric.Fabric
}

func (t *AssetsUnregisterTool) Name() string { return "aurarouter.assets.unregister" }

func (t *AssetsUnregisterTool) Description() string {
	return "Unregister a model asset and remove it from all role chains."
}

func (t *AssetsUnregisterTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"name": stringProp("Asset identifier to remove"),
	}, "name")
}

func (t *AssetsUnregisterTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	cfg := t.Fabric.Config()
	if !cfg.RemoveModel(args.Name) {
		return fmt.Sprintf("Asset %s not found.", args.Name), nil
	}

	for _, role := range cfg.Roles() {
		chain := cfg.RoleChain(role)
		filtered := make([]string, 0, len(chain))
		for _, id := range chain {
			if id != args.Name {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) != len(chain) {
			cfg.SetRoleChain(role, filtered)
		}
	}

	if err := cfg.Save(); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}

	L_info("asset unregistered", "name", args.Name)
	t.Fabric.UpdateConfig(cfg)
	return fmt.Sprintf("Asset %s unregistered.", args.Name), nil
}
