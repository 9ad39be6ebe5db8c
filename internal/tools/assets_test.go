package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"slices"
	"testing"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
)

func assetFabric(t *testing.T) *fabric.Fabric {
	t.Helper()
	cfg := config.FromDocument(filepath.Join(t.TempDir(), "auraconfig.yaml"), map[string]any{
		"models": map[string]any{
			"existing": map[string]any{"provider": "ollama"},
		},
		"roles": map[string]any{
			"coding": []any{"existing"},
		},
	})
	return fabric.New(fabric.Deps{Config: cfg})
}

func TestAssetsRegisterAppendsOnce(t *testing.T) {
	f := assetFabric(t)
	reg := &AssetsRegisterTool{Fabric: f}

	args := json.RawMessage(`{"name":"new-model","provider":"ollama","roles":"coding"}`)
	if _, err := reg.Execute(context.Background(), args); err != nil {
		t.Fatalf("register: %v", err)
	}

	chain := f.Config().RoleChain("coding")
	if !slices.Contains(chain, "new-model") {
		t.Fatalf("chain = %v", chain)
	}

	// Registering again must not duplicate the chain entry.
	if _, err := reg.Execute(context.Background(), args); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	chain = f.Config().RoleChain("coding")
	count := 0
	for _, id := range chain {
		if id == "new-model" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("chain = %v, want exactly one new-model entry", chain)
	}
}

func TestAssetsUnregisterFiltersChains(t *testing.T) {
	f := assetFabric(t)
	unreg := &AssetsUnregisterTool{Fabric: f}

	out, err := unreg.Execute(context.Background(), json.RawMessage(`{"name":"existing"}`))
	if err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if out != "Asset existing unregistered." {
		t.Errorf("out = %q", out)
	}

	cfg := f.Config()
	if cfg.ModelConfig("existing") != nil {
		t.Error("model survived unregister")
	}
	if chain := cfg.RoleChain("coding"); slices.Contains(chain, "existing") {
		t.Errorf("chain still references removed asset: %v", chain)
	}

	out, err = unreg.Execute(context.Background(), json.RawMessage(`{"name":"existing"}`))
	if err != nil {
		t.Fatalf("second unregister: %v", err)
	}
	if out != "Asset existing not found." {
		t.Errorf("out = %q", out)
	}
}
