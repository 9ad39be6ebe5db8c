package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
models:
  local-coder:
    provider: ollama
    model_name: qwen2.5-coder
    context_limit: 32768
    tags: [fast, private]
  sonnet:
    provider: claude
    model_name: claude-sonnet-4-5-20250929
    api_key: sk-test
    hosting_tier: cloud
    cost_per_1m_input: 3.0
    cost_per_1m_output: 15.0
    timeout_s: 120
roles:
  coding: [local-coder, sonnet]
  reasoning:
    chain: [sonnet]
    description: deep planning
savings:
  budget:
    enabled: true
    daily_limit: 5.0
  privacy:
    enabled: true
    custom_patterns:
      - name: Codename
        pattern: '\bPROJECT-[A-Z]+\b'
        severity: high
  pricing_overrides:
    local-coder:
      input_per_million: 0.01
      output_per_million: 0.02
  triage:
    rules:
      - max_complexity: 3
        preferred_role: coding_lite
    default_role: coding
sessions:
  enabled: true
  condensation_threshold: 0.9
mcp:
  tools:
    compare_models: true
    route_task: false
semantic_verbs:
  hacking: coding
execution:
  retention_days: 30
  log_level: debug
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(sampleYAML), 0600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestLoadAndAccessors(t *testing.T) {
	cfg, err := Load(writeSample(t), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := cfg.RoleChain("coding"); len(got) != 2 || got[0] != "local-coder" || got[1] != "sonnet" {
		t.Errorf("flat chain = %v", got)
	}
	if got := cfg.RoleChain("reasoning"); len(got) != 1 || got[0] != "sonnet" {
		t.Errorf("object chain = %v", got)
	}
	if got := cfg.RoleChain("missing"); got != nil {
		t.Errorf("missing role chain = %v, want nil", got)
	}

	mc := cfg.ModelConfig("sonnet")
	if mc == nil {
		t.Fatal("sonnet config missing")
	}
	if mc.Provider != "claude" || mc.HostingTier != "cloud" || mc.TimeoutSeconds != 120 {
		t.Errorf("sonnet: %+v", mc)
	}
	if mc.CostPer1MInput == nil || *mc.CostPer1MInput != 3.0 {
		t.Errorf("cost_per_1m_input = %v", mc.CostPer1MInput)
	}
	if cfg.ModelConfig("ghost") != nil {
		t.Error("unknown model should be nil")
	}

	if tags := cfg.ModelTags("local-coder"); len(tags) != 2 || tags[0] != "fast" {
		t.Errorf("tags = %v", tags)
	}

	if models := cfg.Models(); len(models) != 2 {
		t.Errorf("models = %d entries, want 2", len(models))
	}
	if roles := cfg.Roles(); len(roles) != 2 {
		t.Errorf("roles = %v", roles)
	}
}

func TestEffectiveModelName(t *testing.T) {
	mc := &ModelConfig{ModelName: "qwen2.5-coder"}
	if got := mc.EffectiveModelName("local-coder"); got != "qwen2.5-coder" {
		t.Errorf("got %q", got)
	}
	mc = &ModelConfig{}
	if got := mc.EffectiveModelName("local-coder"); got != "local-coder" {
		t.Errorf("fallback got %q", got)
	}
}

func TestSavingsSections(t *testing.T) {
	cfg, err := Load(writeSample(t), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	bc := cfg.BudgetConfig()
	if !bc.Enabled || bc.DailyLimit == nil || *bc.DailyLimit != 5.0 || bc.MonthlyLimit != nil {
		t.Errorf("budget: %+v", bc)
	}

	pc := cfg.PrivacyConfig()
	if !pc.Enabled || len(pc.CustomPatterns) != 1 || pc.CustomPatterns[0].Severity != "high" {
		t.Errorf("privacy: %+v", pc)
	}

	po := cfg.PricingOverrides()
	if o, ok := po["local-coder"]; !ok || o.InputPerMillion != 0.01 {
		t.Errorf("pricing overrides: %+v", po)
	}

	tc := cfg.TriageConfig()
	if len(tc.Rules) != 1 || tc.Rules[0].MaxComplexity != 3 || tc.DefaultRole != "coding" {
		t.Errorf("triage: %+v", tc)
	}

	sc := cfg.SessionConfig()
	if !sc.Enabled || sc.CondensationThreshold == nil || *sc.CondensationThreshold != 0.9 {
		t.Errorf("sessions: %+v", sc)
	}

	ec := cfg.ExecutionConfig()
	if ec.RetentionDays != 30 || ec.LogLevel != "debug" {
		t.Errorf("execution: %+v", ec)
	}
}

func TestPrivacyEnabledByDefault(t *testing.T) {
	cfg := FromDocument("x.yaml", map[string]any{})
	if !cfg.PrivacyConfig().Enabled {
		t.Error("privacy must default to enabled")
	}
}

func TestToolEnabled(t *testing.T) {
	cfg, err := Load(writeSample(t), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.ToolEnabled("compare_models", true) {
		t.Error("explicit true should win over default-off")
	}
	if cfg.ToolEnabled("route_task", false) {
		t.Error("explicit false should win over default-on")
	}
	if !cfg.ToolEnabled("list_models", false) {
		t.Error("unset default-on tool should be enabled")
	}
	if cfg.ToolEnabled("unset_default_off", true) {
		t.Error("unset default-off tool should be disabled")
	}
}

func TestSemanticVerbs(t *testing.T) {
	cfg, err := Load(writeSample(t), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	verbs := cfg.SemanticVerbs()
	if verbs["hacking"] != "coding" {
		t.Errorf("verbs = %v", verbs)
	}
}

func TestWritersAndSaveRoundtrip(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	err = cfg.SetModel("new-model", &ModelConfig{Provider: "openapi", Endpoint: "http://localhost:8000/v1"})
	if err != nil {
		t.Fatalf("set model: %v", err)
	}
	cfg.SetRoleChain("analysis", []string{"new-model"})

	if !cfg.RemoveModel("local-coder") {
		t.Error("remove existing model should report true")
	}
	if cfg.RemoveModel("local-coder") {
		t.Error("second remove should report false")
	}
	if !cfg.RemoveRole("reasoning") {
		t.Error("remove existing role should report true")
	}

	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ModelConfig("new-model") == nil {
		t.Error("new model lost on save")
	}
	if reloaded.ModelConfig("local-coder") != nil {
		t.Error("removed model survived save")
	}
	if got := reloaded.RoleChain("analysis"); len(got) != 1 || got[0] != "new-model" {
		t.Errorf("analysis chain = %v", got)
	}
	// Unknown top-level sections must round-trip.
	if !reloaded.ToolEnabled("compare_models", true) {
		t.Error("mcp section lost on save")
	}
}

func TestLoadMissingConfig(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	if err == nil {
		t.Fatal("want error for missing config")
	}
	if !strings.Contains(err.Error(), "searched") {
		t.Errorf("error should list searched paths: %v", err)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	if err != nil {
		t.Fatalf("allowMissing load: %v", err)
	}
	if len(cfg.Roles()) != 0 {
		t.Error("empty config should have no roles")
	}
}

func TestEnvDiscovery(t *testing.T) {
	path := writeSample(t)
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("load via env: %v", err)
	}
	if cfg.Path() != path {
		t.Errorf("path = %q, want %q", cfg.Path(), path)
	}
}
