// Package config loads, queries and saves the auraconfig.yaml document.
// The raw document is kept as a map so unknown top-level keys survive a save.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	logging "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// EnvConfigPath is the environment variable consulted during config discovery.
const EnvConfigPath = "AURACORE_ROUTER_CONFIG"

// DefaultFileName is the config file name searched in the user home directory.
const DefaultFileName = "auraconfig.yaml"

// ModelConfig describes one entry in the top-level "models" section.
type ModelConfig struct {
	Provider        string         `yaml:"provider"`
	Endpoint        string         `yaml:"endpoint,omitempty"`
	ModelName       string         `yaml:"model_name,omitempty"`
	APIKey          string         `yaml:"api_key,omitempty"`
	EnvKey          string         `yaml:"env_key,omitempty"`
	Parameters      map[string]any `yaml:"parameters,omitempty"`
	HostingTier     string         `yaml:"hosting_tier,omitempty"`
	ContextLimit    int            `yaml:"context_limit,omitempty"`
	Tags            []string       `yaml:"tags,omitempty"`
	TimeoutSeconds  int            `yaml:"timeout_s,omitempty"`
	CostPer1MInput  *float64       `yaml:"cost_per_1m_input,omitempty"`
	CostPer1MOutput *float64       `yaml:"cost_per_1m_output,omitempty"`
}

// EffectiveModelName returns the provider-facing model name, falling back
// to the config key when model_name is not set.
func (m *ModelConfig) EffectiveModelName(modelID string) string {
	if m.ModelName != "" {
		return m.ModelName
	}
	return modelID
}

// BudgetConfig is the savings.budget section.
type BudgetConfig struct {
	Enabled      bool     `yaml:"enabled"`
	DailyLimit   *float64 `yaml:"daily_limit,omitempty"`
	MonthlyLimit *float64 `yaml:"monthly_limit,omitempty"`
}

// PatternConfig is one entry of savings.privacy.custom_patterns.
type PatternConfig struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Severity    string `yaml:"severity,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// PrivacyConfig is the savings.privacy section.
type PrivacyConfig struct {
	Enabled        bool            `yaml:"enabled"`
	CustomPatterns []PatternConfig `yaml:"custom_patterns,omitempty"`
}

// PriceOverride is one entry of savings.pricing_overrides.
type PriceOverride struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// TriageRule is one entry of savings.triage.rules.
type TriageRule struct {
	MaxComplexity int    `yaml:"max_complexity"`
	PreferredRole string `yaml:"preferred_role"`
	Description   string `yaml:"description,omitempty"`
}

// TriageConfig is the savings.triage section.
type TriageConfig struct {
	Rules       []TriageRule `yaml:"rules,omitempty"`
	DefaultRole string       `yaml:"default_role,omitempty"`
}

// SessionConfig is the top-level "sessions" section.
type SessionConfig struct {
	Enabled               bool     `yaml:"enabled"`
	AutoGist              *bool    `yaml:"auto_gist,omitempty"`
	CondensationThreshold *float64 `yaml:"condensation_threshold,omitempty"`
	DBPath                string   `yaml:"db_path,omitempty"`
}

// ExecutionConfig is the top-level "execution" section.
type ExecutionConfig struct {
	RetentionDays int    `yaml:"retention_days,omitempty"`
	UsageDBPath   string `yaml:"usage_db_path,omitempty"`
	PrivacyDBPath string `yaml:"privacy_db_path,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
}

// Config holds the parsed document plus the path it was loaded from.
// All reads and writes go through the lock; Save writes atomically.
type Config struct {
	mu   sync.RWMutex
	path string
	doc  map[string]any
}

// Load finds and parses the config file. Discovery order: the explicit
// path argument, the AURACORE_ROUTER_CONFIG environment variable, then
// <home>/.auracore/aurarouter/auraconfig.yaml. When allowMissing is true
// and nothing is found, an empty config rooted at the home path is
// returned instead of an error.
func Load(explicitPath string, allowMissing bool) (*Config, error) {
	resolved, searched := findConfig(explicitPath)
	if resolved == "" {
		if allowMissing {
			return &Config{path: DefaultPath(), doc: map[string]any{}}, nil
		}
		return nil, fmt.Errorf("could not find '%s', searched:\n%s",
			DefaultFileName, strings.Join(searched, "\n"))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", resolved, err)
	}

	logging.L_info("config loaded", "path", resolved)
	return &Config{path: resolved, doc: doc}, nil
}

// FromDocument builds a Config from an already-parsed document. Used by
// tests and the hot-reload watcher.
func FromDocument(path string, doc map[string]any) *Config {
	if doc == nil {
		doc = map[string]any{}
	}
	return &Config{path: path, doc: doc}
}

// DefaultPath returns the home-directory config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".auracore", "aurarouter", DefaultFileName)
}

func findConfig(explicitPath string) (string, []string) {
	var searched []string

	if explicitPath != "" {
		searched = append(searched, "  - command line (--config): "+explicitPath)
		if fileExists(explicitPath) {
			return explicitPath, nil
		}
		logging.L_warn("config not found at --config path", "path", explicitPath)
	}

	if env := os.Getenv(EnvConfigPath); env != "" {
		searched = append(searched, "  - environment ("+EnvConfigPath+"): "+env)
		if fileExists(env) {
			return env, nil
		}
		logging.L_warn("config not found at env var path", "path", env)
	}

	home := DefaultPath()
	searched = append(searched, "  - user home directory: "+home)
	if fileExists(home) {
		return home, nil
	}

	return "", searched
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Path returns the resolved config file path.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// decodeSection re-marshals a subtree of the raw document into a typed
// struct. Cheap relative to anything else in the request path.
func decodeSection(node any, out any) error {
	if node == nil {
		return nil
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

func (c *Config) section(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc[key]
}

func (c *Config) subSection(key, sub string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.doc[key].(map[string]any)
	if !ok {
		return nil
	}
	return m[sub]
}

// RoleChain returns the ordered model list behind a role. Both a flat
// list and a {chain: [...]} object are accepted; missing roles yield nil.
func (c *Config) RoleChain(role string) []string {
	node := c.subSection("roles", role)
	if node == nil {
		return nil
	}

	if m, ok := node.(map[string]any); ok {
		node = m["chain"]
	}

	items, ok := node.([]any)
	if !ok {
		return nil
	}
	chain := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			chain = append(chain, s)
		}
	}
	return chain
}

// Roles returns every role name that has a chain entry.
func (c *Config) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.doc["roles"].(map[string]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(m))
	for name := range m {
		roles = append(roles, name)
	}
	return roles
}

// ModelConfig returns the config entry for modelID, or nil when absent.
func (c *Config) ModelConfig(modelID string) *ModelConfig {
	node := c.subSection("models", modelID)
	if node == nil {
		return nil
	}
	var mc ModelConfig
	if err := decodeSection(node, &mc); err != nil {
		logging.L_warn("malformed model config", "model", modelID, "error", err)
		return nil
	}
	return &mc
}

// Models returns every configured model keyed by model ID.
func (c *Config) Models() map[string]*ModelConfig {
	c.mu.RLock()
	raw, _ := c.doc["models"].(map[string]any)
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	out := make(map[string]*ModelConfig, len(ids))
	for _, id := range ids {
		if mc := c.ModelConfig(id); mc != nil {
			out[id] = mc
		}
	}
	return out
}

// ModelTags returns the tags of a model, nil when the model is unknown.
func (c *Config) ModelTags(modelID string) []string {
	mc := c.ModelConfig(modelID)
	if mc == nil {
		return nil
	}
	return mc.Tags
}

func (c *Config) savingsSection(sub string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	savings, ok := c.doc["savings"].(map[string]any)
	if !ok {
		return nil
	}
	return savings[sub]
}

// BudgetConfig returns the savings.budget section, zero-valued if absent.
func (c *Config) BudgetConfig() BudgetConfig {
	var bc BudgetConfig
	if err := decodeSection(c.savingsSection("budget"), &bc); err != nil {
		logging.L_warn("malformed budget config", "error", err)
	}
	return bc
}

// PrivacyConfig returns the savings.privacy section.
func (c *Config) PrivacyConfig() PrivacyConfig {
	pc := PrivacyConfig{Enabled: true}
	node := c.savingsSection("privacy")
	if node == nil {
		return pc
	}
	if err := decodeSection(node, &pc); err != nil {
		logging.L_warn("malformed privacy config", "error", err)
	}
	return pc
}

// PricingOverrides returns savings.pricing_overrides keyed by model name.
func (c *Config) PricingOverrides() map[string]PriceOverride {
	out := map[string]PriceOverride{}
	if err := decodeSection(c.savingsSection("pricing_overrides"), &out); err != nil {
		logging.L_warn("malformed pricing overrides", "error", err)
	}
	return out
}

// TriageConfig returns the savings.triage section.
func (c *Config) TriageConfig() TriageConfig {
	var tc TriageConfig
	if err := decodeSection(c.savingsSection("triage"), &tc); err != nil {
		logging.L_warn("malformed triage config", "error", err)
	}
	return tc
}

// SessionConfig returns the top-level sessions section.
func (c *Config) SessionConfig() SessionConfig {
	var sc SessionConfig
	if err := decodeSection(c.section("sessions"), &sc); err != nil {
		logging.L_warn("malformed sessions config", "error", err)
	}
	return sc
}

// ExecutionConfig returns the top-level execution section.
func (c *Config) ExecutionConfig() ExecutionConfig {
	var ec ExecutionConfig
	if err := decodeSection(c.section("execution"), &ec); err != nil {
		logging.L_warn("malformed execution config", "error", err)
	}
	return ec
}

// ToolEnabled reports whether a tool is switched on under mcp.tools.
// Tools default to enabled unless defaultOff is set.
func (c *Config) ToolEnabled(name string, defaultOff bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mcp, ok := c.doc["mcp"].(map[string]any)
	if !ok {
		return !defaultOff
	}
	tools, ok := mcp["tools"].(map[string]any)
	if !ok {
		return !defaultOff
	}
	v, ok := tools[name].(bool)
	if !ok {
		return !defaultOff
	}
	return v
}

// SemanticVerbs returns the semantic_verbs synonym overrides.
func (c *Config) SemanticVerbs() map[string]string {
	out := map[string]string{}
	if err := decodeSection(c.section("semantic_verbs"), &out); err != nil {
		logging.L_warn("malformed semantic_verbs", "error", err)
	}
	return out
}

// SetModel creates or replaces a model entry.
func (c *Config) SetModel(modelID string, mc *ModelConfig) error {
	node := map[string]any{}
	if err := decodeSection(mc, &node); err != nil {
		return fmt.Errorf("failed to encode model config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	models, ok := c.doc["models"].(map[string]any)
	if !ok {
		models = map[string]any{}
		c.doc["models"] = models
	}
	models[modelID] = node
	return nil
}

// RemoveModel deletes a model entry. Returns false if it did not exist.
func (c *Config) RemoveModel(modelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	models, ok := c.doc["models"].(map[string]any)
	if !ok {
		return false
	}
	if _, exists := models[modelID]; !exists {
		return false
	}
	delete(models, modelID)
	return true
}

// SetRoleChain creates or replaces a role's chain as a flat list.
func (c *Config) SetRoleChain(role string, chain []string) {
	items := make([]any, len(chain))
	for i, id := range chain {
		items[i] = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	roles, ok := c.doc["roles"].(map[string]any)
	if !ok {
		roles = map[string]any{}
		c.doc["roles"] = roles
	}
	roles[role] = items
}

// RemoveRole deletes a role entry. Returns false if it did not exist.
func (c *Config) RemoveRole(role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	roles, ok := c.doc["roles"].(map[string]any)
	if !ok {
		return false
	}
	if _, exists := roles[role]; !exists {
		return false
	}
	delete(roles, role)
	return true
}

// Save writes the document atomically to the resolved path. Unknown
// top-level keys round-trip untouched.
func (c *Config) Save() error {
	c.mu.RLock()
	path := c.path
	data, err := yaml.Marshal(c.doc)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return AtomicWrite(path, data, 0600)
}
