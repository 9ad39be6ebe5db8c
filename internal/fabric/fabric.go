// Package fabric is the execution engine: it walks role chains with
// graceful degradation while gating attempts through the budget and
// privacy subsystems, recording usage, and serving stateful sessions.
package fabric

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AuraCoreDynamics/aurarouter/internal/advisor"
	"github.com/AuraCoreDynamics/aurarouter/internal/budget"
	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	"github.com/AuraCoreDynamics/aurarouter/internal/llm"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/pricing"
	"github.com/AuraCoreDynamics/aurarouter/internal/privacy"
	"github.com/AuraCoreDynamics/aurarouter/internal/session"
	"github.com/AuraCoreDynamics/aurarouter/internal/tokens"
	"github.com/AuraCoreDynamics/aurarouter/internal/usage"
)

// ModelTriedFn is the short per-attempt callback form.
type ModelTriedFn func(role, modelID string, success bool, elapsedSeconds float64)

// ModelTriedUsageFn is the per-attempt callback form with token counts.
type ModelTriedUsageFn func(role, modelID string, success bool, elapsedSeconds float64, inputTokens, outputTokens int)

// ExecuteOpts tunes a single Execute call. The two callback fields are
// alternative arities; when both are set the usage form wins.
type ExecuteOpts struct {
	JSONMode          bool
	Intent            string
	ChainOverride     []string
	OnModelTried      ModelTriedFn
	OnModelTriedUsage ModelTriedUsageFn
}

// SessionOpts tunes a single ExecuteSession call. InjectGist nil means
// follow the session manager's auto-gist setting.
type SessionOpts struct {
	JSONMode          bool
	SystemPrompt      string
	InjectGist        *bool
	ChainOverride     []string
	OnModelTried      ModelTriedFn
	OnModelTriedUsage ModelTriedUsageFn
}

// CompareResult is one row of an ExecuteAll comparison.
type CompareResult struct {
	ModelID        string  `json:"model_id"`
	Provider       string  `json:"provider"`
	Success        bool    `json:"success"`
	Text           string  `json:"text"`
	ElapsedSeconds float64 `json:"elapsed_s"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
}

// Deps are the fabric's collaborators. Any of them except Config may be
// nil; the corresponding concern is then skipped.
type Deps struct {
	Config       *config.Config
	Advisors     *advisor.Registry
	UsageStore   *usage.Store
	PrivacyStore *privacy.Store
	CostEngine   *pricing.CostEngine
	Budget       *budget.Manager
	Sessions     *session.Manager

	// ProviderFactory overrides adapter construction; defaults to
	// llm.NewProvider.
	ProviderFactory func(modelID string, cfg *config.ModelConfig) (llm.Provider, error)
}

// Fabric routes prompts through role chains. Safe for concurrent use;
// all per-request state is stack-local.
type Fabric struct {
	mu            sync.RWMutex
	cfg           *config.Config
	providerCache map[string]llm.Provider
	auditor       *privacy.Auditor
	newProvider   func(modelID string, cfg *config.ModelConfig) (llm.Provider, error)

	advisors     *advisor.Registry
	usageStore   *usage.Store
	privacyStore *privacy.Store
	costEngine   *pricing.CostEngine
	budget       *budget.Manager
	sessions     *session.Manager
}

// New builds a fabric and its privacy auditor from the current config.
func New(deps Deps) *Fabric {
	f := &Fabric{
		cfg:           deps.Config,
		providerCache: map[string]llm.Provider{},
		newProvider:   deps.ProviderFactory,
		advisors:      deps.Advisors,
		usageStore:    deps.UsageStore,
		privacyStore:  deps.PrivacyStore,
		costEngine:    deps.CostEngine,
		budget:        deps.Budget,
		sessions:      deps.Sessions,
	}
	if f.newProvider == nil {
		f.newProvider = llm.NewProvider
	}
	if deps.Config != nil {
		pc := deps.Config.PrivacyConfig()
		if pc.Enabled {
			f.auditor = privacy.NewAuditor(pc.CustomPatterns)
		}
	}
	return f
}

// Sessions returns the session manager, nil when sessions are disabled.
func (f *Fabric) Sessions() *session.Manager { return f.sessions }

// Config returns the currently active config.
func (f *Fabric) Config() *config.Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// UpdateConfig atomically swaps the config, clears the provider cache,
// and rebuilds the pricing catalog, budget limits and privacy auditor.
// In-flight requests complete with the snapshot they already took.
func (f *Fabric) UpdateConfig(newCfg *config.Config) {
	pc := newCfg.PrivacyConfig()
	var auditor *privacy.Auditor
	if pc.Enabled {
		auditor = privacy.NewAuditor(pc.CustomPatterns)
	}

	f.mu.Lock()
	f.cfg = newCfg
	f.providerCache = map[string]llm.Provider{}
	f.auditor = auditor
	f.mu.Unlock()

	if f.costEngine != nil {
		overrides := map[string]pricing.ModelPrice{}
		for name, o := range newCfg.PricingOverrides() {
			overrides[name] = pricing.ModelPrice{
				InputPerMillion:  o.InputPerMillion,
				OutputPerMillion: o.OutputPerMillion,
			}
		}
		f.costEngine.SetCatalog(pricing.NewCatalog(overrides, f.ConfigPriceResolver()))
	}

	if f.budget != nil {
		f.budget.UpdateConfig(newCfg.BudgetConfig())
	}

	L_info("fabric config updated, provider cache cleared")
}

// ConfigPriceResolver feeds per-model cost_per_1m settings from the
// live config into the pricing catalog.
func (f *Fabric) ConfigPriceResolver() pricing.ConfigResolver {
	return func(modelName string) (*float64, *float64) {
		mc := f.Config().ModelConfig(modelName)
		if mc == nil {
			return nil, nil
		}
		return mc.CostPer1MInput, mc.CostPer1MOutput
	}
}

// Execute routes a prompt through a role's chain and returns the first
// non-empty response. Error cases: *EmptyChainError when the role has
// no models, *BudgetExceededError when every non-skipped attempt was
// budget-denied, ErrAllModelsFailed when every attempt raised or came
// back empty.
func (f *Fabric) Execute(ctx context.Context, role, prompt string, opts *ExecuteOpts) (string, error) {
	if opts == nil {
		opts = &ExecuteOpts{}
	}
	cfg := f.Config()

	chain := opts.ChainOverride
	if len(chain) == 0 {
		chain = cfg.RoleChain(role)
	}
	chain = f.consultAdvisors(ctx, role, chain)
	if len(chain) == 0 {
		return "", &EmptyChainError{Role: role}
	}

	var errorCount int
	var budgetReason string

	for _, modelID := range chain {
		modelCfg := cfg.ModelConfig(modelID)
		if modelCfg == nil {
			continue
		}
		providerName := modelCfg.Provider
		L_info("routing", "role", role, "model", modelID, "provider", providerName)

		if f.budget != nil && pricing.IsCloudTier(modelCfg.HostingTier, providerName) {
			status := f.budget.CheckBudget(providerName)
			if !status.Allowed {
				L_warn("budget exceeded, skipping model",
					"role", role, "model", modelID, "reason", status.Reason)
				f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, false, 0, 0, 0)
				budgetReason = status.Reason
				continue
			}
		}

		provider, err := f.provider(modelID, modelCfg)
		if err != nil {
			L_warn("provider construction failed", "model", modelID, "error", err)
			errorCount++
			f.recordUsage(role, opts.Intent, modelID, providerName, modelCfg.HostingTier, 0, 0, 0, false)
			f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, false, 0, 0, 0)
			continue
		}

		f.auditPrompt(prompt, modelID, providerName, modelCfg.HostingTier)

		start := time.Now()
		result, err := provider.GenerateWithUsage(ctx, prompt, opts.JSONMode)
		elapsed := time.Since(start).Seconds()

		if err != nil || result == nil || strings.TrimSpace(result.Text) == "" {
			if err != nil {
				L_warn("model failed", "role", role, "model", modelID, "error", err)
			} else {
				L_warn("model returned empty response", "role", role, "model", modelID)
			}
			errorCount++
			f.recordUsage(role, opts.Intent, modelID, providerName, modelCfg.HostingTier, 0, 0, elapsed, false)
			f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, false, elapsed, 0, 0)
			continue
		}

		L_info("success", "role", role, "model", modelID, "elapsed", elapsed)
		f.recordUsage(role, opts.Intent, modelID, providerName, modelCfg.HostingTier,
			result.InputTokens, result.OutputTokens, elapsed, true)
		f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, true, elapsed,
			result.InputTokens, result.OutputTokens)
		return result.Text, nil
	}

	if budgetReason != "" && errorCount == 0 {
		return "", &BudgetExceededError{Reason: budgetReason}
	}

	L_error("all models failed", "role", role)
	return "", ErrAllModelsFailed
}

// ExecuteAll invokes every model in the chain regardless of outcome and
// collects per-model results. Never returns an error; per-model
// failures are carried inside the results.
func (f *Fabric) ExecuteAll(ctx context.Context, role, prompt string, modelIDs []string, jsonMode bool) []CompareResult {
	cfg := f.Config()

	chain := modelIDs
	if len(chain) == 0 {
		chain = cfg.RoleChain(role)
	}

	var results []CompareResult
	for _, modelID := range chain {
		modelCfg := cfg.ModelConfig(modelID)
		if modelCfg == nil {
			continue
		}
		providerName := modelCfg.Provider
		L_info("compare routing", "role", role, "model", modelID, "provider", providerName)

		start := time.Now()
		provider, err := f.provider(modelID, modelCfg)
		var result *llm.GenerateResult
		if err == nil {
			result, err = provider.GenerateWithUsage(ctx, prompt, jsonMode)
		}
		elapsed := time.Since(start).Seconds()

		if err != nil {
			L_warn("model failed during compare", "model", modelID, "error", err)
			f.recordUsage(role, "compare", modelID, providerName, modelCfg.HostingTier, 0, 0, elapsed, false)
			results = append(results, CompareResult{
				ModelID:        modelID,
				Provider:       providerName,
				Success:        false,
				Text:           "ERROR: " + err.Error(),
				ElapsedSeconds: elapsed,
			})
			continue
		}

		success := strings.TrimSpace(result.Text) != ""
		f.recordUsage(role, "compare", modelID, providerName, modelCfg.HostingTier,
			result.InputTokens, result.OutputTokens, elapsed, success)
		results = append(results, CompareResult{
			ModelID:        modelID,
			Provider:       providerName,
			Success:        success,
			Text:           result.Text,
			ElapsedSeconds: elapsed,
			InputTokens:    result.InputTokens,
			OutputTokens:   result.OutputTokens,
		})
	}
	return results
}

// ExecuteSession routes one session turn. The message list comes from
// the session manager; on success the user and assistant messages are
// committed to the session, a fallback gist is produced when the model
// skipped the marker, and condensation runs when pressure demands it.
func (f *Fabric) ExecuteSession(ctx context.Context, role string, sess *session.Session, message string, opts *SessionOpts) (*llm.GenerateResult, error) {
	if opts == nil {
		opts = &SessionOpts{}
	}
	if f.sessions == nil {
		return nil, ErrAllModelsFailed
	}
	cfg := f.Config()

	injectGist := f.sessions.AutoGist()
	if opts.InjectGist != nil {
		injectGist = *opts.InjectGist
	}

	messages := f.sessions.PrepareMessages(sess, message, injectGist)

	chain := opts.ChainOverride
	if len(chain) == 0 {
		chain = cfg.RoleChain(role)
	}
	chain = f.consultAdvisors(ctx, role, chain)
	if len(chain) == 0 {
		return nil, &EmptyChainError{Role: role}
	}

	var errorCount int
	var budgetReason string

	for _, modelID := range chain {
		modelCfg := cfg.ModelConfig(modelID)
		if modelCfg == nil {
			continue
		}
		providerName := modelCfg.Provider

		if f.budget != nil && pricing.IsCloudTier(modelCfg.HostingTier, providerName) {
			status := f.budget.CheckBudget(providerName)
			if !status.Allowed {
				f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, false, 0, 0, 0)
				budgetReason = status.Reason
				continue
			}
		}

		provider, err := f.provider(modelID, modelCfg)
		if err != nil {
			errorCount++
			f.recordUsage(role, "session", modelID, providerName, modelCfg.HostingTier, 0, 0, 0, false)
			f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, false, 0, 0, 0)
			continue
		}

		f.auditPrompt(message, modelID, providerName, modelCfg.HostingTier)

		start := time.Now()
		result, err := provider.GenerateWithHistory(ctx, messages, opts.SystemPrompt, opts.JSONMode)
		elapsed := time.Since(start).Seconds()

		if err != nil || result == nil || strings.TrimSpace(result.Text) == "" {
			if err != nil {
				L_warn("session model failed", "role", role, "model", modelID, "error", err)
			}
			errorCount++
			f.recordUsage(role, "session", modelID, providerName, modelCfg.HostingTier, 0, 0, elapsed, false)
			f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, false, elapsed, 0, 0)
			continue
		}

		cleanText, gistText := session.ExtractGist(result.Text)
		contextLimit := result.ContextLimit
		if contextLimit == 0 {
			contextLimit = provider.GetContextLimit()
		}

		// Commit the turn: user message, token stats, assistant message
		f.sessions.AddUserMessage(sess, message, tokens.Estimate(message))
		sess.TokenStats.OutputTokens += result.OutputTokens
		if contextLimit > 0 {
			sess.TokenStats.ContextLimit = contextLimit
		}
		gistFound := f.sessions.AddAssistantMessage(sess, result.Text, modelID, result.OutputTokens)

		f.recordUsage(role, "session", modelID, providerName, modelCfg.HostingTier,
			result.InputTokens, result.OutputTokens, elapsed, true)
		f.fireCallback(opts.OnModelTried, opts.OnModelTriedUsage, role, modelID, true, elapsed,
			result.InputTokens, result.OutputTokens)

		if !gistFound && injectGist {
			f.sessions.GenerateFallbackGist(ctx, sess, cleanText, modelID)
		}

		if f.sessions.CheckPressure(sess) {
			f.sessions.Condense(ctx, sess)
		}

		return &llm.GenerateResult{
			Text:         cleanText,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			ModelID:      modelID,
			Provider:     providerName,
			ContextLimit: contextLimit,
			Gist:         gistText,
		}, nil
	}

	if budgetReason != "" && errorCount == 0 {
		return nil, &BudgetExceededError{Reason: budgetReason}
	}
	return nil, ErrAllModelsFailed
}

// provider returns the cached adapter for a model, instantiating on miss.
func (f *Fabric) provider(modelID string, modelCfg *config.ModelConfig) (llm.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providerCache[modelID]; ok {
		return p, nil
	}
	p, err := f.newProvider(modelID, modelCfg)
	if err != nil {
		return nil, err
	}
	f.providerCache[modelID] = p
	return p, nil
}

// CachedProviderCount reports the provider cache size.
func (f *Fabric) CachedProviderCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.providerCache)
}

// auditPrompt runs the privacy audit for cloud-tier destinations and
// persists any event. Auditing never blocks routing; failures are
// swallowed.
func (f *Fabric) auditPrompt(prompt, modelID, providerName, hostingTier string) {
	f.mu.RLock()
	auditor := f.auditor
	f.mu.RUnlock()
	if auditor == nil {
		return
	}

	event := auditor.Audit(prompt, modelID, providerName, hostingTier)
	if event == nil {
		return
	}

	L_warn("privacy audit matched",
		"model", modelID, "provider", providerName, "matches", len(event.Matches))

	if f.privacyStore != nil {
		if err := f.privacyStore.Record(event); err != nil {
			L_debug("privacy event persist failed", "error", err)
		}
	}
}

// consultAdvisors asks each connected chain_reorder advisor for a new
// ordering; the first non-empty response wins, failures keep the
// original chain.
func (f *Fabric) consultAdvisors(ctx context.Context, role string, chain []string) []string {
	if f.advisors == nil || len(chain) == 0 {
		return chain
	}

	clients := f.advisors.ClientsWithCapability(advisor.CapChainReorder)
	for _, client := range clients {
		result, err := client.CallTool(ctx, advisor.CapChainReorder, map[string]any{
			"role":  role,
			"chain": chain,
		})
		if err != nil {
			L_debug("routing advisor failed", "advisor", client.Name(), "error", err)
			continue
		}

		reordered := toStringSlice(result["chain"])
		if len(reordered) > 0 {
			L_info("advisor reordered chain",
				"advisor", client.Name(), "role", role, "chain", reordered)
			return reordered
		}
	}
	return chain
}

func (f *Fabric) recordUsage(role, intent, modelID, providerName, hostingTier string, inputTokens, outputTokens int, elapsed float64, success bool) {
	if f.usageStore == nil {
		return
	}
	err := f.usageStore.Record(usage.Record{
		Timestamp:      time.Now().UTC(),
		ModelID:        modelID,
		Provider:       providerName,
		Role:           role,
		Intent:         intent,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		ElapsedSeconds: elapsed,
		Success:        success,
		IsCloud:        pricing.IsCloudTier(hostingTier, providerName),
	})
	if err != nil {
		L_warn("usage record failed", "model", modelID, "error", err)
	}
}

// fireCallback invokes the matching callback form. Panics are swallowed
// so instrumentation can never fail a request.
func (f *Fabric) fireCallback(short ModelTriedFn, full ModelTriedUsageFn, role, modelID string, success bool, elapsed float64, inputTokens, outputTokens int) {
	defer func() {
		if r := recover(); r != nil {
			L_debug("on_model_tried callback panicked, ignoring", "panic", r)
		}
	}()

	if full != nil {
		full(role, modelID, success, elapsed, inputTokens, outputTokens)
		return
	}
	if short != nil {
		short(role, modelID, success, elapsed)
	}
}

func toStringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
