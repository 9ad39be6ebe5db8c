// aurarouter is a privacy-first AI compute router: prompts flow through
// role chains of local and cloud models with budget gating, privacy
// auditing, and a usage ledger, exposed as a JSON-RPC tool server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/AuraCoreDynamics/aurarouter/internal/advisor"
	"github.com/AuraCoreDynamics/aurarouter/internal/budget"
	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	"github.com/AuraCoreDynamics/aurarouter/internal/gateway"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/pricing"
	"github.com/AuraCoreDynamics/aurarouter/internal/privacy"
	"github.com/AuraCoreDynamics/aurarouter/internal/retention"
	"github.com/AuraCoreDynamics/aurarouter/internal/session"
	"github.com/AuraCoreDynamics/aurarouter/internal/tools"
	"github.com/AuraCoreDynamics/aurarouter/internal/triage"
	"github.com/AuraCoreDynamics/aurarouter/internal/usage"
)

const version = "0.9.0"

type cli struct {
	Config             string `help:"Path to auraconfig.yaml." type:"path"`
	AllowMissingConfig bool   `help:"Start with an empty config when none is found."`
	LogLevel           string `help:"Log level: trace, debug, info, warn, error." default:""`

	Serve   serveCmd   `cmd:"" default:"1" help:"Run the JSON-RPC tool server on stdio."`
	Version versionCmd `cmd:"" help:"Print the version and exit."`
}

type versionCmd struct{}

func (v *versionCmd) Run() error {
	fmt.Printf("aurarouter %s\n", version)
	return nil
}

type serveCmd struct{}

func (s *serveCmd) Run(root *cli) error {
	cfg, err := config.Load(root.Config, root.AllowMissingConfig)
	if err != nil {
		return err
	}

	level := root.LogLevel
	if level == "" {
		level = cfg.ExecutionConfig().LogLevel
	}
	SetLevel(parseLevel(level))
	L_info("aurarouter %s starting", version)

	dataDir := filepath.Dir(config.DefaultPath())
	exec := cfg.ExecutionConfig()

	usageStore, err := usage.NewStore(pathOr(exec.UsageDBPath, filepath.Join(dataDir, "usage.db")))
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	defer usageStore.Close()

	privacyStore, err := privacy.NewStore(pathOr(exec.PrivacyDBPath, filepath.Join(dataDir, "privacy.db")))
	if err != nil {
		return fmt.Errorf("open privacy store: %w", err)
	}
	defer privacyStore.Close()

	var sessionMgr *session.Manager
	var sessionStore *session.Store
	sessCfg := cfg.SessionConfig()
	if sessCfg.Enabled {
		sessionStore, err = session.NewStore(pathOr(sessCfg.DBPath, filepath.Join(dataDir, "sessions.db")))
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer sessionStore.Close()

		threshold := session.DefaultCondensationThreshold
		if sessCfg.CondensationThreshold != nil {
			threshold = *sessCfg.CondensationThreshold
		}
		autoGist := true
		if sessCfg.AutoGist != nil {
			autoGist = *sessCfg.AutoGist
		}
		sessionMgr = session.NewManager(sessionStore, threshold, autoGist)
	}

	engine := pricing.NewCostEngine(pricing.NewCatalog(nil, nil), usageStore)
	budgetMgr := budget.NewManager(engine, cfg.BudgetConfig())
	advisors := advisor.NewRegistry()

	fab := fabric.New(fabric.Deps{
		Config:       cfg,
		Advisors:     advisors,
		UsageStore:   usageStore,
		PrivacyStore: privacyStore,
		CostEngine:   engine,
		Budget:       budgetMgr,
		Sessions:     sessionMgr,
	})

	// The catalog's config resolver must see the live config, so it is
	// installed after the fabric exists.
	overrides := map[string]pricing.ModelPrice{}
	for name, o := range cfg.PricingOverrides() {
		overrides[name] = pricing.ModelPrice{
			InputPerMillion:  o.InputPerMillion,
			OutputPerMillion: o.OutputPerMillion,
		}
	}
	engine.SetCatalog(pricing.NewCatalog(overrides, fab.ConfigPriceResolver()))

	if sessionMgr != nil {
		sessionMgr.SetGenerateFn(func(ctx context.Context, role, prompt string) (string, error) {
			return fab.Execute(ctx, role, prompt, &fabric.ExecuteOpts{Intent: "condense"})
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(cfg.Path(), fab.UpdateConfig)
	if err != nil {
		L_warn("config watcher unavailable", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			L_warn("config watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	purgers := map[string]retention.Purger{
		"usage":   usageStore,
		"privacy": privacyStore,
	}
	if sessionStore != nil {
		purgers["sessions"] = sessionStore
	}
	janitor := retention.New(exec.RetentionDays, purgers)
	if err := janitor.Start(); err != nil {
		L_warn("retention scheduler failed to start", "error", err)
	} else {
		defer janitor.Stop()
	}

	registry := tools.NewRegistry()
	tools.RegisterDefaults(registry, fab, triage.NewRouter(cfg.TriageConfig()))

	gw := gateway.New(registry, "aurarouter", version, os.Stdin, os.Stdout)
	return gw.Serve(ctx)
}

func pathOr(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func parseLevel(s string) int {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func main() {
	Init(&Config{Level: LevelInfo, ShowCaller: true})

	var root cli
	k := kong.Parse(&root,
		kong.Name("aurarouter"),
		kong.Description("Privacy-first AI compute router."),
		kong.UsageOnError(),
	)

	if err := k.Run(&root); err != nil {
		L_error("fatal: %v", err)
		os.Exit(1)
	}
}
