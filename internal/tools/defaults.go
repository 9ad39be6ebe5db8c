package tools

import (
	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/triage"
)

// RegisterDefaults populates a registry with the standard toolbox.
// Tool availability follows the mcp.tools config section:
// compare_models is off unless enabled, session tools appear only when
// sessions are enabled.
func RegisterDefaults(reg *Registry, f *fabric.Fabric, tr *triage.Router) {
	cfg := f.Config()

	reg.Register(&RouteTaskTool{Fabric: f, Triage: tr})
	reg.Register(&GenerateCodeTool{Fabric: f, Triage: tr})
	reg.Register(&LocalInferenceTool{Fabric: f})
	reg.Register(&ListModelsTool{Fabric: f})

	if cfg.ToolEnabled("compare_models", true) {
		reg.Register(&CompareModelsTool{Fabric: f})
	}

	if f.Sessions() != nil {
		reg.Register(&CreateSessionTool{Fabric: f})
		reg.Register(&SessionMessageTool{Fabric: f})
		reg.Register(&SessionStatusTool{Fabric: f})
		reg.Register(&ListSessionsTool{Fabric: f})
		reg.Register(&DeleteSessionTool{Fabric: f})
	}

	reg.Register(&AssetsListTool{Fabric: f})
	reg.Register(&AssetsRegisterTool{Fabric: f})
	reg.Register(&AssetsUnregisterTool{Fabric: f})

	L_debug("toolbox registered", "tools", reg.Len())
}
