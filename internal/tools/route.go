package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/pricing"
	"github.com/AuraCoreDynamics/aurarouter/internal/routing"
	"github.com/AuraCoreDynamics/aurarouter/internal/triage"
)

// RouteTaskTool routes a task to local or specialized models with
// automatic fallback, planning complex tasks step by step.
type RouteTaskTool struct {
	Fabric *fabric.Fabric
	Triage *triage.Router
}

func (t *RouteTaskTool) Name() string { return "route_task" }

func (t *RouteTaskTool) Description() string {
	return "Route a task to local or specialized AI models with automatic fallback. " +
		"Complex tasks are planned into sequential steps before execution."
}

func (t *RouteTaskTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"task":    stringProp("The task to perform"),
		"context": stringProp("Optional supporting context"),
		"format":  stringProp("Desired output format, default 'text'"),
	}, "task")
}

func (t *RouteTaskTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Task    string `json:"task"`
		Context string `json:"context"`
		Format  string `json:"format"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Task == "" {
		return "", fmt.Errorf("task is required")
	}
	if args.Format == "" {
		args.Format = "text"
	}

	verdict := routing.AnalyzeIntent(ctx, t.Fabric, args.Task)
	L_info("route_task classified", "intent", verdict.Intent, "complexity", verdict.Complexity)

	role := triage.DefaultRole
	if t.Triage != nil {
		role = t.Triage.SelectRole(verdict.Complexity)
	}

	fullPrompt := "TASK: " + args.Task
	if args.Context != "" {
		fullPrompt += "\nCONTEXT: " + args.Context
	}
	if args.Format != "text" {
		fullPrompt += "\nFORMAT: " + args.Format
	}

	if verdict.Intent == routing.IntentSimpleCode {
		fullPrompt += "\nRESPOND WITH OUTPUT ONLY."
		result, err := t.Fabric.Execute(ctx, role, fullPrompt, &fabric.ExecuteOpts{Intent: "route"})
		if err != nil {
			return "Error: All models failed.", nil
		}
		return result, nil
	}

	L_info("route_task complex path, generating plan")
	plan := routing.GeneratePlan(ctx, t.Fabric, args.Task, args.Context)
	L_info("route_task plan ready", "steps", len(plan))

	var output []string
	for i, step := range plan {
		L_info("route_task step", "n", i+1, "step", step)
		stepPrompt := fmt.Sprintf(
			"GOAL: %s\nCONTEXT: %s\nPREVIOUS_OUTPUT: %s\nReturn ONLY the requested output.",
			step, args.Context, strings.Join(output, "\n"))
		if args.Format != "text" {
			stepPrompt += "\nFORMAT: " + args.Format
		}
		result, err := t.Fabric.Execute(ctx, role, stepPrompt, &fabric.ExecuteOpts{Intent: "route"})
		if err != nil || strings.TrimSpace(result) == "" {
			output = append(output, fmt.Sprintf("\n# Step %d Failed.", i+1))
			continue
		}
		output = append(output, fmt.Sprintf("\n# --- Step %d: %s ---\n%s", i+1, step, result))
	}

	return strings.Join(output, "\n"), nil
}

// GenerateCodeTool is multi-step code generation with automatic
// planning for complex task descriptions.
type GenerateCodeTool struct {
	Fabric *fabric.Fabric
	Triage *triage.Router
}

func (t *GenerateCodeTool) Name() string { return "generate_code" }

func (t *GenerateCodeTool) Description() string {
	return "Multi-step code generation with automatic planning."
}

func (t *GenerateCodeTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"task_description": stringProp("What the code should do"),
		"file_context":     stringProp("Existing code or file context"),
		"language":         stringProp("Target language, default 'python'"),
	}, "task_description")
}

func (t *GenerateCodeTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		TaskDescription string `json:"task_description"`
		FileContext     string `json:"file_context"`
		Language        string `json:"language"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.TaskDescription == "" {
		return "", fmt.Errorf("task_description is required")
	}
	if args.Language == "" {
		args.Language = "python"
	}

	verdict := routing.AnalyzeIntent(ctx, t.Fabric, args.TaskDescription)
	L_info("generate_code classified", "intent", verdict.Intent, "complexity", verdict.Complexity)

	codingRole := triage.DefaultRole
	if t.Triage != nil {
		codingRole = t.Triage.SelectRole(verdict.Complexity)
	}

	if verdict.Intent == routing.IntentSimpleCode {
		prompt := fmt.Sprintf("TASK: %s\nLANG: %s\nCONTEXT: %s\nCODE ONLY.",
			args.TaskDescription, args.Language, args.FileContext)
		result, err := t.Fabric.Execute(ctx, codingRole, prompt, &fabric.ExecuteOpts{Intent: "generate"})
		if err != nil {
			return "Error: Generation failed.", nil
		}
		return result, nil
	}

	L_info("generate_code complex path, generating plan")
	plan := routing.GeneratePlan(ctx, t.Fabric, args.TaskDescription, args.FileContext)
	L_info("generate_code plan ready", "steps", len(plan))

	var output []string
	for i, step := range plan {
		L_info("generate_code step", "n", i+1, "step", step)
		prompt := fmt.Sprintf(
			"GOAL: %s\nLANG: %s\nCONTEXT: %s\nPREVIOUS_CODE: %s\nReturn ONLY valid code.",
			step, args.Language, args.FileContext, strings.Join(output, "\n"))
		code, err := t.Fabric.Execute(ctx, codingRole, prompt, &fabric.ExecuteOpts{Intent: "generate"})
		if err != nil || strings.TrimSpace(code) == "" {
			output = append(output, fmt.Sprintf("\n# Step %d Failed.", i+1))
			continue
		}
		output = append(output, fmt.Sprintf("\n# --- Step %d: %s ---\n%s", i+1, step, code))
	}

	return strings.Join(output, "\n"), nil
}

// LocalInferenceTool executes a prompt on on-prem models only, with no
// cloud API calls possible.
type LocalInferenceTool struct {
	Fabric *fabric.Fabric
}

func (t *LocalInferenceTool) Name() string { return "local_inference" }

func (t *LocalInferenceTool) Description() string {
	return "Execute a prompt on local/private AI models without cloud API calls."
}

func (t *LocalInferenceTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"prompt":  stringProp("The prompt to execute"),
		"context": stringProp("Optional supporting context"),
	}, "prompt")
}

func (t *LocalInferenceTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Prompt  string `json:"prompt"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	fullPrompt := args.Prompt
	if args.Context != "" {
		fullPrompt = args.Prompt + "\n\nCONTEXT:\n" + args.Context
	}

	cfg := t.Fabric.Config()
	var localChain []string
	for _, modelID := range cfg.RoleChain("coding") {
		mc := cfg.ModelConfig(modelID)
		if mc == nil {
			continue
		}
		if !pricing.IsCloudTier(mc.HostingTier, mc.Provider) {
			localChain = append(localChain, modelID)
		}
	}

	if len(localChain) == 0 {
		return "Error: No local models configured. Add Ollama or llama.cpp models to the 'coding' role.", nil
	}

	result, err := t.Fabric.Execute(ctx, "coding", fullPrompt, &fabric.ExecuteOpts{
		Intent:        "local",
		ChainOverride: localChain,
	})
	if err != nil || strings.TrimSpace(result) == "" {
		return "Error: All local models failed to generate a response.", nil
	}
	return result, nil
}
