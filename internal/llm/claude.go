package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// ClaudeProvider drives the Anthropic Messages API.
type ClaudeProvider struct {
	modelID   string
	modelName string
	client    anthropic.Client
	maxTokens int64
	temp      *float64
	ctxLimit  int
}

// NewClaudeProvider creates an adapter for one configured Claude model.
// Fails when no API key can be resolved.
func NewClaudeProvider(modelID string, cfg *config.ModelConfig) (*ClaudeProvider, error) {
	apiKey := ResolveAPIKey(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for claude model '%s': set 'api_key' or 'env_key: ANTHROPIC_API_KEY'", modelID)
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: time.Duration(timeout) * time.Second}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	maxTokens := int64(4096)
	if v, ok := numParam(cfg.Parameters, "max_tokens"); ok {
		maxTokens = int64(v)
	}
	var temp *float64
	if v, ok := numParam(cfg.Parameters, "temperature"); ok {
		temp = &v
	}

	p := &ClaudeProvider{
		modelID:   modelID,
		modelName: cfg.EffectiveModelName(modelID),
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
		temp:      temp,
		ctxLimit:  cfg.ContextLimit,
	}

	L_debug("claude provider created", "model", modelID, "name", p.modelName, "timeout", timeout)
	return p, nil
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) GetContextLimit() int { return p.ctxLimit }

func (p *ClaudeProvider) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (*GenerateResult, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	return p.send(ctx, messages, "", jsonMode)
}

func (p *ClaudeProvider) GenerateWithHistory(ctx context.Context, history []ChatMessage, systemPrompt string, jsonMode bool) (*GenerateResult, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "system":
			if systemPrompt == "" {
				systemPrompt = m.Content
			} else {
				systemPrompt += "\n" + m.Content
			}
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return p.send(ctx, messages, systemPrompt, jsonMode)
}

func (p *ClaudeProvider) send(ctx context.Context, messages []anthropic.MessageParam, systemPrompt string, jsonMode bool) (*GenerateResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelName),
		MaxTokens: p.maxTokens,
		Messages:  messages,
	}

	// JSON mode has no native flag on the Messages API; instruct instead
	if jsonMode {
		if systemPrompt != "" {
			systemPrompt += "\n"
		}
		systemPrompt += jsonInstruction
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if p.temp != nil {
		params.Temperature = anthropic.Float(*p.temp)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	return &GenerateResult{
		Text:         text,
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		ModelID:      p.modelID,
		Provider:     p.Name(),
		ContextLimit: p.ctxLimit,
	}, nil
}

// numParam pulls a numeric value out of the free-form parameters map.
// YAML decodes numbers as int or float64 depending on their spelling.
func numParam(params map[string]any, key string) (float64, bool) {
	if params == nil {
		return 0, false
	}
	switch v := params[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
