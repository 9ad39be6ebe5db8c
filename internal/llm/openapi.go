package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

const (
	defaultOpenAPIEndpoint  = "http://localhost:8000/v1"
	defaultLlamaCppEndpoint = "http://localhost:8080/v1"
)

// OpenAPIProvider drives any /v1/chat/completions server: vLLM,
// text-generation-inference, LocalAI, LM Studio, llama-server, or
// Ollama's OpenAI-compatible endpoint. The llamacpp and llamacpp-server
// provider names share this adapter, pointed at llama-server's
// OpenAI-compatible surface.
type OpenAPIProvider struct {
	providerName string
	modelID      string
	modelName    string
	client       *openai.Client
	temperature  float32
	maxTokens    int
	ctxLimit     int
}

// NewOpenAPIProvider creates an adapter for a chat-completions endpoint.
// providerName is kept as given so usage rows reflect the configured
// provider, not the wire protocol.
func NewOpenAPIProvider(providerName, modelID string, cfg *config.ModelConfig) *OpenAPIProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if providerName == "openapi" {
			endpoint = defaultOpenAPIEndpoint
		} else {
			endpoint = defaultLlamaCppEndpoint
		}
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}

	clientCfg := openai.DefaultConfig(ResolveAPIKey(cfg))
	clientCfg.BaseURL = endpoint
	clientCfg.HTTPClient = &http.Client{Timeout: time.Duration(timeout) * time.Second}

	temperature := float32(0.7)
	if v, ok := numParam(cfg.Parameters, "temperature"); ok {
		temperature = float32(v)
	}
	maxTokens := 2048
	if v, ok := numParam(cfg.Parameters, "max_tokens"); ok {
		maxTokens = int(v)
	}

	p := &OpenAPIProvider{
		providerName: providerName,
		modelID:      modelID,
		modelName:    cfg.EffectiveModelName(modelID),
		client:       openai.NewClientWithConfig(clientCfg),
		temperature:  temperature,
		maxTokens:    maxTokens,
		ctxLimit:     cfg.ContextLimit,
	}

	L_debug("openapi provider created", "provider", providerName, "model", modelID, "url", endpoint, "timeout", timeout)
	return p
}

func (p *OpenAPIProvider) Name() string { return p.providerName }

func (p *OpenAPIProvider) GetContextLimit() int { return p.ctxLimit }

func (p *OpenAPIProvider) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (*GenerateResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	return p.send(ctx, messages, jsonMode)
}

func (p *OpenAPIProvider) GenerateWithHistory(ctx context.Context, history []ChatMessage, systemPrompt string, jsonMode bool) (*GenerateResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return p.send(ctx, messages, jsonMode)
}

func (p *OpenAPIProvider) send(ctx context.Context, messages []openai.ChatCompletionMessage, jsonMode bool) (*GenerateResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.modelName,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.providerName, err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &GenerateResult{
		Text:         text,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		ModelID:      p.modelID,
		Provider:     p.providerName,
		ContextLimit: p.ctxLimit,
	}, nil
}
