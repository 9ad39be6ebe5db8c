package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

const defaultOllamaEndpoint = "http://localhost:11434/api/generate"

// OllamaProvider drives a local Ollama server over its native HTTP API.
type OllamaProvider struct {
	modelID   string
	modelName string
	generate  string // /api/generate URL
	chat      string // /api/chat URL
	params    map[string]any
	ctxLimit  int
	client    *http.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []ollamaWireMember `json:"messages"`
	Stream   bool               `json:"stream"`
	Format   string             `json:"format,omitempty"`
	Options  map[string]any     `json:"options,omitempty"`
}

type ollamaWireMember struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaWireMember `json:"message"`
	PromptEvalCount int              `json:"prompt_eval_count"`
	EvalCount       int              `json:"eval_count"`
}

// NewOllamaProvider creates an adapter for one configured Ollama model.
func NewOllamaProvider(modelID string, cfg *config.ModelConfig) *OllamaProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	// The config may carry either the full generate URL or the server base
	base := strings.TrimSuffix(endpoint, "/api/generate")
	generate := base + "/api/generate"
	chat := base + "/api/chat"

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}

	p := &OllamaProvider{
		modelID:   modelID,
		modelName: cfg.EffectiveModelName(modelID),
		generate:  generate,
		chat:      chat,
		params:    cfg.Parameters,
		ctxLimit:  cfg.ContextLimit,
		client:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}

	L_debug("ollama provider created", "model", modelID, "url", generate, "timeout", timeout)
	return p
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) GetContextLimit() int { return p.ctxLimit }

func (p *OllamaProvider) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (*GenerateResult, error) {
	req := ollamaGenerateRequest{
		Model:   p.modelName,
		Prompt:  prompt,
		Stream:  false,
		Options: p.params,
	}
	if jsonMode {
		req.Format = "json"
	}

	var resp ollamaGenerateResponse
	if err := p.post(ctx, p.generate, req, &resp); err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:         resp.Response,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		ModelID:      p.modelID,
		Provider:     p.Name(),
		ContextLimit: p.ctxLimit,
	}, nil
}

func (p *OllamaProvider) GenerateWithHistory(ctx context.Context, messages []ChatMessage, systemPrompt string, jsonMode bool) (*GenerateResult, error) {
	wire := make([]ollamaWireMember, 0, len(messages)+1)
	if systemPrompt != "" {
		wire = append(wire, ollamaWireMember{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		wire = append(wire, ollamaWireMember{Role: m.Role, Content: m.Content})
	}

	req := ollamaChatRequest{
		Model:    p.modelName,
		Messages: wire,
		Stream:   false,
		Options:  p.params,
	}
	if jsonMode {
		req.Format = "json"
	}

	var resp ollamaChatResponse
	if err := p.post(ctx, p.chat, req, &resp); err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:         resp.Message.Content,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		ModelID:      p.modelID,
		Provider:     p.Name(),
		ContextLimit: p.ctxLimit,
	}, nil
}

func (p *OllamaProvider) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("ollama returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return nil
}
