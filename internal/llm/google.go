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

const defaultGoogleEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider drives the Gemini generateContent REST API.
type GoogleProvider struct {
	modelID   string
	modelName string
	base      string
	apiKey    string
	params    map[string]any
	ctxLimit  int
	client    *http.Client
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenerateRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type googleGenerateResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGoogleProvider creates an adapter for one configured Gemini model.
// Fails when no API key can be resolved.
func NewGoogleProvider(modelID string, cfg *config.ModelConfig) (*GoogleProvider, error) {
	apiKey := ResolveAPIKey(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for google model '%s': set 'api_key' or 'env_key'", modelID)
	}

	base := cfg.Endpoint
	if base == "" {
		base = defaultGoogleEndpoint
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}

	p := &GoogleProvider{
		modelID:   modelID,
		modelName: cfg.EffectiveModelName(modelID),
		base:      strings.TrimSuffix(base, "/"),
		apiKey:    apiKey,
		params:    cfg.Parameters,
		ctxLimit:  cfg.ContextLimit,
		client:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}

	L_debug("google provider created", "model", modelID, "name", p.modelName, "timeout", timeout)
	return p, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) GetContextLimit() int { return p.ctxLimit }

func (p *GoogleProvider) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (*GenerateResult, error) {
	contents := []googleContent{
		{Role: "user", Parts: []googlePart{{Text: prompt}}},
	}
	return p.send(ctx, contents, "", jsonMode)
}

func (p *GoogleProvider) GenerateWithHistory(ctx context.Context, history []ChatMessage, systemPrompt string, jsonMode bool) (*GenerateResult, error) {
	contents := make([]googleContent, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			contents = append(contents, googleContent{Role: "model", Parts: []googlePart{{Text: m.Content}}})
		case "system":
			if systemPrompt == "" {
				systemPrompt = m.Content
			} else {
				systemPrompt += "\n" + m.Content
			}
		default:
			contents = append(contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		}
	}
	return p.send(ctx, contents, systemPrompt, jsonMode)
}

func (p *GoogleProvider) send(ctx context.Context, contents []googleContent, systemPrompt string, jsonMode bool) (*GenerateResult, error) {
	req := googleGenerateRequest{Contents: contents}

	if systemPrompt != "" {
		req.SystemInstruction = &googleContent{Parts: []googlePart{{Text: systemPrompt}}}
	}

	genCfg := map[string]any{}
	if v, ok := numParam(p.params, "temperature"); ok {
		genCfg["temperature"] = v
	}
	if v, ok := numParam(p.params, "max_tokens"); ok {
		genCfg["maxOutputTokens"] = int(v)
	}
	if jsonMode {
		genCfg["responseMimeType"] = "application/json"
	}
	if len(genCfg) > 0 {
		req.GenerationConfig = genCfg
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.base, p.modelName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("google returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var resp googleGenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode google response: %w", err)
	}

	var text string
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			text += part.Text
		}
	}

	return &GenerateResult{
		Text:         text,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		ModelID:      p.modelID,
		Provider:     p.Name(),
		ContextLimit: p.ctxLimit,
	}, nil
}
