// Package llm provides the provider adapters the fabric drives.
package llm

import (
	"context"
	"os"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
)

// ChatMessage is one turn of a multi-turn conversation.
type ChatMessage struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// GenerateResult carries the provider response plus token accounting.
// Token counts of zero mean the provider did not report usage.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	ModelID      string
	Provider     string
	ContextLimit int
	Gist         string
}

// Provider is the uniform adapter contract. Adapters must return an
// error on transport failure; empty text is a valid return and is
// treated by the caller as a failed attempt.
type Provider interface {
	Name() string
	GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (*GenerateResult, error)
	GenerateWithHistory(ctx context.Context, messages []ChatMessage, systemPrompt string, jsonMode bool) (*GenerateResult, error)
	GetContextLimit() int
}

// jsonInstruction is prepended as a system hint for providers without a
// native JSON response mode.
const jsonInstruction = "Respond ONLY with valid JSON. No prose, no markdown fences."

// ResolveAPIKey returns the key for a model: explicit config value first
// (unless it is a placeholder), then the named environment variable.
func ResolveAPIKey(cfg *config.ModelConfig) string {
	key := strings.TrimSpace(cfg.APIKey)
	if key != "" && !isPlaceholder(key) {
		return key
	}
	if cfg.EnvKey != "" {
		return os.Getenv(cfg.EnvKey)
	}
	return ""
}

func isPlaceholder(key string) bool {
	upper := strings.ToUpper(key)
	return strings.HasPrefix(upper, "YOUR_") ||
		strings.HasPrefix(key, "<") ||
		strings.Contains(upper, "CHANGEME")
}
