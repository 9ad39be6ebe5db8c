package llm

import (
	"fmt"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
)

// NewProvider constructs the adapter for a model's configured provider.
// The provider union is closed; unknown names are an error.
func NewProvider(modelID string, cfg *config.ModelConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(modelID, cfg), nil
	case "claude":
		return NewClaudeProvider(modelID, cfg)
	case "google":
		return NewGoogleProvider(modelID, cfg)
	case "openapi", "llamacpp", "llamacpp-server":
		return NewOpenAPIProvider(cfg.Provider, modelID, cfg), nil
	case "":
		return nil, fmt.Errorf("model '%s' has no provider set", modelID)
	default:
		return nil, fmt.Errorf("unknown provider '%s' for model '%s'", cfg.Provider, modelID)
	}
}
