package routing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	"github.com/AuraCoreDynamics/aurarouter/internal/llm"
	"github.com/AuraCoreDynamics/aurarouter/internal/usage"
)

type scriptedProvider struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "ollama" }

func (p *scriptedProvider) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (*llm.GenerateResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.GenerateResult{Text: p.text}, nil
}

func (p *scriptedProvider) GenerateWithHistory(ctx context.Context, messages []llm.ChatMessage, systemPrompt string, jsonMode bool) (*llm.GenerateResult, error) {
	return p.GenerateWithUsage(ctx, "", jsonMode)
}

func (p *scriptedProvider) GetContextLimit() int { return 8192 }

// fabricWith returns a fabric whose router and reasoning roles both
// resolve to the scripted provider.
func fabricWith(t *testing.T, p *scriptedProvider) *fabric.Fabric {
	t.Helper()

	cfg := config.FromDocument(filepath.Join(t.TempDir(), "auraconfig.yaml"), map[string]any{
		"models": map[string]any{"m1": map[string]any{"provider": "ollama"}},
		"roles": map[string]any{
			"router":    []any{"m1"},
			"reasoning": []any{"m1"},
		},
	})
	store, err := usage.NewStore(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("open usage store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return fabric.New(fabric.Deps{
		Config:     cfg,
		UsageStore: store,
		ProviderFactory: func(modelID string, mc *config.ModelConfig) (llm.Provider, error) {
			if modelID != "m1" {
				return nil, fmt.Errorf("no provider scripted for %s", modelID)
			}
			return p, nil
		},
	})
}

func TestAnalyzeIntent(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want TriageResult
	}{
		{
			name: "simple",
			text: `{"intent": "SIMPLE_CODE", "complexity": 2}`,
			want: TriageResult{Intent: IntentSimpleCode, Complexity: 2},
		},
		{
			name: "complex",
			text: `{"intent": "COMPLEX_REASONING", "complexity": 9}`,
			want: TriageResult{Intent: IntentComplexReasoning, Complexity: 9},
		},
		{
			name: "complexity out of range",
			text: `{"intent": "SIMPLE_CODE", "complexity": 42}`,
			want: TriageResult{Intent: IntentSimpleCode, Complexity: DefaultComplexity},
		},
		{
			name: "missing complexity",
			text: `{"intent": "COMPLEX_REASONING"}`,
			want: TriageResult{Intent: IntentComplexReasoning, Complexity: DefaultComplexity},
		},
		{
			name: "garbage output",
			text: "I think this is simple code",
			want: TriageResult{Intent: IntentSimpleCode, Complexity: DefaultComplexity},
		},
		{
			name: "empty intent field",
			text: `{"complexity": 3}`,
			want: TriageResult{Intent: IntentSimpleCode, Complexity: DefaultComplexity},
		},
		{
			name: "generation failure",
			err:  errors.New("connection refused"),
			want: TriageResult{Intent: IntentSimpleCode, Complexity: DefaultComplexity},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fabricWith(t, &scriptedProvider{text: tt.text, err: tt.err})
			got := AnalyzeIntent(context.Background(), f, "write a function")
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGeneratePlan(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want []string
	}{
		{
			name: "plain list",
			text: `["Create utils.go", "Wire into main.go"]`,
			want: []string{"Create utils.go", "Wire into main.go"},
		},
		{
			name: "fenced list",
			text: "```json\n[\"step one\", \"step two\"]\n```",
			want: []string{"step one", "step two"},
		},
		{
			name: "not json",
			text: "First do this, then that.",
			want: []string{"build the thing"},
		},
		{
			name: "empty list",
			text: `[]`,
			want: []string{"build the thing"},
		},
		{
			name: "generation failure",
			err:  errors.New("timeout"),
			want: []string{"build the thing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fabricWith(t, &scriptedProvider{text: tt.text, err: tt.err})
			got := GeneratePlan(context.Background(), f, "build the thing", "no prior context")
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("step %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
