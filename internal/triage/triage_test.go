package triage

import (
	"testing"

	"github.com/AuraCoreDynamics/aurarouter/internal/config"
)

func TestSelectRoleFirstMatchWins(t *testing.T) {
	r := NewRouter(config.TriageConfig{
		Rules: []config.TriageRule{
			{MaxComplexity: 3, PreferredRole: "coding_lite"},
			{MaxComplexity: 6, PreferredRole: "coding"},
			{MaxComplexity: 10, PreferredRole: "reasoning"},
		},
		DefaultRole: "reasoning",
	})

	tests := []struct {
		score int
		want  string
	}{
		{1, "coding_lite"},
		{3, "coding_lite"},
		{4, "coding"},
		{6, "coding"},
		{7, "reasoning"},
		{10, "reasoning"},
		{11, "reasoning"}, // falls through to default
	}
	for _, tt := range tests {
		if got := r.SelectRole(tt.score); got != tt.want {
			t.Errorf("SelectRole(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestSelectRoleNoRules(t *testing.T) {
	r := NewRouter(config.TriageConfig{DefaultRole: "cheap"})
	if got := r.SelectRole(5); got != "cheap" {
		t.Errorf("got %q", got)
	}
}

func TestSelectRoleDefaultFallback(t *testing.T) {
	r := NewRouter(config.TriageConfig{})
	if got := r.SelectRole(5); got != DefaultRole {
		t.Errorf("got %q, want %q", got, DefaultRole)
	}
}
