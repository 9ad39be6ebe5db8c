package routing

import "testing"

func TestResolveSynonym(t *testing.T) {
	tests := []struct {
		verb string
		want string
	}{
		{"coding", "coding"},
		{"programming", "coding"},
		{"Developer", "coding"},
		{"  TLDR  ", "summarization"},
		{"planner", "reasoning"},
		{"intent", "router"},
		{"assess", "analysis"},
		{"chat", "chat"}, // unknown passes through
	}
	for _, tt := range tests {
		if got := ResolveSynonym(tt.verb, nil); got != tt.want {
			t.Errorf("ResolveSynonym(%q) = %q, want %q", tt.verb, got, tt.want)
		}
	}
}

func TestResolveSynonymCustomWins(t *testing.T) {
	custom := map[string]string{
		"hacking":     "coding",
		"programming": "reasoning", // shadow a builtin synonym
	}
	if got := ResolveSynonym("hacking", custom); got != "coding" {
		t.Errorf("custom verb = %q", got)
	}
	if got := ResolveSynonym("HACKING", custom); got != "coding" {
		t.Errorf("custom verb is case-sensitive: %q", got)
	}
	if got := ResolveSynonym("programming", custom); got != "reasoning" {
		t.Errorf("custom should shadow builtin: %q", got)
	}
	if got := ResolveSynonym("tldr", custom); got != "summarization" {
		t.Errorf("builtin still resolves: %q", got)
	}
}

func TestKnownRoles(t *testing.T) {
	roles := KnownRoles()
	if len(roles) != len(BuiltinVerbs) {
		t.Fatalf("got %d roles", len(roles))
	}
	if roles[0] != "router" || roles[2] != "coding" {
		t.Errorf("roles = %v", roles)
	}
}

func TestRequiredRoles(t *testing.T) {
	want := map[string]bool{"router": true, "reasoning": true, "coding": true}
	got := RequiredRoles()
	if len(got) != len(want) {
		t.Fatalf("required = %v", got)
	}
	for _, r := range got {
		if !want[r] {
			t.Errorf("unexpected required role %q", r)
		}
	}
}
