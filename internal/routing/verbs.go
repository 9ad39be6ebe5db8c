package routing

import "strings"

// SemanticVerb is a canonical role with its known synonyms. The intent
// classifier may emit any synonym; routing normalises it first.
type SemanticVerb struct {
	Role        string
	Description string
	Synonyms    []string
	Required    bool
}

// BuiltinVerbs is the default verb table. Custom verbs from config
// layer on top via ResolveSynonym.
var BuiltinVerbs = []SemanticVerb{
	{
		Role:        "router",
		Description: "Intent classification and task triage",
		Synonyms:    []string{"classifier", "triage", "intent"},
		Required:    true,
	},
	{
		Role:        "reasoning",
		Description: "Multi-step planning and architectural reasoning",
		Synonyms:    []string{"planner", "architect", "planning"},
		Required:    true,
	},
	{
		Role:        "coding",
		Description: "Code generation and implementation",
		Synonyms:    []string{"code generation", "programming", "developer"},
		Required:    true,
	},
	{
		Role:        "summarization",
		Description: "Text summarization and digest generation",
		Synonyms:    []string{"summarize", "tldr", "digest"},
	},
	{
		Role:        "analysis",
		Description: "Data analysis and evaluation",
		Synonyms:    []string{"analyze", "evaluate", "assess"},
	},
}

var builtinIndex = func() map[string]string {
	idx := map[string]string{}
	for _, v := range BuiltinVerbs {
		idx[strings.ToLower(v.Role)] = v.Role
		for _, s := range v.Synonyms {
			idx[strings.ToLower(s)] = v.Role
		}
	}
	return idx
}()

// ResolveSynonym maps a verb (possibly a synonym) to its canonical
// role name. customVerbs maps synonym to role as configured under
// semantic_verbs; it takes precedence over the builtin table. An
// unknown verb passes through unchanged.
func ResolveSynonym(verb string, customVerbs map[string]string) string {
	key := strings.ToLower(strings.TrimSpace(verb))

	for syn, role := range customVerbs {
		if key == strings.ToLower(syn) {
			return role
		}
	}

	if role, ok := builtinIndex[key]; ok {
		return role
	}
	return verb
}

// KnownRoles returns all builtin canonical role names.
func KnownRoles() []string {
	roles := make([]string, len(BuiltinVerbs))
	for i, v := range BuiltinVerbs {
		roles[i] = v.Role
	}
	return roles
}

// RequiredRoles returns the roles that must be configured for routing
// to work at all.
func RequiredRoles() []string {
	var roles []string
	for _, v := range BuiltinVerbs {
		if v.Required {
			roles = append(roles, v.Role)
		}
	}
	return roles
}
