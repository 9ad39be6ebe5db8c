// Package session holds conversational state: message history, shared
// gist context, token pressure tracking, and condensation.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single turn in a session's history.
type Message struct {
	Role      string    `json:"role"` // user, assistant, system
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ModelID   string    `json:"model_id,omitempty"` // empty for user/system
	Tokens    int       `json:"tokens"`
}

// Gist is a condensed summary carried in a session's shared context.
// ReplacesCount > 0 means it was produced by condensation; 0 means it
// was extracted from a single assistant turn.
type Gist struct {
	SourceRole    string    `json:"source_role"`
	SourceModelID string    `json:"source_model_id,omitempty"`
	Summary       string    `json:"summary"`
	Timestamp     time.Time `json:"timestamp"`
	ReplacesCount int       `json:"replaces_count"`
}

// TokenStats tracks a session's context-window consumption.
type TokenStats struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	ContextLimit int `json:"context_limit"` // 0 = unknown
}

// TotalUsed returns input plus output tokens.
func (t TokenStats) TotalUsed() int {
	return t.InputTokens + t.OutputTokens
}

// Remaining returns the unused context budget, 0 when the limit is unknown.
func (t TokenStats) Remaining() int {
	if t.ContextLimit == 0 {
		return 0
	}
	return max(0, t.ContextLimit-t.TotalUsed())
}

// Pressure returns used/limit clamped to 1.0, or 0 when the limit is unknown.
func (t TokenStats) Pressure() float64 {
	if t.ContextLimit == 0 {
		return 0
	}
	return min(1.0, float64(t.TotalUsed())/float64(t.ContextLimit))
}

// Session is a stateful conversation with history and shared context.
type Session struct {
	SessionID     string         `json:"session_id"`
	History       []Message      `json:"history"`
	SharedContext []Gist         `json:"shared_context"`
	TokenStats    TokenStats     `json:"token_stats"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewSession creates a session with a fresh UUID.
func NewSession(role string, contextLimit int) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:  uuid.NewString(),
		TokenStats: TokenStats{ContextLimit: contextLimit},
		Metadata:   map[string]any{"active_role": role},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ActiveRole returns the role the session was created for.
func (s *Session) ActiveRole() string {
	if role, ok := s.Metadata["active_role"].(string); ok {
		return role
	}
	return ""
}

// AddMessage appends a message, updating token stats and the timestamp.
func (s *Session) AddMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.History = append(s.History, msg)
	s.TokenStats.InputTokens += msg.Tokens
	s.UpdatedAt = time.Now().UTC()

	count, _ := s.Metadata["iteration_count"].(int)
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	s.Metadata["iteration_count"] = count + 1
}

// AddGist appends a gist to the shared context.
func (s *Session) AddGist(gist Gist) {
	if gist.Timestamp.IsZero() {
		gist.Timestamp = time.Now().UTC()
	}
	s.SharedContext = append(s.SharedContext, gist)
	s.UpdatedAt = time.Now().UTC()
}

// ContextPrefix renders the shared gists as a prior-context block for
// injection ahead of the history. Empty when there are no gists.
func (s *Session) ContextPrefix() string {
	if len(s.SharedContext) == 0 {
		return ""
	}
	out := "[Prior Context]"
	for _, gist := range s.SharedContext {
		out += "\n- " + gist.Summary
	}
	out += "\n[End Prior Context]\n"
	return out
}
