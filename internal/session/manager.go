package session

import (
	"context"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/llm"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/tokens"
)

// DefaultCondensationThreshold is the context pressure that triggers
// automatic condensation.
const DefaultCondensationThreshold = 0.8

// GenerateFn produces text for a role. It is bound to the fabric's
// execute at wire-up time; the manager carries no fabric dependency.
type GenerateFn func(ctx context.Context, role, prompt string) (string, error)

// Manager owns session lifecycle, per-turn message preparation,
// pressure checks and condensation. Every boundary mutation persists
// the whole session through the store before returning.
type Manager struct {
	store      *Store
	threshold  float64
	autoGist   bool
	generateFn GenerateFn
}

// NewManager builds a session manager over a store.
func NewManager(store *Store, condensationThreshold float64, autoGist bool) *Manager {
	if condensationThreshold <= 0 {
		condensationThreshold = DefaultCondensationThreshold
	}
	return &Manager{
		store:     store,
		threshold: condensationThreshold,
		autoGist:  autoGist,
	}
}

// SetGenerateFn injects the summarizer call used by condensation and
// fallback gisting.
func (m *Manager) SetGenerateFn(fn GenerateFn) {
	m.generateFn = fn
}

// AutoGist reports whether gist instructions are injected into prompts.
func (m *Manager) AutoGist() bool { return m.autoGist }

// Create makes a new session for a role and persists it.
func (m *Manager) Create(role string, contextLimit int) (*Session, error) {
	sess := NewSession(role, contextLimit)
	if err := m.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID, nil when not found.
func (m *Manager) Get(sessionID string) (*Session, error) {
	return m.store.Load(sessionID)
}

// AddUserMessage appends a user message and persists the session.
func (m *Manager) AddUserMessage(sess *Session, content string, tokenCount int) {
	sess.AddMessage(Message{Role: "user", Content: content, Tokens: tokenCount})
	m.persist(sess)
}

// AddAssistantMessage appends an assistant response, extracting a gist
// if the response carries a marker. Returns whether a gist was found.
func (m *Manager) AddAssistantMessage(sess *Session, content, modelID string, tokenCount int) bool {
	cleanContent, gistText := ExtractGist(content)

	sess.AddMessage(Message{
		Role:    "assistant",
		Content: cleanContent,
		ModelID: modelID,
		Tokens:  tokenCount,
	})

	found := gistText != ""
	if found {
		sess.AddGist(Gist{
			SourceRole:    sess.ActiveRole(),
			SourceModelID: modelID,
			Summary:       gistText,
			ReplacesCount: 0,
		})
	}

	m.persist(sess)
	return found
}

// PrepareMessages builds the list sent to generate_with_history: the
// raw history plus the not-yet-committed user message, a system message
// carrying the shared context when gists exist, and the gist
// instruction on the last user message when injectGist is on. The
// session itself is not mutated; the pending message is only committed
// after a successful provider call.
func (m *Manager) PrepareMessages(sess *Session, pendingUserMessage string, injectGist bool) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(sess.History)+2)

	if prefix := sess.ContextPrefix(); prefix != "" {
		messages = append(messages, llm.ChatMessage{Role: "system", Content: prefix})
	}
	for _, msg := range sess.History {
		messages = append(messages, llm.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	if pendingUserMessage != "" {
		messages = append(messages, llm.ChatMessage{Role: "user", Content: pendingUserMessage})
	}

	if injectGist {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "user" {
				messages[i].Content = InjectGistInstruction(messages[i].Content)
				break
			}
		}
	}

	return messages
}

// CheckPressure reports whether condensation is due.
func (m *Manager) CheckPressure(sess *Session) bool {
	return sess.TokenStats.Pressure() >= m.threshold
}

// Condense summarizes everything but the last two messages into a gist
// and drops the originals. A failed or empty summarizer response leaves
// the session unchanged.
func (m *Manager) Condense(ctx context.Context, sess *Session) {
	if m.generateFn == nil || len(sess.History) <= 2 {
		return
	}

	old := sess.History[:len(sess.History)-2]
	kept := sess.History[len(sess.History)-2:]

	summary, err := m.generateFn(ctx, "summarizer", BuildCondensationPrompt(old))
	if err != nil || strings.TrimSpace(summary) == "" {
		L_warn("condensation failed, session unchanged",
			"session", sess.SessionID, "error", err)
		return
	}
	summary = strings.TrimSpace(summary)

	sess.AddGist(Gist{
		SourceRole:    "summarizer",
		Summary:       summary,
		ReplacesCount: len(old),
	})

	oldTokens := 0
	for _, msg := range old {
		oldTokens += msg.Tokens
	}
	sess.History = kept
	sess.TokenStats.InputTokens = max(0,
		sess.TokenStats.InputTokens-oldTokens+tokens.RoughEstimate(summary))

	m.persist(sess)
	L_info("session condensed",
		"session", sess.SessionID, "replaced", len(old), "gists", len(sess.SharedContext))
}

// GenerateFallbackGist asks the summarizer for a gist when the model
// did not emit one. Failure is silent.
func (m *Manager) GenerateFallbackGist(ctx context.Context, sess *Session, responseText, modelID string) {
	if m.generateFn == nil {
		return
	}

	summary, err := m.generateFn(ctx, "summarizer", BuildFallbackGistPrompt(responseText))
	if err != nil || strings.TrimSpace(summary) == "" {
		return
	}

	sess.AddGist(Gist{
		SourceRole:    sess.ActiveRole(),
		SourceModelID: modelID,
		Summary:       strings.TrimSpace(summary),
		ReplacesCount: 0,
	})
	m.persist(sess)
}

// Delete removes a session from the store.
func (m *Manager) Delete(sessionID string) (bool, error) {
	return m.store.Delete(sessionID)
}

// List returns session metadata, newest first.
func (m *Manager) List(limit, offset int) ([]ListEntry, error) {
	return m.store.List(limit, offset)
}

// Save writes a session through the store after external mutation.
func (m *Manager) Save(sess *Session) {
	m.persist(sess)
}

// persist writes through the store. A failed write is logged and the
// in-memory mutation stands; the caller should assume loss on restart.
func (m *Manager) persist(sess *Session) {
	if err := m.store.Save(sess); err != nil {
		L_error("failed to persist session", "session", sess.SessionID, "error", err)
	}
}
