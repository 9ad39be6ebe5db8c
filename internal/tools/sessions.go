package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AuraCoreDynamics/aurarouter/internal/fabric"
	"github.com/AuraCoreDynamics/aurarouter/internal/session"
)

// CreateSessionTool starts a new stateful session bound to a role.
type CreateSessionTool struct {
	Fabric *fabric.Fabric
}

func (t *CreateSessionTool) Name() string { return "create_session" }

func (t *CreateSessionTool) Description() string {
	return "Create a stateful session with conversation history and automatic context management."
}

func (t *CreateSessionTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"role":           stringProp("Role whose chain serves this session, default 'coding'"),
		"shared_context": stringProp("Optional context prepended to every turn"),
	})
}

func (t *CreateSessionTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Role          string `json:"role"`
		SharedContext string `json:"shared_context"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Role == "" {
		args.Role = "coding"
	}

	mgr := t.Fabric.Sessions()
	if mgr == nil {
		return "Error: Sessions are disabled.", nil
	}

	contextLimit := 0
	if chain := t.Fabric.Config().RoleChain(args.Role); len(chain) > 0 {
		if mc := t.Fabric.Config().ModelConfig(chain[0]); mc != nil {
			contextLimit = mc.ContextLimit
		}
	}

	sess, err := mgr.Create(args.Role, contextLimit)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if args.SharedContext != "" {
		sess.AddGist(session.Gist{SourceRole: "user", Summary: args.SharedContext})
		mgr.Save(sess)
	}

	return fmt.Sprintf("Session created: %s (role: %s)", sess.SessionID, args.Role), nil
}

// SessionMessageTool routes one conversational turn through a session.
type SessionMessageTool struct {
	Fabric *fabric.Fabric
}

func (t *SessionMessageTool) Name() string { return "session_message" }

func (t *SessionMessageTool) Description() string {
	return "Send a message within an existing session; history and gists carry across turns."
}

func (t *SessionMessageTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"session_id": stringProp("Session to continue"),
		"message":    stringProp("The user message"),
	}, "session_id", "message")
}

func (t *SessionMessageTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.SessionID == "" || args.Message == "" {
		return "", fmt.Errorf("session_id and message are required")
	}

	mgr := t.Fabric.Sessions()
	if mgr == nil {
		return "Error: Sessions are disabled.", nil
	}

	sess, err := mgr.Get(args.SessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return fmt.Sprintf("Error: Session %s not found.", args.SessionID), nil
	}

	result, err := t.Fabric.ExecuteSession(ctx, sess.ActiveRole(), sess, args.Message, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return result.Text, nil
}

// SessionStatusTool reports a session's token pressure and history size.
type SessionStatusTool struct {
	Fabric *fabric.Fabric
}

func (t *SessionStatusTool) Name() string { return "session_status" }

func (t *SessionStatusTool) Description() string {
	return "Show a session's history size, token usage and context pressure."
}

func (t *SessionStatusTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"session_id": stringProp("Session to inspect"),
	}, "session_id")
}

func (t *SessionStatusTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	mgr := t.Fabric.Sessions()
	if mgr == nil {
		return "Error: Sessions are disabled.", nil
	}

	sess, err := mgr.Get(args.SessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return fmt.Sprintf("Error: Session %s not found.", args.SessionID), nil
	}

	stats := sess.TokenStats
	return fmt.Sprintf(
		"Session %s\nRole: %s\nMessages: %d\nGists: %d\nTokens: %d in / %d out (limit %d)\nPressure: %.0f%%",
		sess.SessionID, sess.ActiveRole(), len(sess.History), len(sess.SharedContext),
		stats.InputTokens, stats.OutputTokens, stats.ContextLimit, stats.Pressure()*100), nil
}

// ListSessionsTool enumerates stored sessions, newest first.
type ListSessionsTool struct {
	Fabric *fabric.Fabric
}

func (t *ListSessionsTool) Name() string { return "list_sessions" }

func (t *ListSessionsTool) Description() string {
	return "List stored sessions, most recently updated first."
}

func (t *ListSessionsTool) Schema() map[string]any {
	return objectSchema(map[string]any{})
}

func (t *ListSessionsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	mgr := t.Fabric.Sessions()
	if mgr == nil {
		return "Error: Sessions are disabled.", nil
	}

	entries, err := mgr.List(0, 0)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(entries) == 0 {
		return "No sessions.", nil
	}

	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- %s (updated %s)", e.SessionID, e.UpdatedAt.Format("2006-01-02 15:04:05")))
	}
	return strings.Join(lines, "\n"), nil
}

// DeleteSessionTool removes a stored session.
type DeleteSessionTool struct {
	Fabric *fabric.Fabric
}

func (t *DeleteSessionTool) Name() string { return "delete_session" }

func (t *DeleteSessionTool) Description() string {
	return "Delete a stored session and its history."
}

func (t *DeleteSessionTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"session_id": stringProp("Session to delete"),
	}, "session_id")
}

func (t *DeleteSessionTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	mgr := t.Fabric.Sessions()
	if mgr == nil {
		return "Error: Sessions are disabled.", nil
	}

	deleted, err := mgr.Delete(args.SessionID)
	if err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return fmt.Sprintf("Session %s not found.", args.SessionID), nil
	}
	return fmt.Sprintf("Session %s deleted.", args.SessionID), nil
}
