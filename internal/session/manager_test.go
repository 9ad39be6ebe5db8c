package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(openStore(t), DefaultCondensationThreshold, true)
}

func TestCreateAndGetRoundtrip(t *testing.T) {
	m := newManager(t)

	sess, err := m.Create("coding", 8192)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := m.Get(sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatal("session not persisted")
	}
	if loaded.ActiveRole() != "coding" || loaded.TokenStats.ContextLimit != 8192 {
		t.Errorf("loaded session: %+v", loaded)
	}
}

func TestGetUnknownSessionReturnsNil(t *testing.T) {
	m := newManager(t)
	sess, err := m.Get("no-such-id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess != nil {
		t.Errorf("got %+v, want nil", sess)
	}
}

func TestMessagesPersistAcrossReload(t *testing.T) {
	store := openStore(t)
	m := NewManager(store, DefaultCondensationThreshold, true)

	sess, _ := m.Create("coding", 1000)
	m.AddUserMessage(sess, "write fib", 3)
	found := m.AddAssistantMessage(sess, "def fib(): ...\n---GIST---\nWrote fib.", "m1", 20)
	if !found {
		t.Error("gist marker should have been found")
	}

	loaded, err := store.Load(sess.SessionID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.History) != 2 {
		t.Fatalf("history = %d messages, want 2", len(loaded.History))
	}
	if loaded.History[1].Content != "def fib(): ..." {
		t.Errorf("assistant content = %q, want marker stripped", loaded.History[1].Content)
	}
	if len(loaded.SharedContext) != 1 || loaded.SharedContext[0].Summary != "Wrote fib." {
		t.Errorf("shared context: %+v", loaded.SharedContext)
	}
	if loaded.SharedContext[0].SourceRole != "coding" {
		t.Errorf("gist source role = %q, want coding", loaded.SharedContext[0].SourceRole)
	}
}

func TestPrepareMessagesDoesNotMutateSession(t *testing.T) {
	m := newManager(t)
	sess, _ := m.Create("coding", 1000)
	m.AddUserMessage(sess, "first", 1)
	m.AddAssistantMessage(sess, "reply", "m1", 1)

	messages := m.PrepareMessages(sess, "second", false)

	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	if messages[2].Role != "user" || messages[2].Content != "second" {
		t.Errorf("pending message: %+v", messages[2])
	}
	if len(sess.History) != 2 {
		t.Error("pending user message must not be committed")
	}
}

func TestPrepareMessagesInjectsGistIntoLastUserMessage(t *testing.T) {
	m := newManager(t)
	sess, _ := m.Create("coding", 1000)

	messages := m.PrepareMessages(sess, "write fib", true)
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	if !strings.HasPrefix(messages[0].Content, "write fib") ||
		!strings.Contains(messages[0].Content, GistMarker) {
		t.Errorf("instruction not injected: %q", messages[0].Content)
	}
}

func TestPrepareMessagesPrependsSharedContext(t *testing.T) {
	m := newManager(t)
	sess, _ := m.Create("coding", 1000)
	sess.AddGist(Gist{SourceRole: "coding", Summary: "Did a thing."})

	messages := m.PrepareMessages(sess, "next", false)
	if messages[0].Role != "system" || !strings.Contains(messages[0].Content, "Did a thing.") {
		t.Errorf("first message should carry prior context: %+v", messages[0])
	}
}

func TestCheckPressureBoundaries(t *testing.T) {
	m := NewManager(openStore(t), 0.8, true)

	sess, _ := m.Create("coding", 1000)
	sess.TokenStats.InputTokens = 799
	if m.CheckPressure(sess) {
		t.Error("below threshold must not trigger")
	}

	sess.TokenStats.InputTokens = 800
	if !m.CheckPressure(sess) {
		t.Error("pressure equal to threshold must trigger")
	}

	// Unknown limit never triggers regardless of exact counts.
	sess.TokenStats.ContextLimit = 0
	sess.TokenStats.InputTokens = 1 << 20
	if m.CheckPressure(sess) {
		t.Error("unknown context limit must never trigger condensation")
	}
}

func TestCondense(t *testing.T) {
	m := newManager(t)
	m.SetGenerateFn(func(ctx context.Context, role, prompt string) (string, error) {
		if role != "summarizer" {
			t.Errorf("condensation role = %q, want summarizer", role)
		}
		if !strings.Contains(prompt, "USER: q1") {
			t.Errorf("prompt missing old history:\n%s", prompt)
		}
		return "Condensed summary.", nil
	})

	sess, _ := m.Create("coding", 1000)
	m.AddUserMessage(sess, "q1", 100)
	m.AddAssistantMessage(sess, "a1", "m1", 100)
	m.AddUserMessage(sess, "q2", 50)
	m.AddAssistantMessage(sess, "a2", "m1", 50)

	before := sess.TokenStats.InputTokens
	m.Condense(context.Background(), sess)

	if len(sess.History) != 2 {
		t.Fatalf("history = %d messages, want last 2 kept", len(sess.History))
	}
	if sess.History[0].Content != "q2" {
		t.Errorf("kept history starts with %q, want q2", sess.History[0].Content)
	}
	if len(sess.SharedContext) != 1 {
		t.Fatalf("gists = %d, want 1", len(sess.SharedContext))
	}
	g := sess.SharedContext[0]
	if g.SourceRole != "summarizer" || g.ReplacesCount != 2 || g.Summary != "Condensed summary." {
		t.Errorf("gist: %+v", g)
	}

	// 200 old tokens out, rough estimate of the summary back in.
	want := before - 200 + len("Condensed summary.")/4
	if sess.TokenStats.InputTokens != want {
		t.Errorf("input tokens = %d, want %d", sess.TokenStats.InputTokens, want)
	}
}

func TestCondenseNoOpWhenHistoryShort(t *testing.T) {
	m := newManager(t)
	m.SetGenerateFn(func(ctx context.Context, role, prompt string) (string, error) {
		t.Error("summarizer must not be called for short history")
		return "", nil
	})

	sess, _ := m.Create("coding", 1000)
	m.AddUserMessage(sess, "q", 10)
	m.AddAssistantMessage(sess, "a", "m1", 10)

	m.Condense(context.Background(), sess)
	if len(sess.History) != 2 || len(sess.SharedContext) != 0 {
		t.Error("short history must be left untouched")
	}
}

func TestCondenseFailureLeavesSessionUnchanged(t *testing.T) {
	m := newManager(t)
	m.SetGenerateFn(func(ctx context.Context, role, prompt string) (string, error) {
		return "", errors.New("summarizer down")
	})

	sess, _ := m.Create("coding", 1000)
	for i := 0; i < 4; i++ {
		m.AddUserMessage(sess, "msg", 10)
	}

	m.Condense(context.Background(), sess)
	if len(sess.History) != 4 || len(sess.SharedContext) != 0 {
		t.Error("failed condensation must leave the session unchanged")
	}
}

func TestCondenseWithoutGenerateFnIsNoOp(t *testing.T) {
	m := newManager(t)
	sess, _ := m.Create("coding", 1000)
	for i := 0; i < 4; i++ {
		m.AddUserMessage(sess, "msg", 10)
	}
	m.Condense(context.Background(), sess)
	if len(sess.History) != 4 {
		t.Error("condense without a summarizer must be a no-op")
	}
}

func TestGenerateFallbackGist(t *testing.T) {
	m := newManager(t)
	m.SetGenerateFn(func(ctx context.Context, role, prompt string) (string, error) {
		if !strings.Contains(prompt, "the response text") {
			t.Errorf("prompt missing response text:\n%s", prompt)
		}
		return "Fallback summary.", nil
	})

	sess, _ := m.Create("coding", 1000)
	m.GenerateFallbackGist(context.Background(), sess, "the response text", "m1")

	if len(sess.SharedContext) != 1 {
		t.Fatalf("gists = %d, want 1", len(sess.SharedContext))
	}
	g := sess.SharedContext[0]
	if g.Summary != "Fallback summary." || g.SourceModelID != "m1" || g.ReplacesCount != 0 {
		t.Errorf("gist: %+v", g)
	}
}

func TestGenerateFallbackGistSilentOnFailure(t *testing.T) {
	m := newManager(t)
	m.SetGenerateFn(func(ctx context.Context, role, prompt string) (string, error) {
		return "", errors.New("down")
	})

	sess, _ := m.Create("coding", 1000)
	m.GenerateFallbackGist(context.Background(), sess, "text", "m1")
	if len(sess.SharedContext) != 0 {
		t.Error("failed fallback gist must add nothing")
	}
}

func TestDeleteAndList(t *testing.T) {
	m := newManager(t)

	first, _ := m.Create("coding", 0)
	time.Sleep(5 * time.Millisecond)
	second, _ := m.Create("reasoning", 0)

	entries, err := m.List(0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SessionID != second.SessionID {
		t.Error("list should be newest first")
	}

	deleted, err := m.Delete(first.SessionID)
	if err != nil || !deleted {
		t.Fatalf("delete = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, _ = m.Delete(first.SessionID)
	if deleted {
		t.Error("second delete should report not found")
	}
}
