package history

import (
	"context"
	"testing"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", "session-1")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	second, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleAssistant, Content: "hello"})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected monotonic ids, got %d then %d", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled in")
	}
}

func TestTailReturnsChronologicalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c"} {
		if _, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: content}); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	all, err := s.Tail(ctx, 0)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if all[0].Content != "a" || all[2].Content != "c" {
		t.Errorf("expected chronological order, got %+v", all)
	}

	limited, err := s.Tail(ctx, 2)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(limited) != 2 || limited[0].Content != "b" || limited[1].Content != "c" {
		t.Errorf("expected last 2 messages [b c], got %+v", limited)
	}
}

func TestAppendPreservesToolCallsAndResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := models.ConversationMessage{
		Role:    models.RoleAssistant,
		Content: "checking",
		ToolCalls: []models.ToolCall{
			{ID: "call_1", Name: "list_tasks", Input: []byte(`{}`)},
		},
	}
	if _, err := s.Append(ctx, msg); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if _, err := s.Append(ctx, models.ConversationMessage{
		Role:        models.RoleUser,
		ToolResults: []models.ToolResult{{ToolCallID: "call_1", Content: "[]"}},
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	all, err := s.Tail(ctx, 0)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(all[0].ToolCalls) != 1 || all[0].ToolCalls[0].Name != "list_tasks" {
		t.Errorf("expected tool call preserved, got %+v", all[0].ToolCalls)
	}
	if len(all[1].ToolResults) != 1 || all[1].ToolResults[0].ToolCallID != "call_1" {
		t.Errorf("expected tool result preserved, got %+v", all[1].ToolResults)
	}
}

func TestSearchRanksByMatchCountThenRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "buy milk"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if _, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "milk and milk again"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if _, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "no match here"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	results, err := s.Search(ctx, []string{"milk"}, nil, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].Content != "milk and milk again" {
		t.Errorf("expected higher match-count result first, got %q", results[0].Content)
	}
}

func TestSearchByToolName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, models.ConversationMessage{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "call_1", Name: "create_task"}},
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if _, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "unrelated"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	results, err := s.Search(ctx, nil, []string{"create_task"}, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
}

func TestClearRemovesAllMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}

	all, err := s.Tail(ctx, 0)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty history after Clear, got %d messages", len(all))
	}

	next, err := s.Append(ctx, models.ConversationMessage{Role: models.RoleUser, Content: "fresh start"})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if next.ID != 1 {
		t.Errorf("expected id counter reset after Clear, got %d", next.ID)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	db, err := Open(":memory:", "session-a")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer db.Close()

	if _, err := db.Append(context.Background(), models.ConversationMessage{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	other := &Store{db: db.db, sessionID: "session-b"}
	if err := other.seedNextID(); err != nil {
		t.Fatalf("seedNextID error: %v", err)
	}
	all, err := other.Tail(context.Background(), 0)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected session-b to be isolated from session-a, got %d messages", len(all))
	}
}
