package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// memHistory is an in-memory HistoryStore stand-in for loop tests, so they
// don't need a sqlite file — the Agent Loop only depends on the three
// methods in the HistoryStore interface.
type memHistory struct {
	messages []models.ConversationMessage
	nextID   int64
	cleared  int
}

func (m *memHistory) Append(ctx context.Context, msg models.ConversationMessage) (models.ConversationMessage, error) {
	m.nextID++
	msg.ID = m.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Unix(0, 0)
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memHistory) Tail(ctx context.Context, limit int) ([]models.ConversationMessage, error) {
	if limit <= 0 || limit >= len(m.messages) {
		out := make([]models.ConversationMessage, len(m.messages))
		copy(out, m.messages)
		return out, nil
	}
	start := len(m.messages) - limit
	out := make([]models.ConversationMessage, limit)
	copy(out, m.messages[start:])
	return out, nil
}

func (m *memHistory) Clear(ctx context.Context) error {
	m.messages = nil
	m.nextID = 0
	m.cleared++
	return nil
}

// stubProvider replays a scripted sequence of StreamEvent batches, one
// batch per Stream call, so a test can script a multi-iteration tool-use
// loop without a real LLM.
type stubProvider struct {
	batches [][]StreamEvent
	calls   int
}

func (p *stubProvider) Name() string    { return "stub" }
func (p *stubProvider) Models() []Model { return nil }

func (p *stubProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	idx := p.calls
	p.calls++
	ch := make(chan StreamEvent, len(p.batches[idx]))
	for _, ev := range p.batches[idx] {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type erroringProvider struct {
	kind string
	text string
}

func (p *erroringProvider) Name() string    { return "erroring" }
func (p *erroringProvider) Models() []Model { return nil }

func (p *erroringProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Type: EventStreamError, ErrorKind: p.kind, ErrorText: p.text}
	close(ch)
	return ch, nil
}

// blockingProvider mirrors how the real providers (see openai.go) surface a
// canceled context: it blocks until ctx is done, then emits an
// EventStreamError carrying ctx.Err(), just like a provider's stream loop
// selecting on <-ctx.Done() mid-request.
type blockingProvider struct {
	started chan struct{}
}

func (p *blockingProvider) Name() string    { return "blocking" }
func (p *blockingProvider) Models() []Model { return nil }

func (p *blockingProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 1)
	go func() {
		defer close(ch)
		if p.started != nil {
			close(p.started)
		}
		<-ctx.Done()
		ch <- StreamEvent{Type: EventStreamError, ErrorKind: "timeout", ErrorText: ctx.Err().Error()}
	}()
	return ch, nil
}

func drain(t *testing.T, events <-chan models.AgentEvent) []models.AgentEvent {
	t.Helper()
	var out []models.AgentEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestLoopSimpleTextReply(t *testing.T) {
	provider := &stubProvider{batches: [][]StreamEvent{
		{
			{Type: EventTextDelta, TextDelta: "hello "},
			{Type: EventTextDelta, TextDelta: "world"},
			{Type: EventUsage, Usage: Usage{InputTokens: 10, OutputTokens: 5}},
			{Type: EventStop, Stop: StopEndTurn},
		},
	}}
	registry := NewToolRegistry()
	hist := &memHistory{}
	loop := NewLoop(provider, registry, nil, hist, DefaultLoopConfig())

	events := make(chan models.AgentEvent, 16)
	if err := loop.Run(context.Background(), "hi", events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := drain(t, events)
	if len(got) != 2 {
		t.Fatalf("expected text + done events, got %d: %+v", len(got), got)
	}
	if got[0].Type != models.EventText || got[0].Text != "hello world" {
		t.Errorf("expected text event, got %+v", got[0])
	}
	if got[1].Type != models.EventDone || got[1].Cost == nil {
		t.Errorf("expected done event with cost, got %+v", got[1])
	}
	if len(hist.messages) != 2 {
		t.Fatalf("expected user + assistant messages persisted, got %d", len(hist.messages))
	}
	if hist.messages[1].Content != "hello world" {
		t.Errorf("expected assistant content persisted, got %q", hist.messages[1].Content)
	}
}

func TestLoopExecutesToolThenContinues(t *testing.T) {
	provider := &stubProvider{batches: [][]StreamEvent{
		{
			{Type: EventToolCallComplete, ToolCallID: "1", ToolCallName: "list_tasks", ToolCallArgs: json.RawMessage(`{}`)},
			{Type: EventStop, Stop: StopToolUse},
		},
		{
			{Type: EventTextDelta, TextDelta: "done"},
			{Type: EventStop, Stop: StopEndTurn},
		},
	}}
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "list_tasks", result: &ToolResult{Content: `{"success":true,"message":"ok"}`}})
	hist := &memHistory{}
	loop := NewLoop(provider, registry, nil, hist, DefaultLoopConfig())

	events := make(chan models.AgentEvent, 16)
	if err := loop.Run(context.Background(), "what's on my list?", events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := drain(t, events)
	var sawToolStart, sawToolUse, sawToolResult, sawDone bool
	for _, ev := range got {
		switch ev.Type {
		case models.EventToolUseStart:
			sawToolStart = true
		case models.EventToolUse:
			sawToolUse = true
		case models.EventToolResult:
			sawToolResult = true
			if ev.ToolResult == nil || !ev.ToolResult.Success {
				t.Errorf("expected successful envelope, got %+v", ev.ToolResult)
			}
		case models.EventDone:
			sawDone = true
		}
	}
	if !sawToolStart || !sawToolUse || !sawToolResult || !sawDone {
		t.Errorf("expected full tool event sequence, got %+v", got)
	}
	if provider.calls != 2 {
		t.Errorf("expected two LLM iterations, got %d", provider.calls)
	}

	// Persisted turn: user query, assistant (tool call), synthetic user (tool results).
	if len(hist.messages) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d: %+v", len(hist.messages), hist.messages)
	}
	if len(hist.messages[1].ToolCalls) != 1 {
		t.Errorf("expected assistant message to carry the tool call, got %+v", hist.messages[1])
	}
	if len(hist.messages[2].ToolResults) != 1 {
		t.Errorf("expected synthetic user message to carry the tool result, got %+v", hist.messages[2])
	}
}

func TestLoopStopsAtMaxIterations(t *testing.T) {
	batch := []StreamEvent{
		{Type: EventToolCallComplete, ToolCallID: "1", ToolCallName: "noop", ToolCallArgs: json.RawMessage(`{}`)},
		{Type: EventStop, Stop: StopToolUse},
	}
	provider := &stubProvider{batches: [][]StreamEvent{batch, batch, batch}}
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "noop", result: &ToolResult{Content: `{"success":true,"message":"ok"}`}})
	hist := &memHistory{}
	cfg := DefaultLoopConfig()
	cfg.MaxIterations = 3
	loop := NewLoop(provider, registry, nil, hist, cfg)

	events := make(chan models.AgentEvent, 32)
	if err := loop.Run(context.Background(), "loop forever", events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, events)

	if provider.calls != 3 {
		t.Errorf("expected exactly MaxIterations calls, got %d", provider.calls)
	}
}

func TestLoopClearsHistoryOnSecondStreamFailure(t *testing.T) {
	provider := &erroringProvider{kind: "transport", text: "connection reset"}
	registry := NewToolRegistry()
	hist := &memHistory{}
	cfg := DefaultLoopConfig()
	cfg.RetryBackoff.InitialMs = 1
	cfg.RetryBackoff.MaxMs = 2
	loop := NewLoop(provider, registry, nil, hist, cfg)

	events := make(chan models.AgentEvent, 8)
	if err := loop.Run(context.Background(), "hi", events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := drain(t, events)
	if len(got) != 1 || got[0].Type != models.EventError {
		t.Fatalf("expected a single error event, got %+v", got)
	}
	if hist.cleared != 1 {
		t.Errorf("expected history cleared after second failure, got cleared=%d", hist.cleared)
	}
}

// TestLoopInterruptSkipsPersistenceWithoutClearingHistory: a client
// cancellation mid-stream must skip
// persisting the in-progress turn — not emit an error event, not clear
// History — leaving the log exactly one message longer (the user query),
// not three (user + assistant + clear-then-nothing).
func TestLoopInterruptSkipsPersistenceWithoutClearingHistory(t *testing.T) {
	provider := &blockingProvider{started: make(chan struct{})}
	registry := NewToolRegistry()
	hist := &memHistory{}
	loop := NewLoop(provider, registry, nil, hist, DefaultLoopConfig())

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan models.AgentEvent, 8)

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx, "never finishes", events) }()

	<-provider.started
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("expected nil error on interrupt, got %v", err)
	}

	got := drain(t, events)
	if len(got) != 0 {
		t.Errorf("expected no emitted events on interrupt, got %+v", got)
	}
	if hist.cleared != 0 {
		t.Errorf("expected history not cleared on interrupt, got cleared=%d", hist.cleared)
	}
	if len(hist.messages) != 1 {
		t.Fatalf("expected exactly the user message persisted, got %d: %+v", len(hist.messages), hist.messages)
	}
	if hist.messages[0].Role != models.RoleUser {
		t.Errorf("expected the persisted message to be the user query, got %+v", hist.messages[0])
	}
}

func TestLoopRecoversFromCorruptedHistory(t *testing.T) {
	hist := &memHistory{}
	// Seed a dangling tool call with no matching result: simulates a crash
	// between persisting the assistant message and its tool-result pair.
	hist.messages = append(hist.messages, models.ConversationMessage{
		ID:        1,
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "x", Name: "list_tasks"}},
	})
	hist.nextID = 1

	provider := &stubProvider{batches: [][]StreamEvent{
		{
			{Type: EventTextDelta, TextDelta: "ok"},
			{Type: EventStop, Stop: StopEndTurn},
		},
	}}
	registry := NewToolRegistry()
	loop := NewLoop(provider, registry, nil, hist, DefaultLoopConfig())

	events := make(chan models.AgentEvent, 8)
	if err := loop.Run(context.Background(), "hi again", events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, events)

	if hist.cleared != 1 {
		t.Errorf("expected corrupted history to be cleared, got cleared=%d", hist.cleared)
	}
	// After clear, only the new user message + new assistant message remain.
	if len(hist.messages) != 2 {
		t.Errorf("expected history reset to just this turn, got %+v", hist.messages)
	}
}
