package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

func TestExecuteAllPreservesOrder(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "a", result: &ToolResult{Content: "a-result"}})
	registry.Register(&stubTool{name: "b", result: &ToolResult{Content: "b-result"}})
	registry.Register(&stubTool{name: "c", result: &ToolResult{Content: "c-result"}})

	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	calls := []models.ToolCall{
		{ID: "1", Name: "a"},
		{ID: "2", Name: "b"},
		{ID: "3", Name: "c"},
	}

	results := executor.ExecuteAll(context.Background(), calls)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Result.Content != "a-result" || results[1].Result.Content != "b-result" || results[2].Result.Content != "c-result" {
		t.Errorf("expected results in input order, got %+v", results)
	}
	for _, r := range results {
		if r.Result.ToolCallID == "" {
			t.Error("expected ToolCallID to be set on each result")
		}
	}
}

func TestExecuteAllTimesOutSlowTool(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&slowTool{name: "slow", delay: 50 * time.Millisecond})

	executor := NewToolExecutor(registry, ToolExecConfig{Concurrency: 2, PerToolTimeout: 5 * time.Millisecond})
	results := executor.ExecuteAll(context.Background(), []models.ToolCall{{ID: "1", Name: "slow"}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].TimedOut || !results[0].Result.IsError {
		t.Errorf("expected timeout error, got %+v", results[0])
	}
}

func TestExecuteAllReportsToolError(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "fails", result: &ToolResult{Content: "boom", IsError: true}})

	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	results := executor.ExecuteAll(context.Background(), []models.ToolCall{{ID: "1", Name: "fails"}})

	if !results[0].Result.IsError || results[0].Result.Content != "boom" {
		t.Errorf("expected propagated tool error, got %+v", results[0])
	}
}

type slowTool struct {
	name  string
	delay time.Duration
}

func (s *slowTool) Name() string                 { return s.name }
func (s *slowTool) Description() string          { return "slow" }
func (s *slowTool) Schema() json.RawMessage      { return json.RawMessage(`{"type":"object"}`) }
func (s *slowTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	select {
	case <-time.After(s.delay):
		return &ToolResult{Content: "done"}, nil
	case <-ctx.Done():
		return &ToolResult{Content: "canceled", IsError: true}, nil
	}
}
