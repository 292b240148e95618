package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// ToolExecConfig configures concurrent tool execution. The executor does
// not retry tools; the Agent Loop's one-silent-retry applies at the
// stream level, not here.
type ToolExecConfig struct {
	// Concurrency is the maximum number of concurrent tool executions.
	Concurrency int
	// PerToolTimeout bounds a single tool call.
	PerToolTimeout time.Duration
}

// DefaultToolExecConfig returns the production defaults.
func DefaultToolExecConfig() ToolExecConfig {
	return ToolExecConfig{Concurrency: 4, PerToolTimeout: 30 * time.Second}
}

// ToolExecutor runs tool calls concurrently against a ToolRegistry.
type ToolExecutor struct {
	registry *ToolRegistry
	config   ToolExecConfig
}

// NewToolExecutor creates an executor bound to registry, applying defaults
// for zero-valued config fields.
func NewToolExecutor(registry *ToolRegistry, config ToolExecConfig) *ToolExecutor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	return &ToolExecutor{registry: registry, config: config}
}

// ToolExecResult is one tool call's outcome, alongside timing information.
type ToolExecResult struct {
	ToolCall  models.ToolCall
	Result    models.ToolResult
	StartedAt time.Time
	EndedAt   time.Time
	TimedOut  bool
}

// ExecuteAll runs toolCalls concurrently, bounded by Concurrency, and
// returns results in the same order as the input.
func (e *ToolExecutor) ExecuteAll(ctx context.Context, toolCalls []models.ToolCall) []ToolExecResult {
	results := make([]ToolExecResult, len(toolCalls))
	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, tc := range toolCalls {
		wg.Add(1)
		go func(idx int, call models.ToolCall) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ToolExecResult{
					ToolCall: call,
					Result:   models.ToolResult{ToolCallID: call.ID, Content: "context canceled", IsError: true},
				}
				return
			}

			started := time.Now()
			toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
			result, timedOut := e.executeWithTimeout(toolCtx, call)
			cancel()

			results[idx] = ToolExecResult{
				ToolCall:  call,
				Result:    result,
				StartedAt: started,
				EndedAt:   time.Now(),
				TimedOut:  timedOut,
			}
		}(i, tc)
	}

	wg.Wait()
	return results
}

func (e *ToolExecutor) executeWithTimeout(ctx context.Context, call models.ToolCall) (models.ToolResult, bool) {
	type outcome struct {
		result *ToolResult
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		result, err := e.registry.Execute(ctx, call.Name, call.Input)
		select {
		case resultCh <- outcome{result: result, err: err}:
		default:
		}
	}()

	select {
	case <-ctx.Done():
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		content := "tool execution canceled"
		if timedOut {
			content = fmt.Sprintf("tool execution timed out after %v", e.config.PerToolTimeout)
		}
		return models.ToolResult{ToolCallID: call.ID, Content: content, IsError: true}, timedOut
	case out := <-resultCh:
		if out.err != nil {
			return models.ToolResult{ToolCallID: call.ID, Content: out.err.Error(), IsError: true}, false
		}
		return models.ToolResult{ToolCallID: call.ID, Content: out.result.Content, IsError: out.result.IsError}, false
	}
}
