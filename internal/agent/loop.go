package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tanmaycode1/voiceagent/internal/backoff"
	"github.com/tanmaycode1/voiceagent/internal/observability"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// HistoryStore is the subset of the History Store Gateway the Agent Loop
// depends on. internal/history.Store satisfies this.
type HistoryStore interface {
	Append(ctx context.Context, msg models.ConversationMessage) (models.ConversationMessage, error)
	Tail(ctx context.Context, limit int) ([]models.ConversationMessage, error)
	Clear(ctx context.Context) error
}

// LoopConfig tunes one Agent Loop invocation.
type LoopConfig struct {
	// HistoryWindow is how many trailing conversation messages are loaded
	// as the prompt prefix. Defaults to 5.
	HistoryWindow int
	// MaxIterations bounds the stream→tools→continue cycle. Defaults to 3.
	MaxIterations int
	// MaxWallTime bounds one invocation end-to-end.
	MaxWallTime time.Duration
	// Model and SystemPrompt are passed through to every CompletionRequest.
	Model        string
	SystemPrompt string
	// SystemPromptFunc, if set, is called fresh before every LLM call
	// instead of using the static SystemPrompt. The system prompt carries
	// the current wall-clock timestamp so the model can resolve relative
	// dates; a value fixed at Loop construction time goes stale across a
	// long-lived session.
	SystemPromptFunc func() string
	// CostRates prices the provider/model this invocation uses; zero value
	// means "unknown model, costs nothing" rather than a fatal error.
	CostRates CostRates
	// RetryBackoff is the "one silent retry after a short back-off" delay
	// for a transport/provider error mid-stream.
	RetryBackoff backoff.BackoffPolicy
	// Metrics, if set, records LLM and tool execution counters/histograms.
	// Left nil, every call below is a no-op — callers that don't care about
	// Prometheus never have to construct one.
	Metrics *observability.Metrics
	// Recorder, if set, records a per-run event timeline (run/LLM/tool
	// events keyed by the run and session IDs carried in ctx). Nil disables
	// timeline recording.
	Recorder *observability.EventRecorder
}

// DefaultLoopConfig returns the production defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		HistoryWindow: 5,
		MaxIterations: 3,
		MaxWallTime:   30 * time.Second,
		RetryBackoff:  backoff.AggressivePolicy(),
	}
}

func (c LoopConfig) sanitized() LoopConfig {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 5
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 3
	}
	if c.MaxWallTime <= 0 {
		c.MaxWallTime = 30 * time.Second
	}
	if c.RetryBackoff == (backoff.BackoffPolicy{}) {
		c.RetryBackoff = backoff.AggressivePolicy()
	}
	return c
}

// Loop is the Agent Loop: compose messages → stream LLM → execute tools →
// feed results back, bounded by MaxIterations, emitting a semantic
// AgentEvent stream and persisting the turn to History on natural stop.
type Loop struct {
	provider LLMProvider
	registry *ToolRegistry
	executor *ToolExecutor
	history  HistoryStore
	config   LoopConfig

	seq atomic.Uint64
}

// NewLoop constructs a Loop. provider, registry, and history must be
// non-nil; executor may be nil, in which case one is created with
// DefaultToolExecConfig bound to registry.
func NewLoop(provider LLMProvider, registry *ToolRegistry, executor *ToolExecutor, history HistoryStore, config LoopConfig) *Loop {
	if executor == nil {
		executor = NewToolExecutor(registry, DefaultToolExecConfig())
	}
	return &Loop{
		provider: provider,
		registry: registry,
		executor: executor,
		history:  history,
		config:   config.sanitized(),
	}
}

// Run executes one turn for userQuery, emitting AgentEvents onto events as
// they occur. events is closed when Run returns. Run never returns a Go
// error for LLM/tool-level failures — those surface as an EventError
// AgentEvent; a non-nil return is reserved for the history store itself
// being unusable.
func (l *Loop) Run(ctx context.Context, userQuery string, events chan<- models.AgentEvent) (err error) {
	defer close(events)

	ctx, cancel := context.WithTimeout(ctx, l.config.MaxWallTime)
	defer cancel()

	if r := l.config.Recorder; r != nil {
		started := time.Now()
		_ = r.RecordRunStart(ctx, observability.GetRunID(ctx), map[string]interface{}{"query": userQuery})
		defer func() { _ = r.RecordRunEnd(ctx, time.Since(started), err) }()
	}

	// Step 1: load the last k messages; clear and retry empty-prefix on a
	// corrupted load.
	history, err := l.loadHistory(ctx)
	if err != nil {
		return &LoopError{Phase: PhaseInit, Message: "loading history", Cause: err}
	}

	// Step 2: append the user query to History.
	if _, err := l.history.Append(ctx, models.ConversationMessage{
		Role:    models.RoleUser,
		Content: userQuery,
	}); err != nil {
		return &LoopError{Phase: PhaseInit, Message: "appending user message", Cause: err}
	}

	// Step 3: compose the provider-bound message list.
	messages := toCompletionMessages(history)
	messages = append(messages, CompletionMessage{Role: "user", Content: userQuery})

	var (
		totalUsage       Usage
		assistantText    strings.Builder
		assistantCalls   []models.ToolCall
		toolResultsAccum []models.ToolResult
		anyToolExecuted  bool
	)

	// Step 4: iterate up to MaxIterations.
	for iteration := 1; iteration <= l.config.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		stepText, toolCalls, usage, stop, streamErr := l.streamPhase(ctx, messages)
		if streamErr != nil {
			// A client interrupt cancels ctx mid-stream; that is not a
			// provider failure. An interrupt only skips persisting the
			// in-progress turn — it must not emit an error event or clear
			// History, unlike a genuine transport/provider failure or the
			// wall-clock timeout (context.DeadlineExceeded), which still
			// take the retry-then-clear-and-surface path below.
			if errors.Is(streamErr, context.Canceled) {
				return nil
			}
			l.emit(events, models.AgentEvent{Type: models.EventError, ErrorKind: "stream_error", ErrorText: streamErr.Error()})
			if err := l.history.Clear(ctx); err != nil {
				return &LoopError{Phase: PhaseStream, Iteration: iteration, Message: "clearing history after stream failure", Cause: err}
			}
			return nil
		}

		totalUsage = addUsage(totalUsage, usage)
		assistantText.WriteString(stepText)
		l.emitText(events, stepText)

		if len(toolCalls) == 0 {
			break
		}

		assistantCalls = append(assistantCalls, toolCalls...)
		messages = append(messages, CompletionMessage{Role: "assistant", Content: stepText, ToolCalls: toolCalls})

		results := l.executeToolsPhase(ctx, events, toolCalls)
		anyToolExecuted = true
		toolResultsAccum = append(toolResultsAccum, results...)
		messages = append(messages, CompletionMessage{Role: "user", ToolResults: results})

		if stop != StopToolUse {
			break
		}
	}

	// Step 5: persist the turn.
	if err := l.persistTurn(ctx, assistantText.String(), assistantCalls, toolResultsAccum, anyToolExecuted); err != nil {
		return &LoopError{Phase: PhaseComplete, Message: "persisting turn", Cause: err}
	}

	// Step 6: aggregate cost and emit done.
	cost := l.config.CostRates.Cost(totalUsage)
	l.emit(events, models.AgentEvent{
		Type: models.EventDone,
		Cost: &models.UsageCost{
			InputTokens:      totalUsage.InputTokens,
			CacheWriteTokens: totalUsage.CacheWriteTokens,
			CacheReadTokens:  totalUsage.CacheReadTokens,
			OutputTokens:     totalUsage.OutputTokens,
			CostUSD:          cost,
		},
	})

	return nil
}

// loadHistory loads the last k messages; if historyCorrupted detects a
// dangling tool call or orphan result, it clears the entire log and
// proceeds with an empty prefix rather than repairing the broken pair in
// place.
func (l *Loop) loadHistory(ctx context.Context) ([]models.ConversationMessage, error) {
	history, err := l.history.Tail(ctx, l.config.HistoryWindow)
	if err != nil {
		return nil, err
	}
	if !historyCorrupted(history) {
		return history, nil
	}
	if err := l.history.Clear(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// streamPhase calls the LLM Adapter once and accumulates its normalized
// events into a single assistant text + tool-call-complete set, retrying
// once after a short back-off on a transport/provider error.
func (l *Loop) streamPhase(ctx context.Context, messages []CompletionMessage) (string, []models.ToolCall, Usage, StopReason, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", nil, Usage{}, StopError, ctx.Err()
			case <-time.After(backoff.ComputeBackoff(l.config.RetryBackoff, attempt)):
			}
		}

		text, calls, usage, stop, err := l.runStream(ctx, messages)
		if err == nil {
			return text, calls, usage, stop, nil
		}
		lastErr = err
	}
	return "", nil, Usage{}, StopError, lastErr
}

func (l *Loop) runStream(ctx context.Context, messages []CompletionMessage) (string, []models.ToolCall, Usage, StopReason, error) {
	system := l.config.SystemPrompt
	if l.config.SystemPromptFunc != nil {
		system = l.config.SystemPromptFunc()
	}
	req := &CompletionRequest{
		Model:    l.config.Model,
		System:   system,
		Messages: messages,
		Tools:    l.registry.AsLLMTools(),
	}

	start := time.Now()
	if r := l.config.Recorder; r != nil {
		_ = r.RecordLLMRequest(ctx, l.provider.Name(), req.Model)
	}
	stream, err := l.provider.Stream(ctx, req)
	if err != nil {
		l.recordLLMRequest(req.Model, time.Since(start), Usage{}, false)
		return "", nil, Usage{}, StopError, err
	}

	var text strings.Builder
	var calls []models.ToolCall
	var usage Usage
	stop := StopEndTurn

	for ev := range stream {
		switch ev.Type {
		case EventTextDelta:
			text.WriteString(ev.TextDelta)
		case EventToolCallComplete:
			calls = append(calls, models.ToolCall{ID: ev.ToolCallID, Name: ev.ToolCallName, Input: ev.ToolCallArgs})
		case EventUsage:
			usage = ev.Usage
		case EventStop:
			stop = ev.Stop
		case EventStreamError:
			l.recordLLMRequest(req.Model, time.Since(start), usage, false)
			// Preserve context.Canceled/context.DeadlineExceeded rather than
			// flattening them into an opaque string — Run() distinguishes a
			// client interrupt from a genuine provider failure by checking
			// errors.Is(err, context.Canceled) on what streamPhase returns.
			if ctx.Err() != nil {
				return "", nil, Usage{}, StopError, ctx.Err()
			}
			return "", nil, Usage{}, StopError, fmt.Errorf("%s: %s", ev.ErrorKind, ev.ErrorText)
		}
	}
	l.recordLLMRequest(req.Model, time.Since(start), usage, true)
	if r := l.config.Recorder; r != nil {
		_ = r.RecordLLMResponse(ctx, l.provider.Name(), req.Model, time.Since(start), map[string]interface{}{
			"input_tokens":  usage.InputTokens,
			"output_tokens": usage.OutputTokens,
			"stop":          string(stop),
		})
	}
	return text.String(), calls, usage, stop, nil
}

// recordLLMRequest is a no-op unless LoopConfig.Metrics is set.
func (l *Loop) recordLLMRequest(model string, elapsed time.Duration, usage Usage, ok bool) {
	m := l.config.Metrics
	if m == nil {
		return
	}
	provider := l.provider.Name()
	status := "error"
	if ok {
		status = "success"
	}
	m.RecordLLMRequest(provider, model, status, elapsed.Seconds(), usage.InputTokens, usage.OutputTokens)
	if cost := l.config.CostRates.Cost(usage); cost > 0 {
		m.RecordLLMCost(provider, model, cost)
	}
}

// executeToolsPhase dispatches toolCalls via the Tool Dispatcher,
// emitting tool_use_start, tool_use, then tool_result for each call, in
// call order.
func (l *Loop) executeToolsPhase(ctx context.Context, events chan<- models.AgentEvent, toolCalls []models.ToolCall) []models.ToolResult {
	for _, call := range toolCalls {
		l.emit(events, models.AgentEvent{Type: models.EventToolUseStart, ToolCallID: call.ID, ToolName: call.Name})
		if r := l.config.Recorder; r != nil {
			_ = r.RecordToolStart(observability.AddToolCallID(ctx, call.ID), call.Name, call.Input)
		}
	}

	start := time.Now()
	execResults := l.executor.ExecuteAll(ctx, toolCalls)
	elapsed := time.Since(start)

	results := make([]models.ToolResult, len(execResults))
	for i, er := range execResults {
		l.emit(events, models.AgentEvent{Type: models.EventToolUse, ToolCallID: er.ToolCall.ID, ToolName: er.ToolCall.Name, ToolInput: er.ToolCall.Input})

		envelope := decodeEnvelope(er.Result.Content)
		l.emit(events, models.AgentEvent{Type: models.EventToolResult, ToolCallID: er.ToolCall.ID, ToolName: er.ToolCall.Name, ToolResult: &envelope})

		results[i] = models.ToolResult{ToolCallID: er.ToolCall.ID, Content: er.Result.Content, IsError: er.Result.IsError}
		l.recordToolExecution(er.ToolCall.Name, elapsed, er.Result.IsError)
		if r := l.config.Recorder; r != nil {
			callCtx := observability.AddToolCallID(ctx, er.ToolCall.ID)
			var toolErr error
			if er.Result.IsError {
				toolErr = errors.New(er.Result.Content)
			}
			_ = r.RecordToolEnd(callCtx, er.ToolCall.Name, elapsed, er.Result.Content, toolErr)
		}
	}
	return results
}

// recordToolExecution is a no-op unless LoopConfig.Metrics is set. Per-call
// duration isn't tracked by ToolExecutor.ExecuteAll (it runs the batch
// concurrently), so every call in one batch is attributed the batch's total
// wall time rather than its own — an approximation, not a per-call timing.
func (l *Loop) recordToolExecution(name string, elapsed time.Duration, isError bool) {
	m := l.config.Metrics
	if m == nil {
		return
	}
	status := "success"
	if isError {
		status = "error"
	}
	m.RecordToolExecution(name, status, elapsed.Seconds())
}

// persistTurn appends one assistant message with the concatenated text
// and any tool calls, plus (if any tool executed) a synthetic user
// message carrying the tool results.
func (l *Loop) persistTurn(ctx context.Context, text string, calls []models.ToolCall, results []models.ToolResult, anyToolExecuted bool) error {
	if _, err := l.history.Append(ctx, models.ConversationMessage{
		Role:      models.RoleAssistant,
		Content:   text,
		ToolCalls: calls,
	}); err != nil {
		return err
	}
	if anyToolExecuted {
		if _, err := l.history.Append(ctx, models.ConversationMessage{
			Role:        models.RoleUser,
			ToolResults: results,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) emit(events chan<- models.AgentEvent, ev models.AgentEvent) {
	ev.Sequence = l.seq.Add(1)
	events <- ev
}

func (l *Loop) emitText(events chan<- models.AgentEvent, text string) {
	if text == "" {
		return
	}
	l.emit(events, models.AgentEvent{Type: models.EventText, Text: text})
}

func toCompletionMessages(history []models.ConversationMessage) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, CompletionMessage{
			Role:        string(msg.Role),
			Content:     msg.Content,
			ToolCalls:   msg.ToolCalls,
			ToolResults: msg.ToolResults,
		})
	}
	return out
}

func addUsage(a, b Usage) Usage {
	return Usage{
		InputTokens:      a.InputTokens + b.InputTokens,
		CacheWriteTokens: a.CacheWriteTokens + b.CacheWriteTokens,
		CacheReadTokens:  a.CacheReadTokens + b.CacheReadTokens,
		OutputTokens:     a.OutputTokens + b.OutputTokens,
	}
}

func decodeEnvelope(content string) models.ToolEnvelope {
	var env models.ToolEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return models.Fail(content)
	}
	return env
}
