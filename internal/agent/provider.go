// Package agent implements the Agent Loop and the LLM Adapter that hides
// per-provider differences behind one streaming interface.
package agent

import (
	"context"
	"encoding/json"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// Tool is one entry in the tool registry: a name, a description and JSON
// schema the LLM sees, and an executor that never returns a Go error for
// domain-level failures — those are encoded in the returned ToolResult.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of running a Tool, before it is wrapped into a
// models.ToolResult for the LLM and persisted to history.
type ToolResult struct {
	Content string
	IsError bool
}

// Model describes one model an LLMProvider can serve.
type Model struct {
	ID          string
	Name        string
	ContextSize int
}

// CompletionMessage is one turn of conversation as sent to an LLMProvider.
// Role is "user" or "assistant"; a message may carry ToolCalls (assistant
// requesting execution) or ToolResults (the outcome fed back) in addition
// to, or instead of, Content.
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// CompletionRequest is a provider-agnostic LLM call. System is always a
// separate field here even for providers (like OpenAI) that want it inlined
// as a message — the adapter does that translation, never the caller.
type CompletionRequest struct {
	Model           string
	System          string
	Messages        []CompletionMessage
	Tools           []Tool
	MaxOutputTokens int
}

// StreamEventType discriminates one normalized event from an LLMProvider's
// Stream call. This is the vocabulary every adapter must translate its
// provider's wire format into — no provider-shaped field ever leaks past
// this boundary.
type StreamEventType string

const (
	EventTextDelta         StreamEventType = "text_delta"
	EventToolCallStart     StreamEventType = "tool_call_start"
	EventToolCallArgsDelta StreamEventType = "tool_call_args_delta"
	EventToolCallComplete  StreamEventType = "tool_call_complete"
	EventUsage             StreamEventType = "usage"
	EventStop              StreamEventType = "stop"
	EventStreamError       StreamEventType = "error"
)

// StopReason classifies why a provider stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopError     StopReason = "error"
)

// StreamEvent is one normalized unit from an LLMProvider.Stream channel.
// Exactly the fields relevant to Type are populated.
type StreamEvent struct {
	Type StreamEventType

	TextDelta string

	ToolCallID   string
	ToolCallName string
	ArgsFragment string
	ToolCallArgs json.RawMessage

	Usage Usage

	Stop StopReason

	ErrorKind string
	ErrorText string
}

// Usage is the token accounting for one completion call. CacheWriteTokens
// and CacheReadTokens are non-overlapping with InputTokens: a provider that
// doesn't support prompt caching always reports them as zero, never folds
// them into InputTokens.
type Usage struct {
	InputTokens      int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	OutputTokens     int64
}

// LLMProvider is the normalized interface every LLM backend implements.
// Stream must close its channel exactly once, after a terminal EventStop or
// EventStreamError event.
type LLMProvider interface {
	Name() string
	Models() []Model
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error)
}

// CostRates is the per-million-token pricing for one model.
type CostRates struct {
	InputPerMTok      float64
	CacheWritePerMTok float64
	CacheReadPerMTok  float64
	OutputPerMTok     float64
}

// Cost applies the rate table to a Usage, following the formula: regular
// input, cache-write, cache-read, and output tokens are each billed at
// their own rate and summed — none of the four buckets overlaps another.
func (r CostRates) Cost(u Usage) float64 {
	const perMillion = 1.0 / 1_000_000
	return float64(u.InputTokens)*r.InputPerMTok*perMillion +
		float64(u.CacheWriteTokens)*r.CacheWritePerMTok*perMillion +
		float64(u.CacheReadTokens)*r.CacheReadPerMTok*perMillion +
		float64(u.OutputTokens)*r.OutputPerMTok*perMillion
}
