package models

import "encoding/json"

// FrameType discriminates the top-level JSON envelope sent server to
// client over the agent WebSocket.
type FrameType string

const (
	FrameFluxEvent  FrameType = "flux_event"
	FrameAgentStart FrameType = "agent_start"
	FrameAgentEvent FrameType = "agent_event"
	FrameAgentError FrameType = "agent_error"
)

// Frame is the outer envelope for every server-to-client message.
type Frame struct {
	Type  FrameType       `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// AgentEventType discriminates the inner payload of a FrameAgentEvent
// frame, i.e. what happened during one Agent Loop turn.
type AgentEventType string

const (
	EventThinking     AgentEventType = "thinking"
	EventToolUseStart AgentEventType = "tool_use_start"
	EventToolUse      AgentEventType = "tool_use"
	EventToolResult   AgentEventType = "tool_result"
	EventText         AgentEventType = "text"
	EventDone         AgentEventType = "done"
	EventError        AgentEventType = "error"
)

// AgentEvent is one inner event of a turn, monotonically sequenced within
// the session so the client can detect drops or reordering.
type AgentEvent struct {
	Type       AgentEventType  `json:"type"`
	Sequence   uint64          `json:"sequence"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolResult *ToolEnvelope   `json:"tool_result,omitempty"`
	Cost       *UsageCost      `json:"cost,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	ErrorText  string          `json:"error_text,omitempty"`
}

// UsageCost is the Agent Loop's aggregated token usage and dollar cost for
// one turn, computed across every LLM iteration in that turn.
type UsageCost struct {
	InputTokens      int64   `json:"input_tokens"`
	CacheWriteTokens int64   `json:"cache_write_tokens"`
	CacheReadTokens  int64   `json:"cache_read_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// FluxEvent mirrors the STT provider's TurnInfo payload, relayed to the
// client largely unchanged.
type FluxEvent struct {
	Event      string  `json:"event"`
	Transcript string  `json:"transcript,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}
