// Package providers implements the concrete LLM adapters behind
// agent.LLMProvider: Anthropic Claude (primary) and OpenAI (secondary).
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/tanmaycode1/voiceagent/internal/agent"
)

const maxEmptyStreamEvents = 50

// AnthropicProvider implements agent.LLMProvider against Claude's streaming
// Messages API, including the prompt-cache usage accounting the adapter's
// cost formula depends on.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures NewAnthropicProvider. Only APIKey is required.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider validates config and returns a ready-to-use provider.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextSize: 200000},
	}
}

// Stream issues one completion call and translates Claude's SSE stream into
// the normalized event vocabulary. Transient failures surface as a single
// EventStreamError classified via ClassifyError — the Agent Loop, not this
// adapter, decides whether to retry the call.
func (p *AnthropicProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamEvent, error) {
	events := make(chan agent.StreamEvent)

	go func() {
		defer close(events)

		model := p.getModel(req.Model)
		messages, err := p.convertMessages(req.Messages)
		if err != nil {
			events <- errorEvent("invalid_request", err.Error())
			return
		}
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			events <- errorEvent("invalid_request", err.Error())
			return
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			Messages:  messages,
			MaxTokens: int64(p.getMaxTokens(req.MaxOutputTokens)),
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
		}
		if len(tools) > 0 {
			params.Tools = tools
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		p.processStream(stream, events, model)
	}()

	return events, nil
}

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], events chan<- agent.StreamEvent, model string) {
	var toolCallID, toolCallName string
	var toolInput strings.Builder
	inToolCall := false
	emptyEventCount := 0

	var usage agent.Usage

	for stream.Next() {
		ev := stream.Current()
		eventProcessed := false

		switch ev.Type {
		case "message_start":
			ms := ev.AsMessageStart()
			usage.InputTokens = ms.Message.Usage.InputTokens
			usage.CacheWriteTokens = ms.Message.Usage.CacheCreationInputTokens
			usage.CacheReadTokens = ms.Message.Usage.CacheReadInputTokens
			eventProcessed = true

		case "content_block_start":
			block := ev.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				toolCallID = toolUse.ID
				toolCallName = toolUse.Name
				toolInput.Reset()
				inToolCall = true
				events <- agent.StreamEvent{Type: agent.EventToolCallStart, ToolCallID: toolCallID, ToolCallName: toolCallName}
				eventProcessed = true
			}

		case "content_block_delta":
			delta := ev.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					events <- agent.StreamEvent{Type: agent.EventTextDelta, TextDelta: delta.Text}
					eventProcessed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					events <- agent.StreamEvent{Type: agent.EventToolCallArgsDelta, ToolCallID: toolCallID, ArgsFragment: delta.PartialJSON}
					eventProcessed = true
				}
			}

		case "content_block_stop":
			if inToolCall {
				events <- agent.StreamEvent{
					Type:         agent.EventToolCallComplete,
					ToolCallID:   toolCallID,
					ToolCallName: toolCallName,
					ToolCallArgs: json.RawMessage(toolInput.String()),
				}
				inToolCall = false
				eventProcessed = true
			}

		case "message_delta":
			md := ev.AsMessageDelta()
			usage.OutputTokens = md.Usage.OutputTokens
			events <- agent.StreamEvent{Type: agent.EventUsage, Usage: usage}
			eventProcessed = true

		case "message_stop":
			events <- agent.StreamEvent{Type: agent.EventStop, Stop: agent.StopEndTurn}
			return

		case "error":
			events <- errorEvent("server_error", "anthropic stream error")
			return
		}

		if eventProcessed {
			emptyEventCount = 0
		} else {
			emptyEventCount++
			if emptyEventCount >= maxEmptyStreamEvents {
				events <- p.wrapStreamErr(fmt.Errorf("stream appears malformed: received %d consecutive empty events", emptyEventCount), model)
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		events <- p.wrapStreamErr(err, model)
	}
}

func errorEvent(kind, text string) agent.StreamEvent {
	return agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: kind, ErrorText: text}
}

func (p *AnthropicProvider) wrapStreamErr(err error, model string) agent.StreamEvent {
	wrapped := p.wrapError(err, model)
	var perr *ProviderError
	if errors.As(wrapped, &perr) {
		return agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: string(perr.Reason), ErrorText: perr.Error()}
	}
	return errorEvent("unknown", wrapped.Error())
}

func (p *AnthropicProvider) convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input: %w", err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

func (p *AnthropicProvider) convertTools(tools []agent.Tool) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name(), err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name())
		}
		param.OfTool.Description = anthropic.String(tool.Description())
		out = append(out, param)
	}
	return out, nil
}

func (p *AnthropicProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *AnthropicProvider) getMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *AnthropicProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := NewProviderError("anthropic", model, err).WithStatus(apiErr.StatusCode)
		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				if payload.Error.Message != "" {
					providerErr = providerErr.WithMessage(payload.Error.Message)
				}
				if payload.Error.Type != "" {
					providerErr = providerErr.WithCode(payload.Error.Type)
				}
				if payload.RequestID != "" {
					providerErr = providerErr.WithRequestID(payload.RequestID)
				}
			}
		}
		return providerErr
	}
	return NewProviderError("anthropic", model, err)
}
