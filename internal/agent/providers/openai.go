package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tanmaycode1/voiceagent/internal/agent"
)

// OpenAIProvider implements agent.LLMProvider as the secondary adapter,
// demonstrating the function-call tool-schema dialect. OpenAI's API does not
// report prompt-cache token counts, so Usage.CacheWriteTokens and
// CacheReadTokens are always zero here.
type OpenAIProvider struct {
	BaseProvider
	client *openai.Client
}

// NewOpenAIProvider constructs a provider bound to apiKey.
func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	return &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", 3, time.Second),
		client:       openai.NewClient(apiKey),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000},
	}
}

// Stream issues one chat completion call and translates OpenAI's SSE deltas
// into the normalized event vocabulary.
func (p *OpenAIProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamEvent, error) {
	events := make(chan agent.StreamEvent)

	go func() {
		defer close(events)

		messages := p.convertMessages(req.Messages, req.System)
		chatReq := openai.ChatCompletionRequest{
			Model:    req.Model,
			Messages: messages,
			Stream:   true,
		}
		if req.MaxOutputTokens > 0 {
			chatReq.MaxTokens = req.MaxOutputTokens
		}
		if len(req.Tools) > 0 {
			chatReq.Tools = p.convertTools(req.Tools)
		}

		var stream *openai.ChatCompletionStream
		connectErr := p.Retry(ctx, p.isRetryableError, func() error {
			var err error
			stream, err = p.client.CreateChatCompletionStream(ctx, chatReq)
			return err
		})
		if connectErr != nil {
			switch {
			case ctx.Err() != nil:
				events <- agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: "timeout", ErrorText: ctx.Err().Error()}
			case !p.isRetryableError(connectErr):
				events <- agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: "invalid_request", ErrorText: connectErr.Error()}
			default:
				events <- agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: "server_error", ErrorText: fmt.Sprintf("openai: max retries exceeded: %v", connectErr)}
			}
			return
		}

		p.processStream(ctx, stream, events)
	}()

	return events, nil
}

type openaiToolCallBuf struct {
	id, name string
	args     strings.Builder
	started  bool
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, events chan<- agent.StreamEvent) {
	defer stream.Close()

	calls := make(map[int]*openaiToolCallBuf)
	var usage agent.Usage

	finish := func(reason string) {
		for _, tc := range calls {
			if tc.started {
				events <- agent.StreamEvent{
					Type:         agent.EventToolCallComplete,
					ToolCallID:   tc.id,
					ToolCallName: tc.name,
					ToolCallArgs: json.RawMessage(tc.args.String()),
				}
			}
		}
		if usage.InputTokens > 0 || usage.OutputTokens > 0 {
			events <- agent.StreamEvent{Type: agent.EventUsage, Usage: usage}
		}
		stop := agent.StopEndTurn
		if reason == "tool_calls" {
			stop = agent.StopToolUse
		} else if reason == "length" {
			stop = agent.StopMaxTokens
		}
		events <- agent.StreamEvent{Type: agent.EventStop, Stop: stop}
	}

	for {
		select {
		case <-ctx.Done():
			events <- agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: "timeout", ErrorText: ctx.Err().Error()}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				finish("stop")
				return
			}
			events <- agent.StreamEvent{Type: agent.EventStreamError, ErrorKind: "server_error", ErrorText: err.Error()}
			return
		}

		if resp.Usage != nil {
			usage.InputTokens = int64(resp.Usage.PromptTokens)
			usage.OutputTokens = int64(resp.Usage.CompletionTokens)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			events <- agent.StreamEvent{Type: agent.EventTextDelta, TextDelta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			buf, ok := calls[index]
			if !ok {
				buf = &openaiToolCallBuf{}
				calls[index] = buf
			}
			if tc.ID != "" {
				buf.id = tc.ID
			}
			if tc.Function.Name != "" {
				buf.name = tc.Function.Name
			}
			if !buf.started && buf.id != "" && buf.name != "" {
				buf.started = true
				events <- agent.StreamEvent{Type: agent.EventToolCallStart, ToolCallID: buf.id, ToolCallName: buf.name}
			}
			if tc.Function.Arguments != "" {
				buf.args.WriteString(tc.Function.Arguments)
				if buf.started {
					events <- agent.StreamEvent{Type: agent.EventToolCallArgsDelta, ToolCallID: buf.id, ArgsFragment: tc.Function.Arguments}
				}
			}
		}

		if choice.FinishReason != "" {
			finish(string(choice.FinishReason))
			return
		}
	}
}

func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		if len(msg.ToolResults) > 0 {
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
			continue
		}

		oaiMsg := openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				}
			}
		}
		result = append(result, oaiMsg)
	}

	return result
}

func (p *OpenAIProvider) convertTools(tools []agent.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schemaMap,
			},
		}
	}
	return result
}

func (p *OpenAIProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
