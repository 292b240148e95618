package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// HistoryStore is the subset of the History Store Gateway load_full_history
// depends on. internal/history.Store satisfies this.
type HistoryStore interface {
	Search(ctx context.Context, terms []string, toolNames []string, limit int) ([]models.ConversationMessage, error)
}

const loadFullHistorySchemaJSON = `{
	"type": "object",
	"properties": {
		"search_terms": {"type": "array", "items": {"type": "string"}},
		"tools": {"type": "array", "items": {"type": "string"}, "description": "Restrict to turns whose tool-call array contains any of these tool names"},
		"limit": {"type": "integer", "minimum": 1}
	}
}`

// LoadFullHistoryTool implements load_full_history: invokes the History
// Store's search to resurrect context across turns — the mechanism
// "restore the task I just deleted" relies on, since a matched
// delete_task turn's recorded ToolResults carries the pre-delete
// snapshot.
type LoadFullHistoryTool struct {
	history HistoryStore
	schema  *jsonschema.Schema
}

// NewLoadFullHistoryTool constructs the load_full_history tool bound to
// history.
func NewLoadFullHistoryTool(history HistoryStore) *LoadFullHistoryTool {
	return &LoadFullHistoryTool{history: history, schema: CompileSchema("load_full_history", json.RawMessage(loadFullHistorySchemaJSON))}
}

func (t *LoadFullHistoryTool) Name() string { return "load_full_history" }
func (t *LoadFullHistoryTool) Description() string {
	return "Search the full conversation history by keyword or tool name, to recover context (e.g. a prior delete's pre-delete snapshot)."
}
func (t *LoadFullHistoryTool) Schema() json.RawMessage {
	return json.RawMessage(loadFullHistorySchemaJSON)
}

func (t *LoadFullHistoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		SearchTerms []string `json:"search_terms"`
		Tools       []string `json:"tools"`
		Limit       int      `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	matches, err := t.history.Search(ctx, input.SearchTerms, input.Tools, input.Limit)
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	return envelope(models.Ok(fmt.Sprintf("Found %d matching turns", len(matches)), matches, nil)), nil
}
