package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const searchTasksSchemaJSON = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Substring to match against title, description, or notes"},
		"status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"limit": {"type": "integer", "minimum": 1}
	},
	"required": ["query"]
}`

// SearchTasksTool implements search_tasks: a substring search whose result
// carries a change_view UI command with the matching ids and the query,
// so the client can switch to a filtered list view.
type SearchTasksTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewSearchTasksTool constructs the search_tasks tool bound to store.
func NewSearchTasksTool(store TaskStore) *SearchTasksTool {
	return &SearchTasksTool{store: store, schema: CompileSchema("search_tasks", json.RawMessage(searchTasksSchemaJSON))}
}

func (t *SearchTasksTool) Name() string { return "search_tasks" }
func (t *SearchTasksTool) Description() string {
	return "Search tasks by substring and switch the client's view to show the results."
}
func (t *SearchTasksTool) Schema() json.RawMessage { return json.RawMessage(searchTasksSchemaJSON) }

func (t *SearchTasksTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		Query    string `json:"query"`
		Status   string `json:"status"`
		Priority string `json:"priority"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	filter := models.TaskFilter{
		Status:   models.TaskStatus(input.Status),
		Priority: models.TaskPriority(input.Priority),
	}
	matches, err := t.store.Search(ctx, splitTerms(input.Query), filter, input.Limit)
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	ui := models.ChangeView{
		ViewMode:      models.ViewList,
		SearchResults: ids,
		SearchQuery:   input.Query,
	}
	return envelope(models.Ok(fmt.Sprintf("Found %d tasks matching %q", len(matches), input.Query), matches, ui)), nil
}
