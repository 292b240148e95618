package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const listTasksSchemaJSON = `{
	"type": "object",
	"properties": {
		"status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"scheduled_from": {"type": "string", "description": "ISO8601 timestamp, inclusive lower bound"},
		"scheduled_to": {"type": "string", "description": "ISO8601 timestamp, exclusive upper bound"},
		"limit": {"type": "integer", "minimum": 1}
	}
}`

// ListTasksTool implements list_tasks: filtered enumeration.
type ListTasksTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewListTasksTool constructs the list_tasks tool bound to store.
func NewListTasksTool(store TaskStore) *ListTasksTool {
	return &ListTasksTool{store: store, schema: CompileSchema("list_tasks", json.RawMessage(listTasksSchemaJSON))}
}

func (t *ListTasksTool) Name() string            { return "list_tasks" }
func (t *ListTasksTool) Description() string     { return "List tasks, optionally filtered by status, priority, or scheduled-date range." }
func (t *ListTasksTool) Schema() json.RawMessage { return json.RawMessage(listTasksSchemaJSON) }

func (t *ListTasksTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		Status        string `json:"status"`
		Priority      string `json:"priority"`
		ScheduledFrom string `json:"scheduled_from"`
		ScheduledTo   string `json:"scheduled_to"`
		Limit         int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	filter := models.TaskFilter{
		Status:   models.TaskStatus(input.Status),
		Priority: models.TaskPriority(input.Priority),
	}
	if input.ScheduledFrom != "" {
		from, err := parseRFC3339(input.ScheduledFrom)
		if err != nil {
			return envelope(models.Fail(fmt.Sprintf("invalid scheduled_from: %v", err))), nil
		}
		filter.ScheduledFrom = &from
	}
	if input.ScheduledTo != "" {
		to, err := parseRFC3339(input.ScheduledTo)
		if err != nil {
			return envelope(models.Fail(fmt.Sprintf("invalid scheduled_to: %v", err))), nil
		}
		filter.ScheduledTo = &to
	}

	tasks, err := t.store.List(ctx, filter, input.Limit)
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	return envelope(models.Ok(fmt.Sprintf("Found %d tasks", len(tasks)), tasks, nil)), nil
}
