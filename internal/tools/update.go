package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/internal/datetime"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// updateFields carries only the fields the caller wants to change, mirrored
// from models.TaskUpdate with JSON tags and a ClearDeadline flag so "omit
// deadline" (leave as is) is distinguishable from "null deadline" (clear).
type updateFields struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Notes         *string `json:"notes"`
	Priority      *string `json:"priority"`
	Status        *string `json:"status"`
	ScheduledDate *string `json:"scheduled_date"`
	Deadline      *string `json:"deadline"`
	ClearDeadline bool    `json:"clear_deadline"`
}

func (f updateFields) toTaskUpdate() (models.TaskUpdate, error) {
	upd := models.TaskUpdate{
		Title:         f.Title,
		Description:   f.Description,
		Notes:         f.Notes,
		ClearDeadline: f.ClearDeadline,
	}
	if f.Priority != nil {
		p := models.TaskPriority(*f.Priority)
		upd.Priority = &p
	}
	if f.Status != nil {
		s := models.TaskStatus(*f.Status)
		upd.Status = &s
	}
	if f.ScheduledDate != nil {
		t, err := parseRFC3339(*f.ScheduledDate)
		if err != nil {
			return models.TaskUpdate{}, fmt.Errorf("invalid scheduled_date: %w", err)
		}
		upd.ScheduledDate = &t
	}
	if f.Deadline != nil {
		t, err := parseRFC3339(*f.Deadline)
		if err != nil {
			return models.TaskUpdate{}, fmt.Errorf("invalid deadline: %w", err)
		}
		upd.Deadline = &t
	}
	return upd, nil
}

const updateFieldsSchemaFragment = `
		"title": {"type": "string"},
		"description": {"type": "string"},
		"notes": {"type": "string"},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
		"scheduled_date": {"type": "string"},
		"deadline": {"type": "string"},
		"clear_deadline": {"type": "boolean"}`

const updateTaskSchemaJSON = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "description": "Task id, if known"},
		"query": {"type": "string", "description": "Free-text match against title/description/notes, used when id is not known"},` + updateFieldsSchemaFragment + `
	}
}`

// UpdateTaskTool implements update_task: patch by id or by search-match.
// A query that resolves to zero or more than one task
// returns success:false listing the candidates rather than guessing.
type UpdateTaskTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewUpdateTaskTool constructs the update_task tool bound to store.
func NewUpdateTaskTool(store TaskStore) *UpdateTaskTool {
	return &UpdateTaskTool{store: store, schema: CompileSchema("update_task", json.RawMessage(updateTaskSchemaJSON))}
}

func (t *UpdateTaskTool) Name() string            { return "update_task" }
func (t *UpdateTaskTool) Description() string     { return "Update a task identified by id or by a free-text search match." }
func (t *UpdateTaskTool) Schema() json.RawMessage { return json.RawMessage(updateTaskSchemaJSON) }

func (t *UpdateTaskTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		ID    string `json:"id"`
		Query string `json:"query"`
		updateFields
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	id, failEnv := resolveTaskID(ctx, t.store, input.ID, input.Query)
	if failEnv != nil {
		return envelope(*failEnv), nil
	}

	upd, err := input.updateFields.toTaskUpdate()
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	updated, err := t.store.Update(ctx, id, upd)
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	message := fmt.Sprintf("Updated %q", updated.Title)
	if updated.Deadline != nil {
		message += fmt.Sprintf(", due %s", datetime.FormatRelativeTime(*updated.Deadline, time.Now()))
	}
	return envelope(models.Ok(message, updated, nil)), nil
}

const updateMultipleTasksSchemaJSON = `{
	"type": "object",
	"properties": {
		"ids": {"type": "array", "items": {"type": "string"}, "minItems": 1},` + updateFieldsSchemaFragment + `
	},
	"required": ["ids"]
}`

// UpdateMultipleTasksTool implements update_multiple_tasks: apply the same
// patch to a set of ids, best-effort per item.
type UpdateMultipleTasksTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewUpdateMultipleTasksTool constructs the update_multiple_tasks tool.
func NewUpdateMultipleTasksTool(store TaskStore) *UpdateMultipleTasksTool {
	return &UpdateMultipleTasksTool{store: store, schema: CompileSchema("update_multiple_tasks", json.RawMessage(updateMultipleTasksSchemaJSON))}
}

func (t *UpdateMultipleTasksTool) Name() string { return "update_multiple_tasks" }
func (t *UpdateMultipleTasksTool) Description() string {
	return "Apply the same patch to several tasks by id."
}
func (t *UpdateMultipleTasksTool) Schema() json.RawMessage {
	return json.RawMessage(updateMultipleTasksSchemaJSON)
}

func (t *UpdateMultipleTasksTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		IDs []string `json:"ids"`
		updateFields
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	upd, err := input.updateFields.toTaskUpdate()
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	updated, errs := t.store.UpdateMany(ctx, input.IDs, upd)
	succeeded, failed := 0, 0
	var failures []string
	for i, err := range errs {
		if err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", input.IDs[i], err))
			continue
		}
		succeeded++
	}
	message := fmt.Sprintf("Updated %d of %d tasks", succeeded, len(input.IDs))
	if failed > 0 {
		message += fmt.Sprintf(" (failures: %v)", failures)
	}
	return envelope(models.Ok(message, updated, nil)), nil
}
