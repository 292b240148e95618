package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const deleteTaskSchemaJSON = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "description": "Task id, if known"},
		"query": {"type": "string", "description": "Free-text match against title/description/notes, used when id is not known"}
	}
}`

// DeleteTaskTool implements delete_task: remove by id or by search-match,
// recording the pre-delete snapshot in the response payload so
// load_full_history can later find it and support "restore the task I
// just deleted".
type DeleteTaskTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewDeleteTaskTool constructs the delete_task tool bound to store.
func NewDeleteTaskTool(store TaskStore) *DeleteTaskTool {
	return &DeleteTaskTool{store: store, schema: CompileSchema("delete_task", json.RawMessage(deleteTaskSchemaJSON))}
}

func (t *DeleteTaskTool) Name() string        { return "delete_task" }
func (t *DeleteTaskTool) Description() string { return "Delete a task identified by id or by a free-text search match." }
func (t *DeleteTaskTool) Schema() json.RawMessage {
	return json.RawMessage(deleteTaskSchemaJSON)
}

func (t *DeleteTaskTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		ID    string `json:"id"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	id, failEnv := resolveTaskID(ctx, t.store, input.ID, input.Query)
	if failEnv != nil {
		return envelope(*failEnv), nil
	}

	snapshot, found, err := t.store.Get(ctx, id)
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	if !found {
		return envelope(models.Fail(fmt.Sprintf("task not found: %s", id))), nil
	}
	if err := t.store.Delete(ctx, id); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	return envelope(models.Ok(fmt.Sprintf("Deleted %q", snapshot.Title), snapshot, nil)), nil
}

const deleteMultipleTasksSchemaJSON = `{
	"type": "object",
	"properties": {
		"ids": {"type": "array", "items": {"type": "string"}, "minItems": 1}
	},
	"required": ["ids"]
}`

// DeleteMultipleTasksTool implements delete_multiple_tasks: remove a set
// of ids, best-effort per item, recording every pre-delete snapshot that
// succeeded.
type DeleteMultipleTasksTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewDeleteMultipleTasksTool constructs the delete_multiple_tasks tool.
func NewDeleteMultipleTasksTool(store TaskStore) *DeleteMultipleTasksTool {
	return &DeleteMultipleTasksTool{store: store, schema: CompileSchema("delete_multiple_tasks", json.RawMessage(deleteMultipleTasksSchemaJSON))}
}

func (t *DeleteMultipleTasksTool) Name() string { return "delete_multiple_tasks" }
func (t *DeleteMultipleTasksTool) Description() string {
	return "Delete several tasks by id."
}
func (t *DeleteMultipleTasksTool) Schema() json.RawMessage {
	return json.RawMessage(deleteMultipleTasksSchemaJSON)
}

func (t *DeleteMultipleTasksTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	snapshots := make([]models.Task, 0, len(input.IDs))
	var failures []string
	for _, id := range input.IDs {
		snap, found, err := t.store.Get(ctx, id)
		if err != nil || !found {
			failures = append(failures, id)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	errs := t.store.DeleteMany(ctx, input.IDs)
	deleted := make([]models.Task, 0, len(snapshots))
	for i, err := range errs {
		if err != nil {
			failures = append(failures, input.IDs[i])
			continue
		}
		for _, snap := range snapshots {
			if snap.ID == input.IDs[i] {
				deleted = append(deleted, snap)
				break
			}
		}
	}

	message := fmt.Sprintf("Deleted %d of %d tasks", len(deleted), len(input.IDs))
	if len(failures) > 0 {
		message += fmt.Sprintf(" (failures: %v)", failures)
	}
	return envelope(models.Ok(message, deleted, nil)), nil
}
