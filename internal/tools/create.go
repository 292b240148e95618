package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/internal/datetime"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const createTaskSchemaJSON = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "description": "Short task title"},
		"description": {"type": "string", "description": "Optional longer description"},
		"notes": {"type": "string", "description": "Optional free-form notes"},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
		"scheduled_date": {"type": "string", "description": "ISO8601 timestamp; defaults to today at noon local if omitted"},
		"deadline": {"type": "string", "description": "ISO8601 timestamp"}
	},
	"required": ["title"]
}`

// taskFields is the shared shape create_task/create_multiple_tasks/
// update_task/update_multiple_tasks decode a task's mutable fields from.
type taskFields struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Notes         string `json:"notes"`
	Priority      string `json:"priority"`
	Status        string `json:"status"`
	ScheduledDate string `json:"scheduled_date"`
	Deadline      string `json:"deadline"`
}

func (f taskFields) toTask() (models.Task, error) {
	task := models.Task{
		Title:       f.Title,
		Description: f.Description,
		Notes:       f.Notes,
		Priority:    models.TaskPriority(f.Priority),
		Status:      models.TaskStatus(f.Status),
	}
	if f.ScheduledDate != "" {
		t, err := parseRFC3339(f.ScheduledDate)
		if err != nil {
			return models.Task{}, fmt.Errorf("invalid scheduled_date: %w", err)
		}
		task.ScheduledDate = t
	}
	if f.Deadline != "" {
		t, err := parseRFC3339(f.Deadline)
		if err != nil {
			return models.Task{}, fmt.Errorf("invalid deadline: %w", err)
		}
		task.Deadline = &t
	}
	return task, nil
}

// CreateTaskTool implements create_task: insert a single task.
type CreateTaskTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewCreateTaskTool constructs the create_task tool bound to store.
func NewCreateTaskTool(store TaskStore) *CreateTaskTool {
	return &CreateTaskTool{store: store, schema: CompileSchema("create_task", json.RawMessage(createTaskSchemaJSON))}
}

func (t *CreateTaskTool) Name() string        { return "create_task" }
func (t *CreateTaskTool) Description() string { return "Create a single new task." }
func (t *CreateTaskTool) Schema() json.RawMessage {
	return json.RawMessage(createTaskSchemaJSON)
}

func (t *CreateTaskTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var fields taskFields
	if err := json.Unmarshal(params, &fields); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	task, err := fields.toTask()
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	created, err := t.store.Create(ctx, task)
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	return envelope(models.Ok(fmt.Sprintf("Created %q scheduled for %s", created.Title, datetime.FormatSpoken(created.ScheduledDate, nil)), created, nil)), nil
}

const createMultipleTasksSchemaJSON = `{
	"type": "object",
	"properties": {
		"tasks": {
			"type": "array",
			"items": ` + createTaskSchemaJSON + `,
			"minItems": 1
		}
	},
	"required": ["tasks"]
}`

// CreateMultipleTasksTool implements create_multiple_tasks: insert many
// tasks in one call, best-effort per item.
type CreateMultipleTasksTool struct {
	store  TaskStore
	schema *jsonschema.Schema
}

// NewCreateMultipleTasksTool constructs the create_multiple_tasks tool.
func NewCreateMultipleTasksTool(store TaskStore) *CreateMultipleTasksTool {
	return &CreateMultipleTasksTool{store: store, schema: CompileSchema("create_multiple_tasks", json.RawMessage(createMultipleTasksSchemaJSON))}
}

func (t *CreateMultipleTasksTool) Name() string { return "create_multiple_tasks" }
func (t *CreateMultipleTasksTool) Description() string {
	return "Create several new tasks in one call."
}
func (t *CreateMultipleTasksTool) Schema() json.RawMessage {
	return json.RawMessage(createMultipleTasksSchemaJSON)
}

func (t *CreateMultipleTasksTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		Tasks []taskFields `json:"tasks"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	tasks := make([]models.Task, len(input.Tasks))
	for i, f := range input.Tasks {
		task, err := f.toTask()
		if err != nil {
			return envelope(models.Fail(fmt.Sprintf("task %d: %v", i, err))), nil
		}
		tasks[i] = task
	}

	created, errs := t.store.CreateMany(ctx, tasks)
	succeeded, failed := 0, 0
	var failures []string
	for i, err := range errs {
		if err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%d: %v", i, err))
			continue
		}
		succeeded++
	}

	message := fmt.Sprintf("Created %d of %d tasks", succeeded, len(tasks))
	if failed > 0 {
		message += fmt.Sprintf(" (failures: %v)", failures)
	}
	return envelope(models.Ok(message, created, nil)), nil
}
