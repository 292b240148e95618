package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const changeUIViewSchemaJSON = `{
	"type": "object",
	"properties": {
		"view_mode": {"type": "string", "enum": ["daily", "weekly", "monthly", "list"]},
		"target_date": {"type": "string", "description": "ISO date"},
		"sort_by": {"type": "string"},
		"sort_order": {"type": "string"},
		"filter_status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
		"filter_priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]}
	},
	"required": ["view_mode"]
}`

// ChangeUIViewTool implements change_ui_view: a pure ui_command with no
// task-store side effects.
type ChangeUIViewTool struct {
	schema *jsonschema.Schema
}

// NewChangeUIViewTool constructs the change_ui_view tool.
func NewChangeUIViewTool() *ChangeUIViewTool {
	return &ChangeUIViewTool{schema: CompileSchema("change_ui_view", json.RawMessage(changeUIViewSchemaJSON))}
}

func (t *ChangeUIViewTool) Name() string            { return "change_ui_view" }
func (t *ChangeUIViewTool) Description() string     { return "Switch the client's view (daily, weekly, monthly, or list), optionally filtered or sorted." }
func (t *ChangeUIViewTool) Schema() json.RawMessage { return json.RawMessage(changeUIViewSchemaJSON) }

func (t *ChangeUIViewTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		ViewMode       string `json:"view_mode"`
		TargetDate     string `json:"target_date"`
		SortBy         string `json:"sort_by"`
		SortOrder      string `json:"sort_order"`
		FilterStatus   string `json:"filter_status"`
		FilterPriority string `json:"filter_priority"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	ui := models.ChangeView{
		ViewMode:       models.ViewMode(input.ViewMode),
		SortBy:         input.SortBy,
		SortOrder:      input.SortOrder,
		FilterStatus:   models.TaskStatus(input.FilterStatus),
		FilterPriority: models.TaskPriority(input.FilterPriority),
	}
	if input.TargetDate != "" {
		ui.TargetDate = &input.TargetDate
	}
	return envelope(models.Ok(fmt.Sprintf("Showing %s", input.ViewMode), nil, ui)), nil
}

const showChoicesSchemaJSON = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"choices": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"label": {"type": "string"},
					"description": {"type": "string"},
					"value": {"type": "string"}
				},
				"required": ["id", "label", "value"]
			},
			"minItems": 1
		}
	},
	"required": ["title", "choices"]
}`

// ShowChoicesTool implements show_choices: a pure ui_command of type
// show_choices, no side effects.
type ShowChoicesTool struct {
	schema *jsonschema.Schema
}

// NewShowChoicesTool constructs the show_choices tool.
func NewShowChoicesTool() *ShowChoicesTool {
	return &ShowChoicesTool{schema: CompileSchema("show_choices", json.RawMessage(showChoicesSchemaJSON))}
}

func (t *ShowChoicesTool) Name() string            { return "show_choices" }
func (t *ShowChoicesTool) Description() string     { return "Present the user with a disambiguation prompt over a list of choices." }
func (t *ShowChoicesTool) Schema() json.RawMessage { return json.RawMessage(showChoicesSchemaJSON) }

func (t *ShowChoicesTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	var input struct {
		Title   string         `json:"title"`
		Choices []models.Choice `json:"choices"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}

	ui := models.ShowChoices{Title: input.Title, Choices: input.Choices}
	return envelope(models.Ok(fmt.Sprintf("Presenting %d choices", len(input.Choices)), nil, ui)), nil
}
