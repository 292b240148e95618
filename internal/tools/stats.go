package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const getTaskStatsSchemaJSON = `{"type": "object", "properties": {}}`

// GetTaskStatsTool implements get_task_stats: aggregate counts by status
// and priority, plus missed and due-today counts.
type GetTaskStatsTool struct {
	store  TaskStore
	schema *jsonschema.Schema
	now    func() time.Time
}

// NewGetTaskStatsTool constructs the get_task_stats tool bound to store.
func NewGetTaskStatsTool(store TaskStore) *GetTaskStatsTool {
	return &GetTaskStatsTool{store: store, schema: CompileSchema("get_task_stats", json.RawMessage(getTaskStatsSchemaJSON)), now: time.Now}
}

func (t *GetTaskStatsTool) Name() string            { return "get_task_stats" }
func (t *GetTaskStatsTool) Description() string     { return "Get aggregate task counts by status and priority, plus missed and due-today counts." }
func (t *GetTaskStatsTool) Schema() json.RawMessage { return json.RawMessage(getTaskStatsSchemaJSON) }

func (t *GetTaskStatsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := ValidateParams(t.schema, params); err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	stats, err := t.store.Stats(ctx, t.now())
	if err != nil {
		return envelope(models.Fail(err.Error())), nil
	}
	return envelope(models.Ok(fmt.Sprintf("%d tasks total, %d missed, %d due today", stats.Total, stats.Missed, stats.DueToday), stats, nil)), nil
}
