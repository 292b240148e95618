package tools

import "github.com/tanmaycode1/voiceagent/internal/agent"

// RegisterAll registers the full tool set into registry, bound to
// taskStore and historyStore.
func RegisterAll(registry *agent.ToolRegistry, taskStore TaskStore, historyStore HistoryStore) {
	registry.Register(NewCreateTaskTool(taskStore))
	registry.Register(NewCreateMultipleTasksTool(taskStore))
	registry.Register(NewUpdateTaskTool(taskStore))
	registry.Register(NewUpdateMultipleTasksTool(taskStore))
	registry.Register(NewDeleteTaskTool(taskStore))
	registry.Register(NewDeleteMultipleTasksTool(taskStore))
	registry.Register(NewListTasksTool(taskStore))
	registry.Register(NewSearchTasksTool(taskStore))
	registry.Register(NewGetTaskStatsTool(taskStore))
	registry.Register(NewChangeUIViewTool())
	registry.Register(NewShowChoicesTool())
	registry.Register(NewLoadFullHistoryTool(historyStore))
}
