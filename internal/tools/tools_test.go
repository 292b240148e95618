package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// fakeStore is a minimal in-memory TaskStore (fixed return values per
// call, no persistence semantics beyond what each test needs).
type fakeStore struct {
	createErr error
	created   models.Task

	createManyResult []models.Task
	createManyErrs    []error

	getTask  models.Task
	getFound bool
	getErr   error

	updateResult models.Task
	updateErr    error

	updateManyResult []models.Task
	updateManyErrs    []error

	deleteErr error

	deleteManyErrs []error

	listResult []models.Task
	listErr    error

	searchResult []models.Task
	searchErr    error

	stats    models.TaskStats
	statsErr error
}

func (f *fakeStore) Create(ctx context.Context, task models.Task) (models.Task, error) {
	if f.createErr != nil {
		return models.Task{}, f.createErr
	}
	out := f.created
	if out.Title == "" {
		out = task
		out.ID = "created-1"
	}
	return out, nil
}

func (f *fakeStore) CreateMany(ctx context.Context, tasks []models.Task) ([]models.Task, []error) {
	return f.createManyResult, f.createManyErrs
}

func (f *fakeStore) Get(ctx context.Context, id string) (models.Task, bool, error) {
	return f.getTask, f.getFound, f.getErr
}

func (f *fakeStore) Update(ctx context.Context, id string, upd models.TaskUpdate) (models.Task, error) {
	return f.updateResult, f.updateErr
}

func (f *fakeStore) UpdateMany(ctx context.Context, ids []string, upd models.TaskUpdate) ([]models.Task, []error) {
	return f.updateManyResult, f.updateManyErrs
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	return f.deleteErr
}

func (f *fakeStore) DeleteMany(ctx context.Context, ids []string) []error {
	return f.deleteManyErrs
}

func (f *fakeStore) List(ctx context.Context, filter models.TaskFilter, limit int) ([]models.Task, error) {
	return f.listResult, f.listErr
}

func (f *fakeStore) Search(ctx context.Context, terms []string, filter models.TaskFilter, limit int) ([]models.Task, error) {
	return f.searchResult, f.searchErr
}

func (f *fakeStore) Stats(ctx context.Context, now time.Time) (models.TaskStats, error) {
	return f.stats, f.statsErr
}

type fakeHistory struct {
	result []models.ConversationMessage
	err    error
}

func (f *fakeHistory) Search(ctx context.Context, terms []string, toolNames []string, limit int) ([]models.ConversationMessage, error) {
	return f.result, f.err
}

func decodeEnv(t *testing.T, content string) models.ToolEnvelope {
	t.Helper()
	var env models.ToolEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestCreateTaskTool_Success(t *testing.T) {
	store := &fakeStore{created: models.Task{ID: "t1", Title: "Buy milk"}}
	tool := NewCreateTaskTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"title": "Buy milk"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got message %q", env.Message)
	}
	if !strings.Contains(env.Message, "Buy milk") {
		t.Errorf("Message = %q, want to contain title", env.Message)
	}
}

func TestCreateTaskTool_MissingTitle(t *testing.T) {
	tool := NewCreateTaskTool(&fakeStore{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for missing required title")
	}
}

func TestCreateTaskTool_InvalidDeadline(t *testing.T) {
	tool := NewCreateTaskTool(&fakeStore{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"title": "x", "deadline": "not-a-date"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for invalid deadline")
	}
}

func TestCreateMultipleTasksTool_PartialFailure(t *testing.T) {
	store := &fakeStore{
		createManyResult: []models.Task{{ID: "a"}},
		createManyErrs:    []error{nil, context.DeadlineExceeded},
	}
	tool := NewCreateMultipleTasksTool(store)
	params := json.RawMessage(`{"tasks": [{"title": "a"}, {"title": "b"}]}`)
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success envelope with per-item failures noted, got %q", env.Message)
	}
	if !strings.Contains(env.Message, "1 of 2") {
		t.Errorf("Message = %q, want to report 1 of 2 created", env.Message)
	}
	if !strings.Contains(env.Message, "failures") {
		t.Errorf("Message = %q, want to mention failures", env.Message)
	}
}

func TestUpdateTaskTool_ByID(t *testing.T) {
	store := &fakeStore{updateResult: models.Task{ID: "t1", Title: "Renamed"}}
	tool := NewUpdateTaskTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"id": "t1", "title": "Renamed"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
}

func TestUpdateTaskTool_AmbiguousQuery(t *testing.T) {
	store := &fakeStore{searchResult: []models.Task{
		{ID: "t1", Title: "Buy milk"},
		{ID: "t2", Title: "Buy milk too"},
	}}
	tool := NewUpdateTaskTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "milk", "status": "completed"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Fatal("expected failure for ambiguous query")
	}
	if !strings.Contains(env.Message, "t1") || !strings.Contains(env.Message, "t2") {
		t.Errorf("Message = %q, want both candidates named", env.Message)
	}
}

func TestUpdateTaskTool_NoMatch(t *testing.T) {
	store := &fakeStore{searchResult: nil}
	tool := NewUpdateTaskTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "nonexistent"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Fatal("expected failure for zero matches")
	}
	if !strings.Contains(env.Message, "no task matches") {
		t.Errorf("Message = %q, want 'no task matches'", env.Message)
	}
}

func TestUpdateTaskTool_NeitherIDNorQuery(t *testing.T) {
	tool := NewUpdateTaskTool(&fakeStore{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"status": "completed"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Fatal("expected failure when neither id nor query given")
	}
}

func TestUpdateMultipleTasksTool_PartialFailure(t *testing.T) {
	store := &fakeStore{
		updateManyResult: []models.Task{{ID: "a"}},
		updateManyErrs:    []error{nil, context.DeadlineExceeded},
	}
	tool := NewUpdateMultipleTasksTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"ids": ["a", "b"], "status": "completed"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !strings.Contains(env.Message, "1 of 2") {
		t.Errorf("Message = %q, want to report 1 of 2 updated", env.Message)
	}
	if !strings.Contains(env.Message, "b:") {
		t.Errorf("Message = %q, want the failing id named", env.Message)
	}
}

func TestDeleteTaskTool_ByID(t *testing.T) {
	store := &fakeStore{getTask: models.Task{ID: "t1", Title: "Buy milk"}, getFound: true}
	tool := NewDeleteTaskTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"id": "t1"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	var snapshot models.Task
	if err := json.Unmarshal(env.Payload, &snapshot); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if snapshot.Title != "Buy milk" {
		t.Errorf("payload title = %q, want pre-delete snapshot", snapshot.Title)
	}
}

func TestDeleteTaskTool_NotFound(t *testing.T) {
	store := &fakeStore{getFound: false}
	tool := NewDeleteTaskTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"id": "ghost"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Fatal("expected failure for not-found id")
	}
}

func TestDeleteMultipleTasksTool_ReturnsOnlySuccessfulSnapshots(t *testing.T) {
	store := &fakeStore{
		getTask:        models.Task{ID: "a", Title: "A"},
		getFound:       true,
		deleteManyErrs: []error{nil, context.DeadlineExceeded},
	}
	tool := NewDeleteMultipleTasksTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"ids": ["a", "b"]}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !strings.Contains(env.Message, "failures") {
		t.Errorf("Message = %q, want failures mentioned", env.Message)
	}
}

func TestListTasksTool_Filters(t *testing.T) {
	store := &fakeStore{listResult: []models.Task{{ID: "1"}, {ID: "2"}}}
	tool := NewListTasksTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"status": "todo", "priority": "high"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	if !strings.Contains(env.Message, "2 tasks") {
		t.Errorf("Message = %q, want count of 2", env.Message)
	}
}

func TestListTasksTool_InvalidDateRange(t *testing.T) {
	tool := NewListTasksTool(&fakeStore{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"scheduled_from": "garbage"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for invalid scheduled_from")
	}
}

func TestSearchTasksTool_AttachesChangeView(t *testing.T) {
	store := &fakeStore{searchResult: []models.Task{{ID: "t1", Title: "Buy milk"}}}
	tool := NewSearchTasksTool(store)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "milk"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	if env.UICommand == nil {
		t.Fatal("expected a ui_command attached to search results")
	}
	var ui struct {
		Type        string `json:"type"`
		SearchQuery string `json:"search_query"`
	}
	if err := json.Unmarshal(env.UICommand, &ui); err != nil {
		t.Fatalf("decode ui_command: %v", err)
	}
	if ui.SearchQuery != "milk" {
		t.Errorf("ui.SearchQuery = %q, want %q", ui.SearchQuery, "milk")
	}
}

func TestSearchTasksTool_MissingQuery(t *testing.T) {
	tool := NewSearchTasksTool(&fakeStore{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for missing required query")
	}
}

func TestGetTaskStatsTool_UsesInjectedClock(t *testing.T) {
	store := &fakeStore{stats: models.TaskStats{Total: 5, Missed: 1, DueToday: 2}}
	tool := NewGetTaskStatsTool(store)
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tool.now = func() time.Time { return fixed }

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	if !strings.Contains(env.Message, "5 tasks total") {
		t.Errorf("Message = %q, want stats summary", env.Message)
	}
}

func TestChangeUIViewTool_NoStoreAccess(t *testing.T) {
	tool := NewChangeUIViewTool()
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"view_mode": "weekly"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	if env.UICommand == nil {
		t.Fatal("expected a ui_command")
	}
}

func TestChangeUIViewTool_InvalidViewMode(t *testing.T) {
	tool := NewChangeUIViewTool()
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"view_mode": "nonsense"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for view_mode outside the enum")
	}
}

func TestChangeUIViewTool_MissingViewMode(t *testing.T) {
	tool := NewChangeUIViewTool()
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for missing required view_mode")
	}
}

func TestShowChoicesTool_BuildsChoices(t *testing.T) {
	tool := NewShowChoicesTool()
	params := json.RawMessage(`{"title": "Which one?", "choices": [{"id": "1", "label": "First", "value": "1"}, {"id": "2", "label": "Second", "value": "2"}]}`)
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	if !strings.Contains(env.Message, "2 choices") {
		t.Errorf("Message = %q, want count of choices", env.Message)
	}
}

func TestShowChoicesTool_EmptyChoicesRejected(t *testing.T) {
	tool := NewShowChoicesTool()
	params := json.RawMessage(`{"title": "Which one?", "choices": []}`)
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if env.Success {
		t.Error("expected failure for empty choices array")
	}
}

func TestLoadFullHistoryTool_Delegates(t *testing.T) {
	hist := &fakeHistory{result: []models.ConversationMessage{{ID: 1}, {ID: 2}}}
	tool := NewLoadFullHistoryTool(hist)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"search_terms": ["milk"]}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	env := decodeEnv(t, result.Content)
	if !env.Success {
		t.Fatalf("expected success, got %q", env.Message)
	}
	if !strings.Contains(env.Message, "2 matching turns") {
		t.Errorf("Message = %q, want count of matches", env.Message)
	}
}

func TestResolveTaskID_PrefersExplicitID(t *testing.T) {
	store := &fakeStore{searchResult: []models.Task{{ID: "should-not-be-used"}}}
	id, failEnv := resolveTaskID(context.Background(), store, "explicit-id", "")
	if failEnv != nil {
		t.Fatalf("unexpected failure: %v", failEnv.Message)
	}
	if id != "explicit-id" {
		t.Errorf("id = %q, want %q (search should not run)", id, "explicit-id")
	}
}

func TestRegisterAll_RegistersTwelveTools(t *testing.T) {
	registry := agent.NewToolRegistry()
	RegisterAll(registry, &fakeStore{}, &fakeHistory{})
	want := []string{
		"create_task", "create_multiple_tasks",
		"update_task", "update_multiple_tasks",
		"delete_task", "delete_multiple_tasks",
		"list_tasks", "search_tasks", "get_task_stats",
		"change_ui_view", "show_choices", "load_full_history",
	}
	all := registry.AsLLMTools()
	if len(all) != len(want) {
		t.Fatalf("registered %d tools, want %d", len(all), len(want))
	}
	for _, w := range want {
		if _, ok := registry.Get(w); !ok {
			t.Errorf("missing registered tool %q", w)
		}
	}
}
