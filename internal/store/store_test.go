package store

import (
	"context"
	"testing"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateDefaultsIDAndScheduledDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, models.Task{Title: "buy milk"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if task.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if task.ScheduledDate.IsZero() {
		t.Error("expected ScheduledDate to default to today")
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", task.Priority)
	}
	if task.Status != models.StatusTodo {
		t.Errorf("expected default status todo, got %s", task.Status)
	}
}

func TestCreateRejectsInvalidPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, models.Task{Title: "buy milk", Priority: models.TaskPriority("critical")})
	if err == nil {
		t.Fatal("expected an error for an invalid priority, got nil")
	}
}

func TestUpdateRejectsInvalidPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, models.Task{Title: "buy milk"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	bad := models.TaskPriority("critical")
	if _, err := s.Update(ctx, task.ID, models.TaskUpdate{Priority: &bad}); err == nil {
		t.Fatal("expected an error for an invalid priority, got nil")
	}
}

func TestGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, models.Task{Title: "write report", Priority: models.PriorityHigh})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, ok, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatal("expected task to be found")
	}
	if got.Title != "write report" || got.Priority != models.PriorityHigh {
		t.Errorf("unexpected task: %+v", got)
	}

	_, ok, err = s.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Error("expected task not to be found")
	}
}

func TestUpdateSetsCompletedAtOnTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, models.Task{Title: "ship feature"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	completed := models.StatusCompleted
	updated, err := s.Update(ctx, task.ID, models.TaskUpdate{Status: &completed})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set on completion")
	}

	todo := models.StatusTodo
	reverted, err := s.Update(ctx, task.ID, models.TaskUpdate{Status: &todo})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if reverted.CompletedAt != nil {
		t.Error("expected CompletedAt to be cleared when leaving completed")
	}
}

func TestUpdateClearDeadline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	deadline := time.Now().Add(24 * time.Hour)
	task, err := s.Create(ctx, models.Task{Title: "renew license", Deadline: &deadline})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if task.Deadline == nil {
		t.Fatal("expected deadline to be set")
	}

	updated, err := s.Update(ctx, task.ID, models.TaskUpdate{ClearDeadline: true})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Deadline != nil {
		t.Error("expected deadline to be cleared")
	}
}

func TestDeleteRemovesTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, models.Task{Title: "temp"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, ok, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Error("expected task to be gone after delete")
	}
	if err := s.Delete(ctx, task.ID); err == nil {
		t.Error("expected error deleting already-deleted task")
	}
}

func TestCreateManyIsBestEffortPerItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tasks := []models.Task{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	created, errs := s.CreateMany(ctx, tasks)
	if len(created) != 3 || len(errs) != 3 {
		t.Fatalf("expected 3 results, got %d/%d", len(created), len(errs))
	}
	for i, err := range errs {
		if err != nil {
			t.Errorf("unexpected error for item %d: %v", i, err)
		}
	}
	for _, task := range created {
		if task.ID == "" {
			t.Error("expected each created task to have an ID")
		}
	}
}

func TestUpdateManyReportsPerItemErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, models.Task{Title: "real"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	title := "renamed"
	_, errs := s.UpdateMany(ctx, []string{task.ID, "missing-id"}, models.TaskUpdate{Title: &title})
	if len(errs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(errs))
	}
	if errs[0] != nil {
		t.Errorf("expected first update to succeed, got %v", errs[0])
	}
	if errs[1] == nil {
		t.Error("expected second update to fail for missing id")
	}
}

func TestListFiltersByStatusAndPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, models.Task{Title: "a", Priority: models.PriorityHigh}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Create(ctx, models.Task{Title: "b", Priority: models.PriorityLow}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	results, err := s.List(ctx, models.TaskFilter{Priority: models.PriorityHigh}, 0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "a" {
		t.Errorf("expected only high-priority task, got %+v", results)
	}
}

func TestSearchMatchesTitleDescriptionNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, models.Task{Title: "buy milk", Description: "from the store"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Create(ctx, models.Task{Title: "unrelated"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	results, err := s.Search(ctx, []string{"milk"}, models.TaskFilter{}, 0)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "buy milk" {
		t.Errorf("expected one match for 'milk', got %+v", results)
	}
}

func TestSearchOrMatchesAcrossTermsRankedByCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, models.Task{Title: "dentist", Description: "dentist appointment tomorrow"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Create(ctx, models.Task{Title: "tomorrow's standup"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Create(ctx, models.Task{Title: "unrelated"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	results, err := s.Search(ctx, []string{"dentist", "tomorrow"}, models.TaskFilter{}, 0)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 OR-matched tasks, got %+v", results)
	}
	if results[0].Title != "dentist" {
		t.Errorf("expected the two-term match ranked first, got %+v", results)
	}
}

func TestStatsCountsByStatusAndPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, models.Task{Title: "a", Priority: models.PriorityHigh}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	completed := models.StatusCompleted
	task, err := s.Create(ctx, models.Task{Title: "b", Priority: models.PriorityLow})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Update(ctx, task.ID, models.TaskUpdate{Status: &completed}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	stats, err := s.Stats(ctx, time.Now())
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("expected total 2, got %d", stats.Total)
	}
	if stats.ByStatus[string(models.StatusCompleted)] != 1 {
		t.Errorf("expected 1 completed task, got %d", stats.ByStatus[string(models.StatusCompleted)])
	}
	if stats.ByPriority[string(models.PriorityHigh)] != 1 {
		t.Errorf("expected 1 high-priority task, got %d", stats.ByPriority[string(models.PriorityHigh)])
	}
}

func TestStatsCountsMissedTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour)
	// A past ScheduledDate with no Deadline is never "missed" — only a past
	// Deadline counts (pkg/models/task.go's Missed).
	if _, err := s.Create(ctx, models.Task{Title: "overdue schedule, no deadline", ScheduledDate: past}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Create(ctx, models.Task{Title: "overdue deadline", Deadline: &past}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	stats, err := s.Stats(ctx, time.Now())
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Missed != 1 {
		t.Errorf("expected 1 missed task (the one with a past deadline), got %d", stats.Missed)
	}
}
