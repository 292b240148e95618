// Package store implements the Task Store Gateway: a single-file SQLite
// database behind the create/update/delete/get/list/search/stats
// operations the tool dispatcher calls into, backed by
// modernc.org/sqlite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// Store is the sqlite-backed Task Store Gateway. Access is serialized
// through a store-wide mutex — a write lock for mutations, a read lock for
// get/list/search/stats. Mutations are single-writer; reads may proceed
// concurrently.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates (or reuses) the tasks table in the database at path. path
// may be ":memory:".
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			rowid          INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT NOT NULL UNIQUE,
			title          TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			notes          TEXT NOT NULL DEFAULT '',
			priority       TEXT NOT NULL,
			status         TEXT NOT NULL,
			scheduled_date TEXT NOT NULL,
			deadline       TEXT,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,
			completed_at   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);
		CREATE INDEX IF NOT EXISTS idx_tasks_scheduled_date ON tasks (scheduled_date);
	`)
	if err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists task, filling in ID (if unset), CreatedAt/UpdatedAt, and
// defaulting ScheduledDate to today at 12:00 local when the caller omitted it.
func (s *Store) Create(ctx context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx, s.db, task)
}

func (s *Store) createLocked(ctx context.Context, exec execer, task models.Task) (models.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	} else if !task.Priority.Valid() {
		return models.Task{}, fmt.Errorf("store: invalid priority %q", task.Priority)
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	now := nowFunc()
	if task.ScheduledDate.IsZero() {
		y, m, d := now.Date()
		task.ScheduledDate = time.Date(y, m, d, 12, 0, 0, 0, now.Location())
	}
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := exec.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, notes, priority, status, scheduled_date, deadline, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Notes, string(task.Priority), string(task.Status),
		formatTime(task.ScheduledDate), formatTimePtr(task.Deadline), formatTime(task.CreatedAt), formatTime(task.UpdatedAt), formatTimePtr(task.CompletedAt))
	if err != nil {
		return models.Task{}, fmt.Errorf("store: create task: %w", err)
	}
	return task, nil
}

// CreateMany creates each task in its own implicit statement inside one
// *sql.Tx, so a single item's failure does not abort siblings.
// Bulk operations are best-effort per-item, no cross-item atomicity.
func (s *Store) CreateMany(ctx context.Context, tasks []models.Task) ([]models.Task, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		errs := make([]error, len(tasks))
		for i := range errs {
			errs[i] = fmt.Errorf("store: begin tx: %w", err)
		}
		return make([]models.Task, len(tasks)), errs
	}

	out := make([]models.Task, len(tasks))
	errs := make([]error, len(tasks))
	for i, task := range tasks {
		created, err := s.createLocked(ctx, tx, task)
		out[i] = created
		errs[i] = err
	}
	if err := tx.Commit(); err != nil {
		for i := range errs {
			if errs[i] == nil {
				errs[i] = fmt.Errorf("store: commit: %w", err)
			}
		}
	}
	return out, errs
}

// Get retrieves a task by ID, returning (models.Task{}, false, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (models.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, taskSelectColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("store: get task: %w", err)
	}
	return task, true, nil
}

// Update applies upd's non-nil fields to the task identified by id.
func (s *Store) Update(ctx context.Context, id string, upd models.TaskUpdate) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(ctx, s.db, id, upd)
}

func (s *Store) updateLocked(ctx context.Context, exec execer, id string, upd models.TaskUpdate) (models.Task, error) {
	row := exec.QueryRowContext(ctx, taskSelectColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.Task{}, fmt.Errorf("store: task not found: %s", id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("store: update task: %w", err)
	}

	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.Notes != nil {
		task.Notes = *upd.Notes
	}
	if upd.Priority != nil {
		if !upd.Priority.Valid() {
			return models.Task{}, fmt.Errorf("store: invalid priority %q", *upd.Priority)
		}
		task.Priority = *upd.Priority
	}
	if upd.ScheduledDate != nil {
		task.ScheduledDate = *upd.ScheduledDate
	}
	if upd.Deadline != nil {
		task.Deadline = upd.Deadline
	}
	if upd.ClearDeadline {
		task.Deadline = nil
	}
	if upd.Status != nil {
		prevStatus := task.Status
		task.Status = *upd.Status
		now := nowFunc()
		if task.Status == models.StatusCompleted && prevStatus != models.StatusCompleted {
			task.CompletedAt = &now
		} else if task.Status != models.StatusCompleted {
			task.CompletedAt = nil
		}
	}
	task.UpdatedAt = nowFunc()

	_, err = exec.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, notes = ?, priority = ?, status = ?,
			scheduled_date = ?, deadline = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		task.Title, task.Description, task.Notes, string(task.Priority), string(task.Status),
		formatTime(task.ScheduledDate), formatTimePtr(task.Deadline), formatTime(task.UpdatedAt), formatTimePtr(task.CompletedAt), id)
	if err != nil {
		return models.Task{}, fmt.Errorf("store: update task: %w", err)
	}
	return task, nil
}

// UpdateMany applies upd to each id, independently, inside one *sql.Tx.
func (s *Store) UpdateMany(ctx context.Context, ids []string, upd models.TaskUpdate) ([]models.Task, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		errs := make([]error, len(ids))
		for i := range errs {
			errs[i] = fmt.Errorf("store: begin tx: %w", err)
		}
		return make([]models.Task, len(ids)), errs
	}

	out := make([]models.Task, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		task, err := s.updateLocked(ctx, tx, id, upd)
		out[i] = task
		errs[i] = err
	}
	if err := tx.Commit(); err != nil {
		for i := range errs {
			if errs[i] == nil {
				errs[i] = fmt.Errorf("store: commit: %w", err)
			}
		}
	}
	return out, errs
}

// Delete removes the task identified by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, s.db, id)
}

func (s *Store) deleteLocked(ctx context.Context, exec execer, id string) error {
	res, err := exec.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: task not found: %s", id)
	}
	return nil
}

// DeleteMany removes each id independently inside one *sql.Tx.
func (s *Store) DeleteMany(ctx context.Context, ids []string) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		errs := make([]error, len(ids))
		for i := range errs {
			errs[i] = fmt.Errorf("store: begin tx: %w", err)
		}
		return errs
	}

	errs := make([]error, len(ids))
	for i, id := range ids {
		errs[i] = s.deleteLocked(ctx, tx, id)
	}
	if err := tx.Commit(); err != nil {
		for i := range errs {
			if errs[i] == nil {
				errs[i] = fmt.Errorf("store: commit: %w", err)
			}
		}
	}
	return errs
}

// List returns tasks matching filter, ordered by scheduled_date ascending
// then rowid for stable tie-breaking.
func (s *Store) List(ctx context.Context, filter models.TaskFilter, limit int) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildFilterQuery(filter)
	query += ` ORDER BY scheduled_date ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, taskSelectColumns+` FROM tasks WHERE 1=1`+query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Search OR-matches terms against title/description/notes and ranks by
// match count then recency (scheduled_date descending) — an in-process scan
// over the filtered candidate set, mirroring the History Store Gateway's
// matchScore idiom (internal/history/store.go) rather than SQL full-text
// search.
func (s *Store) Search(ctx context.Context, terms []string, filter models.TaskFilter, limit int) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildFilterQuery(filter)
	rows, err := s.db.QueryContext(ctx, taskSelectColumns+` FROM tasks WHERE 1=1`+query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search tasks: %w", err)
	}
	defer rows.Close()
	all, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		task  models.Task
		score int
	}
	var candidates []scored
	for _, t := range all {
		if score := taskMatchScore(t, terms); score > 0 {
			candidates = append(candidates, scored{t, score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].task.ScheduledDate.After(candidates[j].task.ScheduledDate)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	matches := make([]models.Task, len(candidates))
	for i, c := range candidates {
		matches[i] = c.task
	}
	return matches, nil
}

// taskMatchScore counts, across all terms, how many times each appears in
// title/description/notes combined — an empty terms slice (or an
// all-blank one) matches nothing, matching the History Store Gateway's
// matchScore contract.
func taskMatchScore(t models.Task, terms []string) int {
	title := strings.ToLower(t.Title)
	desc := strings.ToLower(t.Description)
	notes := strings.ToLower(t.Notes)
	score := 0
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		score += strings.Count(title, term) + strings.Count(desc, term) + strings.Count(notes, term)
	}
	return score
}

// Stats summarizes the full task set for get_task_stats.
func (s *Store) Stats(ctx context.Context, now time.Time) (models.TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, taskSelectColumns+` FROM tasks`)
	if err != nil {
		return models.TaskStats{}, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()
	all, err := scanTasks(rows)
	if err != nil {
		return models.TaskStats{}, err
	}

	stats := models.TaskStats{
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
	}
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.Add(24 * time.Hour)

	for _, t := range all {
		stats.Total++
		stats.ByStatus[string(t.Status)]++
		stats.ByPriority[string(t.Priority)]++
		if t.Missed(now) {
			stats.Missed++
		}
		if !t.ScheduledDate.Before(todayStart) && t.ScheduledDate.Before(todayEnd) {
			stats.DueToday++
		}
	}
	return stats, nil
}

// execer is satisfied by *sql.DB and *sql.Tx, letting create/update share
// single-item logic between standalone calls and the *Many bulk variants.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var nowFunc = time.Now
