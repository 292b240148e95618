package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const timeLayout = time.RFC3339Nano

const taskSelectColumns = `SELECT id, title, description, notes, priority, status, scheduled_date, deadline, created_at, updated_at, completed_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (models.Task, error) {
	var (
		task          models.Task
		priority      string
		status        string
		scheduledDate string
		deadline      sql.NullString
		createdAt     string
		updatedAt     string
		completedAt   sql.NullString
	)

	err := s.Scan(&task.ID, &task.Title, &task.Description, &task.Notes, &priority, &status,
		&scheduledDate, &deadline, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return models.Task{}, err
	}

	task.Priority = models.TaskPriority(priority)
	task.Status = models.TaskStatus(status)

	if task.ScheduledDate, err = time.Parse(timeLayout, scheduledDate); err != nil {
		return models.Task{}, fmt.Errorf("parse scheduled_date: %w", err)
	}
	if task.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return models.Task{}, fmt.Errorf("parse created_at: %w", err)
	}
	if task.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return models.Task{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if deadline.Valid {
		t, err := time.Parse(timeLayout, deadline.String)
		if err != nil {
			return models.Task{}, fmt.Errorf("parse deadline: %w", err)
		}
		task.Deadline = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return models.Task{}, fmt.Errorf("parse completed_at: %w", err)
		}
		task.CompletedAt = &t
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var out []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeLayout), Valid: true}
}

// buildFilterQuery returns a SQL fragment (starting with " AND ...") and
// its bound args for filter. The caller prepends it to a base WHERE clause.
func buildFilterQuery(filter models.TaskFilter) (string, []any) {
	var query string
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(filter.Priority))
	}
	if filter.ScheduledFrom != nil {
		query += ` AND scheduled_date >= ?`
		args = append(args, formatTime(*filter.ScheduledFrom))
	}
	if filter.ScheduledTo != nil {
		query += ` AND scheduled_date <= ?`
		args = append(args, formatTime(*filter.ScheduledTo))
	}
	if filter.TextContains != "" {
		query += ` AND (title LIKE ? OR description LIKE ? OR notes LIKE ?)`
		like := "%" + filter.TextContains + "%"
		args = append(args, like, like, like)
	}
	return query, args
}
