// Package models provides the domain types shared across the voice agent:
// tasks, conversation history, sessions, and the tool/event envelopes that
// cross the agent/client boundary.
package models

import "time"

// TaskPriority ranks a task's urgency, independent of its schedule.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is one of the recognized priority values.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the recognized status values.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Task is a single to-do item. ScheduledDate is always present: callers that
// omit it on create get "today at 12:00 local" filled in by the Task Store
// Gateway. CompletedAt is set the instant Status transitions into
// StatusCompleted and cleared the instant it transitions away; "missed" is
// never stored, it is derived at read time from ScheduledDate/Deadline vs.
// now and the current Status.
type Task struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Priority      TaskPriority `json:"priority"`
	Status        TaskStatus   `json:"status"`
	ScheduledDate time.Time    `json:"scheduled_date"`
	Deadline      *time.Time   `json:"deadline,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// Missed reports whether the task is overdue: not completed or cancelled,
// and its deadline has passed. A task with no deadline can never be
// missed, regardless of how far in the past its scheduled date is.
func (t Task) Missed(now time.Time) bool {
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	if t.Deadline == nil {
		return false
	}
	return now.After(*t.Deadline)
}

// TaskFilter narrows a list/search call on the Task Store Gateway. Zero
// values mean "no constraint" for that field.
type TaskFilter struct {
	Status          TaskStatus
	Priority        TaskPriority
	ScheduledFrom   *time.Time
	ScheduledTo     *time.Time
	TextContains    string
}

// TaskStats summarizes the task set for get_task_stats.
type TaskStats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByPriority  map[string]int `json:"by_priority"`
	Missed      int            `json:"missed"`
	DueToday    int            `json:"due_today"`
}

// TaskUpdate carries only the fields a caller wants to change; nil fields
// are left untouched. ClearDeadline distinguishes "leave as is" from
// "remove the deadline" for the one pointer field that can legitimately be
// unset.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Notes         *string
	Priority      *TaskPriority
	Status        *TaskStatus
	ScheduledDate *time.Time
	Deadline      *time.Time
	ClearDeadline bool
}
