package tools

import (
	"context"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// TaskStore is the subset of the Task Store Gateway every task tool
// depends on. internal/store.Store satisfies this.
type TaskStore interface {
	Create(ctx context.Context, task models.Task) (models.Task, error)
	CreateMany(ctx context.Context, tasks []models.Task) ([]models.Task, []error)
	Get(ctx context.Context, id string) (models.Task, bool, error)
	Update(ctx context.Context, id string, upd models.TaskUpdate) (models.Task, error)
	UpdateMany(ctx context.Context, ids []string, upd models.TaskUpdate) ([]models.Task, []error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) []error
	List(ctx context.Context, filter models.TaskFilter, limit int) ([]models.Task, error)
	Search(ctx context.Context, terms []string, filter models.TaskFilter, limit int) ([]models.Task, error)
	Stats(ctx context.Context, now time.Time) (models.TaskStats, error)
}
