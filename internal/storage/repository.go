package storage

import (
	"context"

	"github.com/sandeepkv93/ghostd/internal/model"
)

// Repository persists the task list with whole-document replace
// semantics: LoadTasks returns the full list (empty when no prior
// state) and SaveTasks replaces everything.
type Repository interface {
	LoadTasks(ctx context.Context) ([]model.Task, error)
	SaveTasks(ctx context.Context, tasks []model.Task) error
}
