package task

import (
	"context"
)

// Repository defines operations for persisting and retrieving Task entities.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id int64) (*Task, error)
	GetByName(ctx context.Context, name string) (*Task, error)
	// Update persists template path, field list and column mapping changes.
	Update(ctx context.Context, t *Task) error
	ListAll(ctx context.Context) ([]*Task, error)
	// Delete removes the task row. Dependent email records and audit values
	// cascade at the schema level; the dynamic table is the caller's concern.
	Delete(ctx context.Context, id int64) error
}
