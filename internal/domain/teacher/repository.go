package teacher

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Teacher entities.
type Repository interface {
	Create(ctx context.Context, t *Teacher) error
	GetByID(ctx context.Context, id int64) (*Teacher, error)
	GetByEmail(ctx context.Context, email string) (*Teacher, error)
	Update(ctx context.Context, t *Teacher) error
	ListAll(ctx context.Context) ([]*Teacher, error)
	Delete(ctx context.Context, id int64) error
}
