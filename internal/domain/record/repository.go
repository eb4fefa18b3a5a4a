package record

import (
	"context"
	"time"
)

// Repository defines operations for email records and their audit values.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	GetByTaskAndTeacher(ctx context.Context, taskID, teacherID int64) (*Record, error)
	ListByTask(ctx context.Context, taskID int64) ([]*Record, error)
	ListByTaskAndStatus(ctx context.Context, taskID int64, status Status) ([]*Record, error)
	CountByStatus(ctx context.Context, taskID int64) (map[Status]int, error)

	// MarkSent moves a record to AWAITING_REPLY and stamps the send time.
	MarkSent(ctx context.Context, recordID int64, sentAt time.Time) error
	// TouchSent updates the send time only, for reminders; status is unchanged.
	TouchSent(ctx context.Context, recordID int64, sentAt time.Time) error

	ListFieldValues(ctx context.Context, recordID int64) ([]*FieldValue, error)

	// ListTaskIDsAwaitingReply returns the IDs of tasks that still have at
	// least one AWAITING_REPLY record, for the periodic ingestion sweep.
	ListTaskIDsAwaitingReply(ctx context.Context) ([]int64, error)
}
