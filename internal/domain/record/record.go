package record

import (
	"database/sql"
	"time"
)

// Status tracks where one (task, teacher) pair is in its reply lifecycle.
type Status string

const (
	StatusNotSent       Status = "NOT_SENT"
	StatusAwaitingReply Status = "AWAITING_REPLY"
	StatusReplied       Status = "REPLIED" // terminal; never reverts
)

// Record is the per-teacher tracking row for one task.
// Exactly one exists per (task, teacher) pair that has ever been targeted.
// Corresponds to the 'email_records' table.
type Record struct {
	ID     int64
	TaskID int64

	TeacherID int64
	// Denormalized copies kept for cheap overview queries.
	TeacherName string
	Department  string

	Status      Status
	SentTime    sql.NullTime
	RepliedTime sql.NullTime
	ReplyTitle  sql.NullString // subject line of the reply that was ingested
	CreatedAt   time.Time
}

// FieldValue is one durable audit row: a single extracted field of a single
// reply, independent of the task's dynamic table.
// Corresponds to the 'task_responses' table; (RecordID, FieldName) is unique.
type FieldValue struct {
	ID        int64
	RecordID  int64
	FieldName string
	Value     string
	ValueType string // always "text" today
}
