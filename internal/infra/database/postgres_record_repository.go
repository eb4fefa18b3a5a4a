package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"data_collector/internal/domain/record"
)

// Custom errors specific to record repository
var ErrRecordNotFound = fmt.Errorf("email record not found")
var ErrDuplicateRecord = fmt.Errorf("duplicate email record (task_id, teacher_id)")

type PostgresRecordRepository struct {
	db *sql.DB
}

func NewPostgresRecordRepository(db *sql.DB) *PostgresRecordRepository {
	return &PostgresRecordRepository{db: db}
}

const recordColumns = `id, task_id, teacher_id, teacher_name, department, status, sent_time, replied_time, reply_title, created_at`

func (r *PostgresRecordRepository) Create(ctx context.Context, rec *record.Record) error {
	if rec.Status == "" {
		rec.Status = record.StatusNotSent
	}
	query := `INSERT INTO email_records (task_id, teacher_id, teacher_name, department, status, sent_time, replied_time, reply_title)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.TaskID, rec.TeacherID, rec.TeacherName, rec.Department, rec.Status,
		rec.SentTime, rec.RepliedTime, rec.ReplyTitle,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "email_records_task_teacher_unique") {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("error creating email record: %w", err)
	}
	return nil
}

func scanRecord(row interface{ Scan(...any) error }) (*record.Record, error) {
	rec := &record.Record{}
	var teacherName, department sql.NullString
	err := row.Scan(&rec.ID, &rec.TaskID, &rec.TeacherID, &teacherName, &department,
		&rec.Status, &rec.SentTime, &rec.RepliedTime, &rec.ReplyTitle, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.TeacherName = teacherName.String
	rec.Department = department.String
	return rec, nil
}

func (r *PostgresRecordRepository) GetByID(ctx context.Context, id int64) (*record.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting email record by ID: %w", err)
	}
	return rec, nil
}

func (r *PostgresRecordRepository) GetByTaskAndTeacher(ctx context.Context, taskID, teacherID int64) (*record.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_records WHERE task_id = $1 AND teacher_id = $2`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, taskID, teacherID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting email record by task and teacher: %w", err)
	}
	return rec, nil
}

func (r *PostgresRecordRepository) listRecords(ctx context.Context, query string, args ...any) ([]*record.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying email records: %w", err)
	}
	defer rows.Close()

	records := make([]*record.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning email record row: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating email record rows: %w", err)
	}
	return records, nil
}

func (r *PostgresRecordRepository) ListByTask(ctx context.Context, taskID int64) ([]*record.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_records WHERE task_id = $1 ORDER BY teacher_id`
	return r.listRecords(ctx, query, taskID)
}

func (r *PostgresRecordRepository) ListByTaskAndStatus(ctx context.Context, taskID int64, status record.Status) ([]*record.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_records WHERE task_id = $1 AND status = $2 ORDER BY teacher_id`
	return r.listRecords(ctx, query, taskID, status)
}

func (r *PostgresRecordRepository) CountByStatus(ctx context.Context, taskID int64) (map[record.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM email_records WHERE task_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("error counting email records by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[record.Status]int)
	for rows.Next() {
		var status record.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning status count row: %w", err)
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status count rows: %w", err)
	}
	return counts, nil
}

func (r *PostgresRecordRepository) MarkSent(ctx context.Context, recordID int64, sentAt time.Time) error {
	query := `UPDATE email_records SET status = $1, sent_time = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, record.StatusAwaitingReply, sentAt, recordID)
	if err != nil {
		return fmt.Errorf("error marking record sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRecordRepository) TouchSent(ctx context.Context, recordID int64, sentAt time.Time) error {
	query := `UPDATE email_records SET sent_time = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, sentAt, recordID)
	if err != nil {
		return fmt.Errorf("error updating record send time: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRecordRepository) ListFieldValues(ctx context.Context, recordID int64) ([]*record.FieldValue, error) {
	query := `SELECT id, record_id, field_name, field_value, field_type
               FROM task_responses WHERE record_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("error querying field values: %w", err)
	}
	defer rows.Close()

	values := make([]*record.FieldValue, 0)
	for rows.Next() {
		fv := &record.FieldValue{}
		var value sql.NullString
		if err := rows.Scan(&fv.ID, &fv.RecordID, &fv.FieldName, &value, &fv.ValueType); err != nil {
			return nil, fmt.Errorf("error scanning field value row: %w", err)
		}
		fv.Value = value.String
		values = append(values, fv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating field value rows: %w", err)
	}
	return values, nil
}

func (r *PostgresRecordRepository) ListTaskIDsAwaitingReply(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT task_id FROM email_records WHERE status = $1 ORDER BY task_id`
	rows, err := r.db.QueryContext(ctx, query, record.StatusAwaitingReply)
	if err != nil {
		return nil, fmt.Errorf("error querying tasks awaiting reply: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning task ID row: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task ID rows: %w", err)
	}
	return ids, nil
}
