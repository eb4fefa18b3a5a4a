package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"data_collector/internal/domain/record"
	"data_collector/internal/domain/task"
	"data_collector/internal/domain/teacher"
)

// PostgresReplyWriter persists one teacher's extracted reply for one task:
// the audit rows (one per field), the dynamic-table row and the record's
// AWAITING_REPLY -> REPLIED transition, all in a single transaction. If
// anything fails the record keeps its prior status and the next ingestion
// pass retries it.
type PostgresReplyWriter struct {
	db     *sql.DB
	tables *DynamicTableManager
}

func NewPostgresReplyWriter(db *sql.DB, tables *DynamicTableManager) *PostgresReplyWriter {
	return &PostgresReplyWriter{db: db, tables: tables}
}

func (w *PostgresReplyWriter) SaveReply(ctx context.Context, tsk *task.Task, tch *teacher.Teacher, rec *record.Record, values map[string]string, repliedAt time.Time, subject string) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSchemaWrite, err)
	}
	defer tx.Rollback()

	// Audit rows: clear-then-insert keeps (record, field) unique across
	// re-ingestion of a corrected resend.
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_responses WHERE record_id = $1`, rec.ID); err != nil {
		return fmt.Errorf("%w: clear audit rows: %v", ErrSchemaWrite, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO task_responses (record_id, field_name, field_value, field_type)
                                         VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("%w: prepare audit insert: %v", ErrSchemaWrite, err)
	}
	defer stmt.Close()

	for _, f := range tsk.Fields {
		value, ok := values[f.Name]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, f.Name, value, task.FieldTypeText); err != nil {
			return fmt.Errorf("%w: insert audit row for field %q: %v", ErrSchemaWrite, f.Name, err)
		}
	}

	if err := w.tables.UpsertRowTx(ctx, tx, tsk.ID, tch, repliedAt, values, tsk.ColumnMapping); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE email_records SET status = $1, replied_time = $2, reply_title = $3 WHERE id = $4`,
		record.StatusReplied, repliedAt, subject, rec.ID)
	if err != nil {
		return fmt.Errorf("%w: update record status: %v", ErrSchemaWrite, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: record %d vanished during reply write", ErrSchemaWrite, rec.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSchemaWrite, err)
	}

	rec.Status = record.StatusReplied
	rec.RepliedTime = sql.NullTime{Time: repliedAt, Valid: true}
	rec.ReplyTitle = sql.NullString{String: subject, Valid: true}
	return nil
}
