package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"data_collector/internal/domain/schema"
	"data_collector/internal/domain/task"
	"data_collector/internal/domain/teacher"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Custom errors for dynamic schema operations
var ErrSchemaCreation = fmt.Errorf("dynamic table creation failed")
var ErrSchemaWrite = fmt.Errorf("dynamic table write failed")

// DynamicTableManager owns the per-task physical tables: one table per task,
// fixed identifying columns plus one sanitized TEXT column per template
// field. All value columns are TEXT because spreadsheet cell types cannot
// be trusted.
type DynamicTableManager struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewDynamicTableManager(db *sql.DB, log *logrus.Logger) *DynamicTableManager {
	return &DynamicTableManager{db: db, log: log}
}

// CreateTaskTable creates the task's physical table and returns the
// label -> column mapping the caller must persist. CREATE TABLE IF NOT
// EXISTS makes re-invocation after a partial prior failure safe.
func (m *DynamicTableManager) CreateTaskTable(ctx context.Context, taskID int64, fields []task.Field) (map[string]string, error) {
	columns, mapping := schema.BuildColumnMapping(fieldLabels(fields))
	tableName := schema.TableName(taskID)

	if _, err := m.db.ExecContext(ctx, createTableSQL(taskID, columns)); err != nil {
		return nil, fmt.Errorf("%w: table %s: %v", ErrSchemaCreation, tableName, err)
	}
	m.log.Infof("Dynamic table %s created with %d field columns.", tableName, len(columns))
	return mapping, nil
}

func createTableSQL(taskID int64, columns []schema.Column) string {
	defs := []string{
		schema.ColID + " BIGSERIAL PRIMARY KEY",
		schema.ColTeacherID + " BIGINT",
		schema.ColTeacherName + " TEXT",
		schema.ColDepartment + " TEXT",
		schema.ColEmail + " TEXT",
		schema.ColReplyTime + " TIMESTAMPTZ",
	}
	for _, col := range columns {
		defs = append(defs, pq.QuoteIdentifier(col.Name)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pq.QuoteIdentifier(schema.TableName(taskID)), strings.Join(defs, ", "))
}

// UpsertRow replaces the teacher's row in the task's table: delete any
// existing row for the teacher, insert the new one, both inside a single
// transaction so a failure leaves no half-written row. Keys in values with
// no mapping entry are silently dropped.
func (m *DynamicTableManager) UpsertRow(ctx context.Context, taskID int64, t *teacher.Teacher, replyTime time.Time, values, mapping map[string]string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSchemaWrite, err)
	}
	defer tx.Rollback()

	if err := m.UpsertRowTx(ctx, tx, taskID, t, replyTime, values, mapping); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSchemaWrite, err)
	}
	return nil
}

// UpsertRowTx is UpsertRow running inside a caller-owned transaction, for
// writes that must commit atomically with audit rows and record status.
func (m *DynamicTableManager) UpsertRowTx(ctx context.Context, tx *sql.Tx, taskID int64, t *teacher.Teacher, replyTime time.Time, values, mapping map[string]string) error {
	del, ins := upsertRowSQL(taskID, t, replyTime, values, mapping)

	if _, err := tx.ExecContext(ctx, del.SQL, del.Args...); err != nil {
		return fmt.Errorf("%w: delete prior row: %v", ErrSchemaWrite, err)
	}
	if _, err := tx.ExecContext(ctx, ins.SQL, ins.Args...); err != nil {
		return fmt.Errorf("%w: insert row: %v", ErrSchemaWrite, err)
	}
	return nil
}

type boundStatement struct {
	SQL  string
	Args []any
}

// upsertRowSQL builds the delete-then-insert statement pair that replaces a
// teacher's row. Keys in values with no mapping entry are dropped.
func upsertRowSQL(taskID int64, t *teacher.Teacher, replyTime time.Time, values, mapping map[string]string) (del, ins boundStatement) {
	tableName := pq.QuoteIdentifier(schema.TableName(taskID))

	del.SQL = fmt.Sprintf("DELETE FROM %s WHERE %s = $1", tableName, schema.ColTeacherID)
	del.Args = []any{t.ID}

	cols := []string{schema.ColTeacherID, schema.ColTeacherName, schema.ColDepartment, schema.ColEmail, schema.ColReplyTime}
	ins.Args = []any{t.ID, t.Name, t.Department, t.Email, replyTime}

	// Iterate the mapping in a stable order rather than ranging over values.
	for _, mc := range sortedMapping(mapping) {
		value, ok := values[mc.Label]
		if !ok {
			continue
		}
		cols = append(cols, pq.QuoteIdentifier(mc.Name))
		ins.Args = append(ins.Args, value)
	}

	placeholders := make([]string, len(ins.Args))
	for i := range ins.Args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	ins.SQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return del, ins
}

// DropTaskTable removes the task's physical table. Best-effort: a failure is
// logged and swallowed so it never blocks deletion of the task metadata.
func (m *DynamicTableManager) DropTaskTable(ctx context.Context, taskID int64) {
	tableName := schema.TableName(taskID)
	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", pq.QuoteIdentifier(tableName))
	if _, err := m.db.ExecContext(ctx, dropSQL); err != nil {
		m.log.Errorf("Failed to drop dynamic table %s: %v", tableName, err)
		return
	}
	m.log.Infof("Dynamic table %s dropped.", tableName)
}

// ListRows reads the task's table back as label-keyed string maps, resolving
// physical columns through the stored mapping. Consumers never see sanitized
// column names.
func (m *DynamicTableManager) ListRows(ctx context.Context, taskID int64, mapping map[string]string, labels []string) ([]map[string]string, error) {
	cols := make([]string, 0, len(schema.IdentifyingColumns)+len(labels))
	keys := make([]string, 0, cap(cols))
	for _, c := range schema.IdentifyingColumns {
		cols = append(cols, c)
		keys = append(keys, c)
	}
	for _, label := range labels {
		column, ok := mapping[label]
		if !ok {
			continue
		}
		cols = append(cols, pq.QuoteIdentifier(column))
		keys = append(keys, label)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), pq.QuoteIdentifier(schema.TableName(taskID)), schema.ColID)

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying dynamic table for task %d: %w", taskID, err)
	}
	defer rows.Close()

	result := make([]map[string]string, 0)
	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("error scanning dynamic table row: %w", err)
		}
		rowMap := make(map[string]string, len(keys))
		for i, key := range keys {
			rowMap[key] = raw[i].String
		}
		result = append(result, rowMap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dynamic table rows: %w", err)
	}
	return result, nil
}

func fieldLabels(fields []task.Field) []string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Name
	}
	return labels
}

type mappedColumn struct {
	Label string
	Name  string
}

func sortedMapping(mapping map[string]string) []mappedColumn {
	out := make([]mappedColumn, 0, len(mapping))
	for label, name := range mapping {
		out = append(out, mappedColumn{Label: label, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
