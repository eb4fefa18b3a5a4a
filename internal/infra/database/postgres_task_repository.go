package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"data_collector/internal/domain/task"
)

// Custom errors specific to task repository
var ErrTaskNotFound = fmt.Errorf("task not found")
var ErrDuplicateTaskName = fmt.Errorf("task with this name already exists")

type PostgresTaskRepository struct {
	db *sql.DB
}

func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{db: db}
}

func (r *PostgresTaskRepository) Create(ctx context.Context, t *task.Task) error {
	fieldsJSON, err := task.MarshalFields(t.Fields)
	if err != nil {
		return fmt.Errorf("error serializing task fields: %w", err)
	}
	mappingJSON, err := task.MarshalMapping(t.ColumnMapping)
	if err != nil {
		return fmt.Errorf("error serializing column mapping: %w", err)
	}

	query := `INSERT INTO summary_tasks (task_name, description, deadline, template_path, template_fields, column_mapping)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, create_time`
	err = r.db.QueryRowContext(ctx, query, t.Name, t.Description, t.Deadline, t.TemplatePath, fieldsJSON, mappingJSON).Scan(&t.ID, &t.CreateTime)
	if err != nil {
		if strings.Contains(err.Error(), "summary_tasks_task_name_key") {
			return ErrDuplicateTaskName
		}
		return fmt.Errorf("error creating task: %w", err)
	}
	return nil
}

func scanTask(row interface{ Scan(...any) error }) (*task.Task, error) {
	t := &task.Task{}
	var fieldsJSON, mappingJSON sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreateTime, &t.Deadline, &t.TemplatePath, &fieldsJSON, &mappingJSON); err != nil {
		return nil, err
	}

	fields, err := task.UnmarshalFields(fieldsJSON.String)
	if err != nil {
		return nil, fmt.Errorf("error deserializing task fields: %w", err)
	}
	t.Fields = fields

	mapping, err := task.UnmarshalMapping(mappingJSON.String)
	if err != nil {
		return nil, fmt.Errorf("error deserializing column mapping: %w", err)
	}
	t.ColumnMapping = mapping
	return t, nil
}

const taskColumns = `id, task_name, description, create_time, deadline, template_path, template_fields, column_mapping`

func (r *PostgresTaskRepository) GetByID(ctx context.Context, id int64) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM summary_tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("error getting task by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTaskRepository) GetByName(ctx context.Context, name string) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM summary_tasks WHERE task_name = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("error getting task by name: %w", err)
	}
	return t, nil
}

func (r *PostgresTaskRepository) Update(ctx context.Context, t *task.Task) error {
	fieldsJSON, err := task.MarshalFields(t.Fields)
	if err != nil {
		return fmt.Errorf("error serializing task fields: %w", err)
	}
	mappingJSON, err := task.MarshalMapping(t.ColumnMapping)
	if err != nil {
		return fmt.Errorf("error serializing column mapping: %w", err)
	}

	query := `UPDATE summary_tasks
               SET description = $1, deadline = $2, template_path = $3, template_fields = $4, column_mapping = $5
               WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, t.Description, t.Deadline, t.TemplatePath, fieldsJSON, mappingJSON, t.ID)
	if err != nil {
		return fmt.Errorf("error updating task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *PostgresTaskRepository) ListAll(ctx context.Context) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM summary_tasks ORDER BY create_time DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (r *PostgresTaskRepository) Delete(ctx context.Context, id int64) error {
	// email_records and task_responses cascade at the schema level.
	res, err := r.db.ExecContext(ctx, `DELETE FROM summary_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
