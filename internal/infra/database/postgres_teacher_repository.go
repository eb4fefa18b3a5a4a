package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"data_collector/internal/domain/teacher"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrTeacherNotFound = fmt.Errorf("teacher not found")
var ErrDuplicateEmail = fmt.Errorf("teacher with this email already exists")

type PostgresTeacherRepository struct {
	db *sql.DB
}

func NewPostgresTeacherRepository(db *sql.DB) *PostgresTeacherRepository {
	return &PostgresTeacherRepository{db: db}
}

func (r *PostgresTeacherRepository) Create(ctx context.Context, t *teacher.Teacher) error {
	query := `INSERT INTO teachers (teacher_name, department, email, phone, title)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, t.Name, t.Department, t.Email, t.Phone, t.Title).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "teachers_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("error creating teacher: %w", err)
	}
	return nil
}

func (r *PostgresTeacherRepository) GetByID(ctx context.Context, id int64) (*teacher.Teacher, error) {
	query := `SELECT id, teacher_name, department, email, phone, title, created_at
               FROM teachers WHERE id = $1`
	t := &teacher.Teacher{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.Department, &t.Email, &t.Phone, &t.Title, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("error getting teacher by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTeacherRepository) GetByEmail(ctx context.Context, email string) (*teacher.Teacher, error) {
	query := `SELECT id, teacher_name, department, email, phone, title, created_at
               FROM teachers WHERE email = $1`
	t := &teacher.Teacher{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&t.ID, &t.Name, &t.Department, &t.Email, &t.Phone, &t.Title, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("error getting teacher by email: %w", err)
	}
	return t, nil
}

func (r *PostgresTeacherRepository) Update(ctx context.Context, t *teacher.Teacher) error {
	query := `UPDATE teachers
               SET teacher_name = $1, department = $2, email = $3, phone = $4, title = $5
               WHERE id = $6`

	res, err := r.db.ExecContext(ctx, query, t.Name, t.Department, t.Email, t.Phone, t.Title, t.ID)
	if err != nil {
		if strings.Contains(err.Error(), "teachers_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("error updating teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrTeacherNotFound
	}
	return nil
}

func (r *PostgresTeacherRepository) ListAll(ctx context.Context) ([]*teacher.Teacher, error) {
	query := `SELECT id, teacher_name, department, email, phone, title, created_at
               FROM teachers ORDER BY department, teacher_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing teachers: %w", err)
	}
	defer rows.Close()

	teachers := make([]*teacher.Teacher, 0)
	for rows.Next() {
		t := &teacher.Teacher{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Department, &t.Email, &t.Phone, &t.Title, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning teacher: %w", err)
		}
		teachers = append(teachers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teachers: %w", err)
	}
	return teachers, nil
}

func (r *PostgresTeacherRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrTeacherNotFound
	}
	return nil
}
