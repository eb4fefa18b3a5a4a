package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"data_collector/internal/domain/record"
	"data_collector/internal/domain/task"
	"data_collector/internal/domain/teacher"
	idb "data_collector/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Custom errors for task lifecycle operations
var ErrTaskNameTaken = fmt.Errorf("task name already in use")
var ErrNoKnownFields = fmt.Errorf("no values match the task's fields")

// TemplateParser reads a template workbook's header into a field list and
// renders field lists back into distributable workbooks.
type TemplateParser interface {
	ParseTemplate(path string) ([]task.Field, error)
	CreateTemplate(fields []task.Field, outputPath string) error
}

// SchemaManager owns the per-task physical tables.
type SchemaManager interface {
	CreateTaskTable(ctx context.Context, taskID int64, fields []task.Field) (map[string]string, error)
	DropTaskTable(ctx context.Context, taskID int64)
}

// TaskService manages the collection task lifecycle: creation from a
// template, roster assignment, manual correction and deletion.
type TaskService struct {
	taskRepo    task.Repository
	teacherRepo teacher.Repository
	recordRepo  record.Repository
	parser      TemplateParser
	schema      SchemaManager
	replies     ReplyStore
	templateDir string
	log         *logrus.Logger
}

func NewTaskService(
	taskRepo task.Repository,
	teacherRepo teacher.Repository,
	recordRepo record.Repository,
	parser TemplateParser,
	schema SchemaManager,
	replies ReplyStore,
	templateDir string,
	log *logrus.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		teacherRepo: teacherRepo,
		recordRepo:  recordRepo,
		parser:      parser,
		schema:      schema,
		replies:     replies,
		templateDir: templateDir,
		log:         log,
	}
}

// CreateTask registers a new collection task from a template workbook: the
// template is parsed and archived, the task row created and the task's
// physical table generated with the persisted column mapping. A failure at
// any step unwinds the previous ones so no orphan task, file or table
// survives.
func (s *TaskService) CreateTask(ctx context.Context, name, description string, deadline *time.Time, templateSourcePath string) (*task.Task, error) {
	if existing, err := s.taskRepo.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrTaskNameTaken
	}

	// Parse before touching any state: a broken template must leave nothing behind.
	fields, err := s.parser.ParseTemplate(templateSourcePath)
	if err != nil {
		return nil, err
	}

	archivedPath, err := s.archiveTemplate(templateSourcePath)
	if err != nil {
		return nil, err
	}

	t := &task.Task{
		Name:         name,
		TemplatePath: sql.NullString{String: archivedPath, Valid: true},
		Fields:       fields,
	}
	if description != "" {
		t.Description = sql.NullString{String: description, Valid: true}
	}
	if deadline != nil {
		t.Deadline = sql.NullTime{Time: *deadline, Valid: true}
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		s.removeFile(archivedPath)
		return nil, err
	}

	mapping, err := s.schema.CreateTaskTable(ctx, t.ID, fields)
	if err != nil {
		s.unwindCreate(ctx, t, archivedPath)
		return nil, err
	}

	t.ColumnMapping = mapping
	if err := s.taskRepo.Update(ctx, t); err != nil {
		s.schema.DropTaskTable(ctx, t.ID)
		s.unwindCreate(ctx, t, archivedPath)
		return nil, fmt.Errorf("failed to persist column mapping for task %d: %w", t.ID, err)
	}

	s.log.Infof("Task %d (%s) created with %d fields.", t.ID, t.Name, len(fields))
	return t, nil
}

func (s *TaskService) unwindCreate(ctx context.Context, t *task.Task, archivedPath string) {
	if err := s.taskRepo.Delete(ctx, t.ID); err != nil {
		s.log.Errorf("Failed to unwind task %d after creation error: %v", t.ID, err)
	}
	s.removeFile(archivedPath)
}

func (s *TaskService) archiveTemplate(sourcePath string) (string, error) {
	if err := os.MkdirAll(s.templateDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create template directory: %w", err)
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", sourcePath, err)
	}
	dest := filepath.Join(s.templateDir, fmt.Sprintf("template_%s.xlsx", uuid.New().String()))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to archive template: %w", err)
	}
	return dest, nil
}

func (s *TaskService) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Errorf("Failed to remove file %s: %v", path, err)
	}
}

// AssignTeachers targets the given teachers with the task, creating one
// NOT_SENT record per teacher. Teachers already targeted are left untouched,
// so re-assignment is idempotent. Returns how many new records were created.
func (s *TaskService) AssignTeachers(ctx context.Context, taskID int64, teacherIDs []int64) (int, error) {
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return 0, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	created := 0
	for _, teacherID := range teacherIDs {
		tch, err := s.teacherRepo.GetByID(ctx, teacherID)
		if err != nil {
			return created, fmt.Errorf("failed to load teacher %d: %w", teacherID, err)
		}
		_, err = s.recordRepo.GetByTaskAndTeacher(ctx, taskID, teacherID)
		if err == nil {
			continue
		}
		if !errors.Is(err, idb.ErrRecordNotFound) {
			return created, fmt.Errorf("failed to check record for teacher %d: %w", teacherID, err)
		}
		rec := &record.Record{
			TaskID:      taskID,
			TeacherID:   tch.ID,
			TeacherName: tch.Name,
			Department:  tch.Department,
			Status:      record.StatusNotSent,
		}
		if err := s.recordRepo.Create(ctx, rec); err != nil {
			return created, fmt.Errorf("failed to create record for teacher %d: %w", teacherID, err)
		}
		created++
	}
	s.log.Infof("Assigned %d new teachers to task %d.", created, taskID)
	return created, nil
}

// DeleteTask removes the task, its records and audit rows (cascading at the
// schema level) and its physical table. The table drop is best-effort: a
// leftover table is harmless, a live task row pointing nowhere is not.
func (s *TaskService) DeleteTask(ctx context.Context, taskID int64) error {
	t, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	s.schema.DropTaskTable(ctx, taskID)

	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}
	if t.TemplatePath.Valid {
		s.removeFile(t.TemplatePath.String)
	}
	s.log.Infof("Task %d (%s) deleted.", taskID, t.Name)
	return nil
}

// CorrectRecord lets an operator enter or fix a teacher's values by hand,
// for replies that arrived outside the mailbox (paper, chat, a phone call).
// Values for unknown fields are dropped; the record ends up REPLIED through
// the same atomic writer the mailbox pipeline uses.
func (s *TaskService) CorrectRecord(ctx context.Context, recordID int64, values map[string]string) error {
	rec, err := s.recordRepo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	t, err := s.taskRepo.GetByID(ctx, rec.TaskID)
	if err != nil {
		return fmt.Errorf("failed to load task %d: %w", rec.TaskID, err)
	}
	tch, err := s.teacherRepo.GetByID(ctx, rec.TeacherID)
	if err != nil {
		return fmt.Errorf("failed to load teacher %d: %w", rec.TeacherID, err)
	}

	filtered := make(map[string]string, len(values))
	for name, value := range values {
		if t.HasField(name) {
			filtered[name] = value
		}
	}
	if len(filtered) == 0 {
		return ErrNoKnownFields
	}

	subject := "人工更正"
	if rec.ReplyTitle.Valid && rec.ReplyTitle.String != "" {
		subject = rec.ReplyTitle.String
	}
	if err := s.replies.SaveReply(ctx, t, tch, rec, filtered, time.Now(), subject); err != nil {
		return err
	}
	s.log.Infof("Record %d corrected manually with %d fields.", recordID, len(filtered))
	return nil
}
