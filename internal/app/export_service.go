package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"data_collector/internal/domain/record"
	"data_collector/internal/domain/schema"
	"data_collector/internal/domain/task"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RowLister reads a task's collected rows back, keyed by the original field
// labels.
type RowLister interface {
	ListRows(ctx context.Context, taskID int64, mapping map[string]string, labels []string) ([]map[string]string, error)
}

// SummaryWriter renders a header row plus data rows into a workbook.
type SummaryWriter interface {
	WriteSummary(headers []string, rows [][]string, outputPath string) error
}

// identifying columns of the export, in order, with their sheet headers.
var summaryIdentity = []struct {
	Column string
	Header string
}{
	{schema.ColTeacherName, "教师姓名"},
	{schema.ColDepartment, "部门"},
	{schema.ColEmail, "邮箱"},
	{schema.ColReplyTime, "回复时间"},
}

// ExportService produces the summary workbook for a task and answers
// progress questions about its roster.
type ExportService struct {
	taskRepo   task.Repository
	recordRepo record.Repository
	rows       RowLister
	writer     SummaryWriter
	exportDir  string
	log        *logrus.Logger
}

func NewExportService(
	taskRepo task.Repository,
	recordRepo record.Repository,
	rows RowLister,
	writer SummaryWriter,
	exportDir string,
	log *logrus.Logger,
) *ExportService {
	return &ExportService{
		taskRepo:   taskRepo,
		recordRepo: recordRepo,
		rows:       rows,
		writer:     writer,
		exportDir:  exportDir,
		log:        log,
	}
}

// GenerateSummary writes all collected rows of a task to a workbook in the
// export directory and returns its path. Identifying columns come first,
// then the task's fields in template order.
func (s *ExportService) GenerateSummary(ctx context.Context, taskID int64) (string, error) {
	t, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	labels := t.FieldNames()
	rows, err := s.rows.ListRows(ctx, taskID, t.ColumnMapping, labels)
	if err != nil {
		return "", err
	}

	headers := make([]string, 0, len(summaryIdentity)+len(labels))
	for _, id := range summaryIdentity {
		headers = append(headers, id.Header)
	}
	headers = append(headers, labels...)

	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, 0, len(headers))
		for _, id := range summaryIdentity {
			line = append(line, row[id.Column])
		}
		for _, label := range labels {
			line = append(line, row[label])
		}
		data = append(data, line)
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	outputPath := filepath.Join(s.exportDir, fmt.Sprintf("summary_%d_%s.xlsx", taskID, uuid.New().String()))
	if err := s.writer.WriteSummary(headers, data, outputPath); err != nil {
		return "", err
	}

	s.log.Infof("Summary for task %d exported to %s (%d rows).", taskID, outputPath, len(data))
	return outputPath, nil
}

// Progress reports how many of the task's records sit in each status.
func (s *ExportService) Progress(ctx context.Context, taskID int64) (map[record.Status]int, error) {
	return s.recordRepo.CountByStatus(ctx, taskID)
}

// AuditValues returns the durable per-field audit rows of one record, the
// authoritative trace of what its reply contained.
func (s *ExportService) AuditValues(ctx context.Context, recordID int64) ([]*record.FieldValue, error) {
	return s.recordRepo.ListFieldValues(ctx, recordID)
}
