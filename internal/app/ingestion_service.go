package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"data_collector/internal/domain/mail"
	"data_collector/internal/domain/record"
	"data_collector/internal/domain/task"
	"data_collector/internal/domain/teacher"
	idb "data_collector/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// ReplyStore persists one extracted reply atomically: audit rows, the
// dynamic-table row and the record's transition to REPLIED commit together
// or not at all.
type ReplyStore interface {
	SaveReply(ctx context.Context, tsk *task.Task, tch *teacher.Teacher, rec *record.Record, values map[string]string, repliedAt time.Time, subject string) error
}

// ReplyParser extracts the first data row of a reply attachment, keeping
// only the expected fields.
type ReplyParser interface {
	ParseReply(data []byte, expected []task.Field) (map[string]string, error)
}

// DialMailbox opens a fresh mailbox session. Each ingestion pass gets its
// own; the locator is closed when the pass ends.
type DialMailbox func() (mail.Locator, error)

// IngestFailure is one candidate message the pass could not process. The
// record keeps its prior status, so the next pass retries the message.
type IngestFailure struct {
	UID     uint32
	Subject string
	Err     error
}

// IngestReport summarizes one ingestion pass over one task.
type IngestReport struct {
	TaskID     int64
	Candidates int // messages the search returned
	Processed  int // candidates classified as replies to this task
	Skipped    int // replies ignored: unknown sender, already REPLIED, or empty payload
	Succeeded  int
	Failures   []IngestFailure
}

// IngestionService runs the reply ingestion pipeline: locate candidate
// messages, classify them against a task, match senders to the roster,
// extract the spreadsheet payload and persist it.
type IngestionService struct {
	taskRepo    task.Repository
	teacherRepo teacher.Repository
	recordRepo  record.Repository
	parser      ReplyParser
	replies     ReplyStore
	dial        DialMailbox

	marker        string
	lookbackDays  int
	maxCandidates int

	log *logrus.Logger
}

func NewIngestionService(
	taskRepo task.Repository,
	teacherRepo teacher.Repository,
	recordRepo record.Repository,
	parser ReplyParser,
	replies ReplyStore,
	dial DialMailbox,
	marker string,
	lookbackDays int,
	maxCandidates int,
	log *logrus.Logger,
) *IngestionService {
	return &IngestionService{
		taskRepo:      taskRepo,
		teacherRepo:   teacherRepo,
		recordRepo:    recordRepo,
		parser:        parser,
		replies:       replies,
		dial:          dial,
		marker:        marker,
		lookbackDays:  lookbackDays,
		maxCandidates: maxCandidates,
		log:           log,
	}
}

// CheckReplies runs one ingestion pass for one task. Per-message failures
// are collected in the report and never abort the pass; the pass itself
// fails only when the task cannot be loaded or the mailbox cannot be
// searched at all. Re-running a pass over the same mailbox is a no-op for
// everything already REPLIED.
func (s *IngestionService) CheckReplies(ctx context.Context, taskID int64) (*IngestReport, error) {
	tsk, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	locator, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer locator.Close()

	since := time.Now().AddDate(0, 0, -s.lookbackDays)
	headers, err := locator.FindCandidates(s.marker, since, s.maxCandidates)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{TaskID: taskID, Candidates: len(headers)}
	s.log.Infof("Ingestion pass for task %d (%s): %d candidate messages.", taskID, tsk.Name, len(headers))

	for _, h := range headers {
		if ctx.Err() != nil {
			s.log.Warnf("Ingestion pass for task %d stopped early: %v. Remaining candidates are picked up next pass.", taskID, ctx.Err())
			break
		}
		if !mail.IsTaskReply(h.Subject, tsk.Name, s.marker) {
			continue
		}
		report.Processed++
		s.ingestOne(ctx, tsk, h, locator, report)
	}

	s.log.Infof("Ingestion pass for task %d finished: %d processed, %d saved, %d skipped, %d failed.",
		taskID, report.Processed, report.Succeeded, report.Skipped, len(report.Failures))
	return report, nil
}

func (s *IngestionService) ingestOne(ctx context.Context, tsk *task.Task, h mail.Header, locator mail.Locator, report *IngestReport) {
	fail := func(err error) {
		s.log.Errorf("Failed to ingest message %d (%q): %v", h.UID, h.Subject, err)
		report.Failures = append(report.Failures, IngestFailure{UID: h.UID, Subject: h.Subject, Err: err})
	}

	if h.FromEmail == "" {
		s.log.Infof("Skipping message %d: no sender address in envelope.", h.UID)
		report.Skipped++
		return
	}

	tch, err := s.teacherRepo.GetByEmail(ctx, h.FromEmail)
	if errors.Is(err, idb.ErrTeacherNotFound) {
		// Senders outside the roster are expected noise, not failures.
		s.log.Infof("Skipping message %d from %s: sender is not on the roster.", h.UID, h.FromEmail)
		report.Skipped++
		return
	}
	if err != nil {
		fail(fmt.Errorf("failed to look up sender %s: %w", h.FromEmail, err))
		return
	}

	rec, err := s.recordRepo.GetByTaskAndTeacher(ctx, tsk.ID, tch.ID)
	switch {
	case errors.Is(err, idb.ErrRecordNotFound):
		// A reply without a tracked send still counts; create the record
		// on the fly so the reply is not lost.
		rec = &record.Record{
			TaskID:      tsk.ID,
			TeacherID:   tch.ID,
			TeacherName: tch.Name,
			Department:  tch.Department,
			Status:      record.StatusAwaitingReply,
		}
		if err := s.recordRepo.Create(ctx, rec); err != nil {
			fail(fmt.Errorf("failed to create record for teacher %d: %w", tch.ID, err))
			return
		}
		s.log.Infof("Created record %d for untracked reply from %s to task %d.", rec.ID, tch.Email, tsk.ID)
	case err != nil:
		fail(fmt.Errorf("failed to load record for teacher %d: %w", tch.ID, err))
		return
	}

	if rec.Status == record.StatusReplied {
		s.log.Debugf("Skipping message %d: teacher %s already replied to task %d.", h.UID, tch.Email, tsk.ID)
		report.Skipped++
		return
	}

	msg, err := locator.FetchMessage(h.UID)
	if err != nil {
		fail(fmt.Errorf("failed to fetch message: %w", err))
		return
	}

	values, err := s.extractPayload(tsk, msg)
	if err != nil {
		fail(err)
		return
	}
	if len(values) == 0 {
		s.log.Infof("Skipping message %d: no spreadsheet attachment with a usable data row.", h.UID)
		report.Skipped++
		return
	}

	repliedAt := msg.Date
	if repliedAt.IsZero() {
		repliedAt = h.Date
	}
	if repliedAt.IsZero() {
		repliedAt = time.Now()
	}
	subject := msg.Subject
	if subject == "" {
		subject = h.Subject
	}

	if err := s.replies.SaveReply(ctx, tsk, tch, rec, values, repliedAt, subject); err != nil {
		fail(err)
		return
	}
	report.Succeeded++
	s.log.Infof("Saved reply from %s for task %d (%d fields).", tch.Email, tsk.ID, len(values))
}

// extractPayload scans the message's spreadsheet attachments in order and
// returns the first non-empty field map. An attachment that fails to parse
// or yields nothing does not stop the scan. An empty map with no error means
// the message carries no usable data: either no spreadsheet at all (a
// text-only reply is not an error, and retrying it never helps) or
// spreadsheets with no data row. Both are skipped by the caller.
func (s *IngestionService) extractPayload(tsk *task.Task, msg *mail.Message) (map[string]string, error) {
	var lastErr error
	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if mail.Sniff(att.Filename, att.Data) != mail.KindSpreadsheet {
			continue
		}
		values, err := s.parser.ParseReply(att.Data, tsk.Fields)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse attachment %q: %w", att.Filename, err)
			continue
		}
		if len(values) == 0 {
			continue
		}
		return values, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return map[string]string{}, nil
}

// CheckAllOpenTasks runs one ingestion pass for every task that still has
// at least one record awaiting a reply. Used by the periodic sweep.
func (s *IngestionService) CheckAllOpenTasks(ctx context.Context) ([]*IngestReport, error) {
	taskIDs, err := s.recordRepo.ListTaskIDsAwaitingReply(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks awaiting replies: %w", err)
	}
	if len(taskIDs) == 0 {
		s.log.Debug("No tasks are awaiting replies; nothing to sweep.")
		return []*IngestReport{}, nil
	}

	reports := make([]*IngestReport, 0, len(taskIDs))
	for _, id := range taskIDs {
		if ctx.Err() != nil {
			s.log.Warnf("Reply sweep stopped early: %v", ctx.Err())
			break
		}
		report, err := s.CheckReplies(ctx, id)
		if err != nil {
			// One broken task or a flaky mailbox must not starve the rest.
			s.log.Errorf("Ingestion pass for task %d failed: %v", id, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
