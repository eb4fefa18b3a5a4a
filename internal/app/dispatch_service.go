package app

import (
	"context"
	"fmt"
	"time"

	"data_collector/internal/domain/mail"
	"data_collector/internal/domain/record"
	"data_collector/internal/domain/task"
	"data_collector/internal/domain/teacher"

	"github.com/sirupsen/logrus"
)

// DispatchFailure is one recipient the pass could not deliver to. The
// record stays NOT_SENT (or keeps its old send time for reminders), so the
// next pass retries.
type DispatchFailure struct {
	TeacherID int64
	Email     string
	Err       error
}

// DispatchReport summarizes one send or reminder pass over a task's roster.
type DispatchReport struct {
	TaskID   int64
	Sent     int
	Failures []DispatchFailure
}

// DispatchService delivers task notifications: the initial template send and
// reminders to teachers who have not replied yet.
type DispatchService struct {
	taskRepo    task.Repository
	teacherRepo teacher.Repository
	recordRepo  record.Repository
	sender      mail.Sender
	log         *logrus.Logger
}

func NewDispatchService(
	taskRepo task.Repository,
	teacherRepo teacher.Repository,
	recordRepo record.Repository,
	sender mail.Sender,
	log *logrus.Logger,
) *DispatchService {
	return &DispatchService{
		taskRepo:    taskRepo,
		teacherRepo: teacherRepo,
		recordRepo:  recordRepo,
		sender:      sender,
		log:         log,
	}
}

// SendTaskEmails mails the template to every NOT_SENT teacher of the task.
// Each successful delivery moves its record to AWAITING_REPLY; failures are
// collected and retried on the next invocation. Records already sent or
// replied are never re-mailed by this method.
func (s *DispatchService) SendTaskEmails(ctx context.Context, taskID int64) (*DispatchReport, error) {
	t, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	records, err := s.recordRepo.ListByTaskAndStatus(ctx, taskID, record.StatusNotSent)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent records for task %d: %w", taskID, err)
	}

	subject := fmt.Sprintf("【请回复】%s - 数据汇总工作", t.Name)
	body := buildDispatchBody(t)
	attachment := ""
	if t.TemplatePath.Valid {
		attachment = t.TemplatePath.String
	}

	report := &DispatchReport{TaskID: taskID}
	for _, rec := range records {
		if ctx.Err() != nil {
			s.log.Warnf("Dispatch for task %d stopped early: %v", taskID, ctx.Err())
			break
		}
		tch, err := s.teacherRepo.GetByID(ctx, rec.TeacherID)
		if err != nil {
			report.Failures = append(report.Failures, DispatchFailure{TeacherID: rec.TeacherID, Err: err})
			continue
		}
		if err := s.sender.Send(tch.Email, subject, body, attachment); err != nil {
			s.log.Errorf("Failed to send task %d to %s: %v", taskID, tch.Email, err)
			report.Failures = append(report.Failures, DispatchFailure{TeacherID: tch.ID, Email: tch.Email, Err: err})
			continue
		}
		if err := s.recordRepo.MarkSent(ctx, rec.ID, time.Now()); err != nil {
			// Delivered but not recorded: flag it loudly, the operator has
			// to reconcile by hand.
			s.log.Errorf("Email to %s delivered but record %d could not be updated: %v", tch.Email, rec.ID, err)
			report.Failures = append(report.Failures, DispatchFailure{TeacherID: tch.ID, Email: tch.Email, Err: err})
			continue
		}
		report.Sent++
	}

	s.log.Infof("Dispatch for task %d finished: %d sent, %d failed.", taskID, report.Sent, len(report.Failures))
	return report, nil
}

// RemindPending re-mails the template to every AWAITING_REPLY teacher. Only
// the send time is refreshed; the status machine never moves backwards.
func (s *DispatchService) RemindPending(ctx context.Context, taskID int64) (*DispatchReport, error) {
	t, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	records, err := s.recordRepo.ListByTaskAndStatus(ctx, taskID, record.StatusAwaitingReply)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending records for task %d: %w", taskID, err)
	}

	subject := fmt.Sprintf("【催办】%s - 数据汇总工作", t.Name)
	body := buildDispatchBody(t)
	attachment := ""
	if t.TemplatePath.Valid {
		attachment = t.TemplatePath.String
	}

	report := &DispatchReport{TaskID: taskID}
	for _, rec := range records {
		if ctx.Err() != nil {
			s.log.Warnf("Reminder pass for task %d stopped early: %v", taskID, ctx.Err())
			break
		}
		tch, err := s.teacherRepo.GetByID(ctx, rec.TeacherID)
		if err != nil {
			report.Failures = append(report.Failures, DispatchFailure{TeacherID: rec.TeacherID, Err: err})
			continue
		}
		if err := s.sender.Send(tch.Email, subject, body, attachment); err != nil {
			s.log.Errorf("Failed to remind %s about task %d: %v", tch.Email, taskID, err)
			report.Failures = append(report.Failures, DispatchFailure{TeacherID: tch.ID, Email: tch.Email, Err: err})
			continue
		}
		if err := s.recordRepo.TouchSent(ctx, rec.ID, time.Now()); err != nil {
			s.log.Errorf("Reminder to %s delivered but record %d could not be updated: %v", tch.Email, rec.ID, err)
		}
		report.Sent++
	}

	s.log.Infof("Reminder pass for task %d finished: %d sent, %d failed.", taskID, report.Sent, len(report.Failures))
	return report, nil
}

func buildDispatchBody(t *task.Task) string {
	body := fmt.Sprintf("各位老师好：\n\n请填写附件中的《%s》模板并直接回复本邮件，回复时请保留邮件主题。\n", t.Name)
	if t.Description.Valid && t.Description.String != "" {
		body += "\n" + t.Description.String + "\n"
	}
	if t.Deadline.Valid {
		body += fmt.Sprintf("\n截止时间：%s\n", t.Deadline.Time.Format("2006-01-02"))
	}
	body += "\n谢谢配合！"
	return body
}
