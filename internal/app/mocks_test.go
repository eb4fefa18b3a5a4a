package app

import (
	"context"
	"errors"
	"io"
	"time"

	domainmail "data_collector/internal/domain/mail"
	"data_collector/internal/domain/record"
	"data_collector/internal/domain/task"
	"data_collector/internal/domain/teacher"

	"github.com/sirupsen/logrus"
)

var errNotStubbed = errors.New("not stubbed")

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type mockTaskRepo struct {
	CreateFn    func(ctx context.Context, t *task.Task) error
	GetByIDFn   func(ctx context.Context, id int64) (*task.Task, error)
	GetByNameFn func(ctx context.Context, name string) (*task.Task, error)
	UpdateFn    func(ctx context.Context, t *task.Task) error
	ListAllFn   func(ctx context.Context) ([]*task.Task, error)
	DeleteFn    func(ctx context.Context, id int64) error
}

func (m *mockTaskRepo) Create(ctx context.Context, t *task.Task) error {
	if m.CreateFn == nil {
		return errNotStubbed
	}
	return m.CreateFn(ctx, t)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*task.Task, error) {
	if m.GetByIDFn == nil {
		return nil, errNotStubbed
	}
	return m.GetByIDFn(ctx, id)
}

func (m *mockTaskRepo) GetByName(ctx context.Context, name string) (*task.Task, error) {
	if m.GetByNameFn == nil {
		return nil, errNotStubbed
	}
	return m.GetByNameFn(ctx, name)
}

func (m *mockTaskRepo) Update(ctx context.Context, t *task.Task) error {
	if m.UpdateFn == nil {
		return errNotStubbed
	}
	return m.UpdateFn(ctx, t)
}

func (m *mockTaskRepo) ListAll(ctx context.Context) ([]*task.Task, error) {
	if m.ListAllFn == nil {
		return nil, errNotStubbed
	}
	return m.ListAllFn(ctx)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn == nil {
		return errNotStubbed
	}
	return m.DeleteFn(ctx, id)
}

type mockTeacherRepo struct {
	CreateFn     func(ctx context.Context, t *teacher.Teacher) error
	GetByIDFn    func(ctx context.Context, id int64) (*teacher.Teacher, error)
	GetByEmailFn func(ctx context.Context, email string) (*teacher.Teacher, error)
	UpdateFn     func(ctx context.Context, t *teacher.Teacher) error
	ListAllFn    func(ctx context.Context) ([]*teacher.Teacher, error)
	DeleteFn     func(ctx context.Context, id int64) error
}

func (m *mockTeacherRepo) Create(ctx context.Context, t *teacher.Teacher) error {
	if m.CreateFn == nil {
		return errNotStubbed
	}
	return m.CreateFn(ctx, t)
}

func (m *mockTeacherRepo) GetByID(ctx context.Context, id int64) (*teacher.Teacher, error) {
	if m.GetByIDFn == nil {
		return nil, errNotStubbed
	}
	return m.GetByIDFn(ctx, id)
}

func (m *mockTeacherRepo) GetByEmail(ctx context.Context, email string) (*teacher.Teacher, error) {
	if m.GetByEmailFn == nil {
		return nil, errNotStubbed
	}
	return m.GetByEmailFn(ctx, email)
}

func (m *mockTeacherRepo) Update(ctx context.Context, t *teacher.Teacher) error {
	if m.UpdateFn == nil {
		return errNotStubbed
	}
	return m.UpdateFn(ctx, t)
}

func (m *mockTeacherRepo) ListAll(ctx context.Context) ([]*teacher.Teacher, error) {
	if m.ListAllFn == nil {
		return nil, errNotStubbed
	}
	return m.ListAllFn(ctx)
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn == nil {
		return errNotStubbed
	}
	return m.DeleteFn(ctx, id)
}

type mockRecordRepo struct {
	CreateFn                   func(ctx context.Context, r *record.Record) error
	GetByIDFn                  func(ctx context.Context, id int64) (*record.Record, error)
	GetByTaskAndTeacherFn      func(ctx context.Context, taskID, teacherID int64) (*record.Record, error)
	ListByTaskFn               func(ctx context.Context, taskID int64) ([]*record.Record, error)
	ListByTaskAndStatusFn      func(ctx context.Context, taskID int64, status record.Status) ([]*record.Record, error)
	CountByStatusFn            func(ctx context.Context, taskID int64) (map[record.Status]int, error)
	MarkSentFn                 func(ctx context.Context, recordID int64, sentAt time.Time) error
	TouchSentFn                func(ctx context.Context, recordID int64, sentAt time.Time) error
	ListFieldValuesFn          func(ctx context.Context, recordID int64) ([]*record.FieldValue, error)
	ListTaskIDsAwaitingReplyFn func(ctx context.Context) ([]int64, error)
}

func (m *mockRecordRepo) Create(ctx context.Context, r *record.Record) error {
	if m.CreateFn == nil {
		return errNotStubbed
	}
	return m.CreateFn(ctx, r)
}

func (m *mockRecordRepo) GetByID(ctx context.Context, id int64) (*record.Record, error) {
	if m.GetByIDFn == nil {
		return nil, errNotStubbed
	}
	return m.GetByIDFn(ctx, id)
}

func (m *mockRecordRepo) GetByTaskAndTeacher(ctx context.Context, taskID, teacherID int64) (*record.Record, error) {
	if m.GetByTaskAndTeacherFn == nil {
		return nil, errNotStubbed
	}
	return m.GetByTaskAndTeacherFn(ctx, taskID, teacherID)
}

func (m *mockRecordRepo) ListByTask(ctx context.Context, taskID int64) ([]*record.Record, error) {
	if m.ListByTaskFn == nil {
		return nil, errNotStubbed
	}
	return m.ListByTaskFn(ctx, taskID)
}

func (m *mockRecordRepo) ListByTaskAndStatus(ctx context.Context, taskID int64, status record.Status) ([]*record.Record, error) {
	if m.ListByTaskAndStatusFn == nil {
		return nil, errNotStubbed
	}
	return m.ListByTaskAndStatusFn(ctx, taskID, status)
}

func (m *mockRecordRepo) CountByStatus(ctx context.Context, taskID int64) (map[record.Status]int, error) {
	if m.CountByStatusFn == nil {
		return nil, errNotStubbed
	}
	return m.CountByStatusFn(ctx, taskID)
}

func (m *mockRecordRepo) MarkSent(ctx context.Context, recordID int64, sentAt time.Time) error {
	if m.MarkSentFn == nil {
		return errNotStubbed
	}
	return m.MarkSentFn(ctx, recordID, sentAt)
}

func (m *mockRecordRepo) TouchSent(ctx context.Context, recordID int64, sentAt time.Time) error {
	if m.TouchSentFn == nil {
		return errNotStubbed
	}
	return m.TouchSentFn(ctx, recordID, sentAt)
}

func (m *mockRecordRepo) ListFieldValues(ctx context.Context, recordID int64) ([]*record.FieldValue, error) {
	if m.ListFieldValuesFn == nil {
		return nil, errNotStubbed
	}
	return m.ListFieldValuesFn(ctx, recordID)
}

func (m *mockRecordRepo) ListTaskIDsAwaitingReply(ctx context.Context) ([]int64, error) {
	if m.ListTaskIDsAwaitingReplyFn == nil {
		return nil, errNotStubbed
	}
	return m.ListTaskIDsAwaitingReplyFn(ctx)
}

type mockLocator struct {
	FindCandidatesFn func(keyword string, since time.Time, max int) ([]domainmail.Header, error)
	FetchMessageFn   func(uid uint32) (*domainmail.Message, error)
	closed           bool
}

func (m *mockLocator) FindCandidates(keyword string, since time.Time, max int) ([]domainmail.Header, error) {
	if m.FindCandidatesFn == nil {
		return nil, errNotStubbed
	}
	return m.FindCandidatesFn(keyword, since, max)
}

func (m *mockLocator) FetchMessage(uid uint32) (*domainmail.Message, error) {
	if m.FetchMessageFn == nil {
		return nil, errNotStubbed
	}
	return m.FetchMessageFn(uid)
}

func (m *mockLocator) Close() error {
	m.closed = true
	return nil
}

type mockParser struct {
	ParseTemplateFn  func(path string) ([]task.Field, error)
	CreateTemplateFn func(fields []task.Field, outputPath string) error
	ParseReplyFn     func(data []byte, expected []task.Field) (map[string]string, error)
}

func (m *mockParser) ParseTemplate(path string) ([]task.Field, error) {
	if m.ParseTemplateFn == nil {
		return nil, errNotStubbed
	}
	return m.ParseTemplateFn(path)
}

func (m *mockParser) CreateTemplate(fields []task.Field, outputPath string) error {
	if m.CreateTemplateFn == nil {
		return errNotStubbed
	}
	return m.CreateTemplateFn(fields, outputPath)
}

func (m *mockParser) ParseReply(data []byte, expected []task.Field) (map[string]string, error) {
	if m.ParseReplyFn == nil {
		return nil, errNotStubbed
	}
	return m.ParseReplyFn(data, expected)
}

type savedReply struct {
	TaskID    int64
	TeacherID int64
	RecordID  int64
	Values    map[string]string
	RepliedAt time.Time
	Subject   string
}

type mockReplyStore struct {
	SaveReplyFn func(ctx context.Context, tsk *task.Task, tch *teacher.Teacher, rec *record.Record, values map[string]string, repliedAt time.Time, subject string) error
	saved       []savedReply
}

func (m *mockReplyStore) SaveReply(ctx context.Context, tsk *task.Task, tch *teacher.Teacher, rec *record.Record, values map[string]string, repliedAt time.Time, subject string) error {
	if m.SaveReplyFn != nil {
		if err := m.SaveReplyFn(ctx, tsk, tch, rec, values, repliedAt, subject); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, savedReply{
		TaskID:    tsk.ID,
		TeacherID: tch.ID,
		RecordID:  rec.ID,
		Values:    values,
		RepliedAt: repliedAt,
		Subject:   subject,
	})
	rec.Status = record.StatusReplied
	return nil
}

type mockSchema struct {
	CreateTaskTableFn func(ctx context.Context, taskID int64, fields []task.Field) (map[string]string, error)
	dropped           []int64
}

func (m *mockSchema) CreateTaskTable(ctx context.Context, taskID int64, fields []task.Field) (map[string]string, error) {
	if m.CreateTaskTableFn == nil {
		return nil, errNotStubbed
	}
	return m.CreateTaskTableFn(ctx, taskID, fields)
}

func (m *mockSchema) DropTaskTable(ctx context.Context, taskID int64) {
	m.dropped = append(m.dropped, taskID)
}

type sentMail struct {
	To         string
	Subject    string
	Attachment string
}

type mockSender struct {
	SendFn func(to, subject, body, attachmentPath string) error
	sent   []sentMail
}

func (m *mockSender) Send(to, subject, body, attachmentPath string) error {
	if m.SendFn != nil {
		if err := m.SendFn(to, subject, body, attachmentPath); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Attachment: attachmentPath})
	return nil
}
