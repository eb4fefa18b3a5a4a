package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"data_collector/internal/app"
	"data_collector/internal/domain/mail"
	"data_collector/internal/domain/teacher"
	"data_collector/internal/infra/config"
	"data_collector/internal/infra/database"
	"data_collector/internal/infra/excel"
	"data_collector/internal/infra/imapmail"
	"data_collector/internal/infra/logger"
	"data_collector/internal/infra/scheduler"
	"data_collector/internal/infra/smtpmail"

	"github.com/sirupsen/logrus"
)

const usage = `Usage: collector <command> [flags]

Commands:
  serve        run the periodic mailbox reply sweep (default)
  create-task  register a task from a template workbook
  assign       target teachers with a task
  send         mail the template to a task's unsent teachers
  remind       re-mail teachers who have not replied yet
  check        run one ingestion pass for a task now
  export       write a task's summary workbook
  correct      enter a teacher's values by hand
  delete-task  remove a task, its records and its data table
  add-teacher  add a teacher to the roster
  teachers     list the roster
`

type services struct {
	tasks     *app.TaskService
	dispatch  *app.DispatchService
	ingestion *app.IngestionService
	export    *app.ExportService
	cfg       *config.AppConfig
	log       *logrus.Logger
}

func main() {
	fmt.Println("Data Collector starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Fatalf("Could not apply database migrations: %v", err)
	}

	// Repositories
	teacherRepo := database.NewPostgresTeacherRepository(db)
	taskRepo := database.NewPostgresTaskRepository(db)
	recordRepo := database.NewPostgresRecordRepository(db)
	log.Info("Repositories initialized.")

	// Dynamic schema and atomic reply persistence
	tables := database.NewDynamicTableManager(db, log)
	replyWriter := database.NewPostgresReplyWriter(db, tables)

	// Workbook adapter and outbound mail
	parser := excel.NewParser()
	sender := smtpmail.NewSender(cfg.SMTPServer, cfg.SMTPPort, cfg.MailUsername, cfg.MailPassword, log)

	dialMailbox := func() (mail.Locator, error) {
		return imapmail.Dial(cfg.IMAPServer, cfg.IMAPPort, cfg.MailUsername, cfg.MailPassword, log)
	}

	svc := &services{
		tasks:    app.NewTaskService(taskRepo, teacherRepo, recordRepo, parser, tables, replyWriter, cfg.TemplateDir, log),
		dispatch: app.NewDispatchService(taskRepo, teacherRepo, recordRepo, sender, log),
		ingestion: app.NewIngestionService(
			taskRepo, teacherRepo, recordRepo, parser, replyWriter, dialMailbox,
			cfg.SubjectMarker, cfg.ReplyLookbackDays, cfg.MaxCandidateEmails, log,
		),
		export: app.NewExportService(taskRepo, recordRepo, tables, parser, cfg.ExportDir, log),
		cfg:    cfg,
		log:    log,
	}
	log.Info("Application services initialized.")

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		svc.runServe()
	case "create-task":
		svc.runCreateTask(args)
	case "assign":
		svc.runAssign(args)
	case "send":
		svc.runSend(args)
	case "remind":
		svc.runRemind(args)
	case "check":
		svc.runCheck(args)
	case "export":
		svc.runExport(args)
	case "correct":
		svc.runCorrect(args)
	case "delete-task":
		svc.runDeleteTask(args)
	case "add-teacher":
		svc.runAddTeacher(args, teacherRepo)
	case "teachers":
		svc.runListTeachers(teacherRepo)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func (s *services) runServe() {
	ingestScheduler := scheduler.NewIngestScheduler(
		func(ctx context.Context) error {
			_, err := s.ingestion.CheckAllOpenTasks(ctx)
			return err
		},
		s.log,
		s.cfg.CronSpecCheckReplies,
		s.cfg.IngestPassTimeout,
	)
	ingestScheduler.Start()
	s.log.Info("Application setup complete. Scheduler is running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.log.Info("Shutting down application...")
	ingestScheduler.Stop()
	s.log.Info("Application shut down gracefully.")
}

func (s *services) runCreateTask(args []string) {
	fs := flag.NewFlagSet("create-task", flag.ExitOnError)
	name := fs.String("name", "", "task name (unique)")
	description := fs.String("description", "", "task description, included in the email body")
	deadlineStr := fs.String("deadline", "", "deadline, YYYY-MM-DD")
	template := fs.String("template", "", "path to the template workbook")
	fs.Parse(args)
	if *name == "" || *template == "" {
		s.log.Fatal("create-task requires -name and -template.")
	}

	var deadline *time.Time
	if *deadlineStr != "" {
		d, err := time.ParseInLocation("2006-01-02", *deadlineStr, time.Local)
		if err != nil {
			s.log.Fatalf("Invalid -deadline: %v", err)
		}
		deadline = &d
	}

	t, err := s.tasks.CreateTask(context.Background(), *name, *description, deadline, *template)
	if err != nil {
		s.log.Fatalf("Could not create task: %v", err)
	}
	fmt.Printf("Task %d created with fields: %s\n", t.ID, strings.Join(t.FieldNames(), ", "))
}

func (s *services) runAssign(args []string) {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	taskID := fs.Int64("task", 0, "task ID")
	teachers := fs.String("teachers", "", "comma-separated teacher IDs")
	fs.Parse(args)
	if *taskID == 0 || *teachers == "" {
		s.log.Fatal("assign requires -task and -teachers.")
	}

	ids := make([]int64, 0)
	for _, raw := range strings.Split(*teachers, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			s.log.Fatalf("Invalid teacher ID %q: %v", raw, err)
		}
		ids = append(ids, id)
	}

	created, err := s.tasks.AssignTeachers(context.Background(), *taskID, ids)
	if err != nil {
		s.log.Fatalf("Could not assign teachers: %v", err)
	}
	fmt.Printf("%d teachers newly assigned to task %d.\n", created, *taskID)
}

func (s *services) runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	taskID := fs.Int64("task", 0, "task ID")
	fs.Parse(args)
	if *taskID == 0 {
		s.log.Fatal("send requires -task.")
	}

	report, err := s.dispatch.SendTaskEmails(context.Background(), *taskID)
	if err != nil {
		s.log.Fatalf("Dispatch failed: %v", err)
	}
	fmt.Printf("Sent %d emails for task %d; %d failures.\n", report.Sent, *taskID, len(report.Failures))
}

func (s *services) runRemind(args []string) {
	fs := flag.NewFlagSet("remind", flag.ExitOnError)
	taskID := fs.Int64("task", 0, "task ID")
	fs.Parse(args)
	if *taskID == 0 {
		s.log.Fatal("remind requires -task.")
	}

	report, err := s.dispatch.RemindPending(context.Background(), *taskID)
	if err != nil {
		s.log.Fatalf("Reminder pass failed: %v", err)
	}
	fmt.Printf("Sent %d reminders for task %d; %d failures.\n", report.Sent, *taskID, len(report.Failures))
}

func (s *services) runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	taskID := fs.Int64("task", 0, "task ID (0 sweeps every open task)")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.IngestPassTimeout)
	defer cancel()

	if *taskID == 0 {
		reports, err := s.ingestion.CheckAllOpenTasks(ctx)
		if err != nil {
			s.log.Fatalf("Reply sweep failed: %v", err)
		}
		for _, r := range reports {
			fmt.Printf("Task %d: %d processed, %d saved, %d skipped, %d failed.\n",
				r.TaskID, r.Processed, r.Succeeded, r.Skipped, len(r.Failures))
		}
		return
	}

	report, err := s.ingestion.CheckReplies(ctx, *taskID)
	if err != nil {
		s.log.Fatalf("Ingestion pass failed: %v", err)
	}
	fmt.Printf("Task %d: %d candidates, %d processed, %d saved, %d skipped, %d failed.\n",
		report.TaskID, report.Candidates, report.Processed, report.Succeeded, report.Skipped, len(report.Failures))
}

func (s *services) runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	taskID := fs.Int64("task", 0, "task ID")
	fs.Parse(args)
	if *taskID == 0 {
		s.log.Fatal("export requires -task.")
	}

	path, err := s.export.GenerateSummary(context.Background(), *taskID)
	if err != nil {
		s.log.Fatalf("Export failed: %v", err)
	}
	counts, err := s.export.Progress(context.Background(), *taskID)
	if err == nil {
		fmt.Printf("Progress: %v\n", counts)
	}
	fmt.Printf("Summary written to %s\n", path)
}

func (s *services) runCorrect(args []string) {
	fs := flag.NewFlagSet("correct", flag.ExitOnError)
	recordID := fs.Int64("record", 0, "email record ID")
	set := fs.String("set", "", "values as field=value pairs separated by ';'")
	fs.Parse(args)
	if *recordID == 0 || *set == "" {
		s.log.Fatal("correct requires -record and -set.")
	}

	values := make(map[string]string)
	for _, pair := range strings.Split(*set, ";") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			s.log.Fatalf("Invalid -set pair %q, want field=value.", pair)
		}
		values[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	if err := s.tasks.CorrectRecord(context.Background(), *recordID, values); err != nil {
		s.log.Fatalf("Correction failed: %v", err)
	}
	fmt.Printf("Record %d corrected.\n", *recordID)
}

func (s *services) runDeleteTask(args []string) {
	fs := flag.NewFlagSet("delete-task", flag.ExitOnError)
	taskID := fs.Int64("task", 0, "task ID")
	fs.Parse(args)
	if *taskID == 0 {
		s.log.Fatal("delete-task requires -task.")
	}

	if err := s.tasks.DeleteTask(context.Background(), *taskID); err != nil {
		s.log.Fatalf("Could not delete task: %v", err)
	}
	fmt.Printf("Task %d deleted.\n", *taskID)
}

func (s *services) runAddTeacher(args []string, repo teacher.Repository) {
	fs := flag.NewFlagSet("add-teacher", flag.ExitOnError)
	name := fs.String("name", "", "teacher name")
	department := fs.String("department", "", "department")
	email := fs.String("email", "", "email address (unique; replies are matched against it)")
	fs.Parse(args)
	if *name == "" || *email == "" {
		s.log.Fatal("add-teacher requires -name and -email.")
	}

	t := &teacher.Teacher{Name: *name, Department: *department, Email: *email}
	if err := repo.Create(context.Background(), t); err != nil {
		s.log.Fatalf("Could not add teacher: %v", err)
	}
	fmt.Printf("Teacher %d (%s) added.\n", t.ID, t.Name)
}

func (s *services) runListTeachers(repo teacher.Repository) {
	teachers, err := repo.ListAll(context.Background())
	if err != nil {
		s.log.Fatalf("Could not list teachers: %v", err)
	}
	for _, t := range teachers {
		fmt.Printf("%d\t%s\t%s\t%s\n", t.ID, t.Name, t.Department, t.Email)
	}
}
