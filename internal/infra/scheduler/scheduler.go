package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// IngestScheduler periodically sweeps the mailbox for replies to every task
// that is still awaiting some.
type IngestScheduler struct {
	cronEngine  *cron.Cron
	sweep       func(ctx context.Context) error
	logger      *logrus.Logger
	cronSpec    string
	passTimeout time.Duration
}

// NewIngestScheduler builds the scheduler around a sweep callback so it does
// not care which service implements the pass.
func NewIngestScheduler(
	sweep func(ctx context.Context) error,
	logger *logrus.Logger,
	cronSpec string, // e.g. "*/15 * * * *" (every 15 minutes)
	passTimeout time.Duration,
) *IngestScheduler {
	return &IngestScheduler{
		cronEngine:  cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		sweep:       sweep,
		logger:      logger,
		cronSpec:    cronSpec,
		passTimeout: passTimeout,
	}
}

func (s *IngestScheduler) Start() {
	s.logger.Info("Starting reply ingestion scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for mailbox reply sweep.")
		ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
		defer cancel()
		if err := s.sweep(ctx); err != nil {
			s.logger.Errorf("Error during mailbox reply sweep: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add reply sweep cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Infof("Reply ingestion scheduler started (spec %q).", s.cronSpec)
}

func (s *IngestScheduler) Stop() {
	s.logger.Info("Stopping reply ingestion scheduler...")
	ctx := s.cronEngine.Stop() // Stops new job runs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reply ingestion scheduler gracefully stopped.")
}
