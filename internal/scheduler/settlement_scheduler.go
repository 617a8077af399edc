package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mahatab-code/settlement-automation/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job is one nightly procedure (import or submit).
type Job func(ctx context.Context) error

// SettlementScheduler triggers the schedule import and the settlement
// submission on their nightly cron expressions. A mutex serializes the two
// jobs; they share the settlement_day table and must never overlap.
type SettlementScheduler struct {
	cron       *cron.Cron
	importCron string
	submitCron string
	importJob  Job
	submitJob  Job
	mu         sync.Mutex
}

// NewSettlementScheduler creates the nightly scheduler in the given civil timezone.
func NewSettlementScheduler(loc *time.Location, importCron, submitCron string, importJob, submitJob Job) *SettlementScheduler {
	return &SettlementScheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		importCron: importCron,
		submitCron: submitCron,
		importJob:  importJob,
		submitJob:  submitJob,
	}
}

// Start registers both jobs and starts the cron loop.
func (s *SettlementScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.importCron, func() {
		s.runSerialized("schedule import", s.importJob)
	}); err != nil {
		logger.Error("Failed to add import cron job", err)
		return err
	}

	if _, err := s.cron.AddFunc(s.submitCron, func() {
		s.runSerialized("settlement submit", s.submitJob)
	}); err != nil {
		logger.Error("Failed to add submit cron job", err)
		return err
	}

	s.cron.Start()
	logger.Info("Settlement scheduler started", map[string]interface{}{
		"import_cron": s.importCron,
		"submit_cron": s.submitCron,
	})
	return nil
}

func (s *SettlementScheduler) runSerialized(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Info("Starting scheduled job", map[string]interface{}{"job": name})
	if err := job(context.Background()); err != nil {
		logger.Error("Scheduled job failed", err, map[string]interface{}{"job": name})
		return
	}
	logger.Info("Scheduled job finished", map[string]interface{}{"job": name})
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *SettlementScheduler) Stop() {
	logger.Info("Stopping settlement scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Settlement scheduler stopped")
}
