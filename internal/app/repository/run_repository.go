package repository

import (
	"errors"

	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
	"gorm.io/gorm"
)

// RunRepository persists run summaries and the per-row submission log that
// backs same-day idempotence.
type RunRepository interface {
	CreateRun(run *model.RunRecord) error
	SaveRun(run *model.RunRecord) error
	LatestRun(kind model.RunKind) (*model.RunRecord, error)
	LogSubmission(log *model.SubmissionLog) error
	FindSubmission(scheduleRowID uint, runDate string) (*model.SubmissionLog, error)
}

type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a run repository
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// CreateRun inserts a fresh run record.
func (r *runRepository) CreateRun(run *model.RunRecord) error {
	if err := r.db.Create(run).Error; err != nil {
		logger.Error("Failed to create run record", err)
		return err
	}
	return nil
}

// SaveRun writes the run's current counters and finish time.
func (r *runRepository) SaveRun(run *model.RunRecord) error {
	if err := r.db.Save(run).Error; err != nil {
		logger.Error("Failed to save run record", err, map[string]interface{}{
			"run_id": run.ID,
		})
		return err
	}
	return nil
}

// LatestRun returns the most recent run of a kind, nil when none exists.
func (r *runRepository) LatestRun(kind model.RunKind) (*model.RunRecord, error) {
	var run model.RunRecord
	if err := r.db.Where("kind = ?", kind).
		Order("started_at DESC").
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("Failed to find latest run", err)
		return nil, err
	}
	return &run, nil
}

// LogSubmission upserts the processed-marker for one row and civil date.
// A retried row overwrites its earlier error/uncertain entry for the day.
func (r *runRepository) LogSubmission(log *model.SubmissionLog) error {
	existing, err := r.FindSubmission(log.ScheduleRowID, log.RunDate)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Outcome = log.Outcome
		existing.Note = log.Note
		*log = *existing
		return r.db.Save(existing).Error
	}
	if err := r.db.Create(log).Error; err != nil {
		logger.Error("Failed to log submission", err, map[string]interface{}{
			"schedule_row_id": log.ScheduleRowID,
			"run_date":        log.RunDate,
		})
		return err
	}
	return nil
}

// FindSubmission looks up the processed-marker for (row, civil date).
// Returns nil when the row has not been touched that day.
func (r *runRepository) FindSubmission(scheduleRowID uint, runDate string) (*model.SubmissionLog, error) {
	var log model.SubmissionLog
	if err := r.db.Where("schedule_row_id = ? AND run_date = ?", scheduleRowID, runDate).
		First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("Failed to find submission log", err)
		return nil, err
	}
	return &log, nil
}
