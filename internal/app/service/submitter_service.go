package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
	"github.com/mahatab-code/settlement-automation/internal/artifact"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

// SettlementConsole is the web-automation capability the submitter drives.
// The console owns selectors, waits and fallbacks; the submitter only sees
// requests and classified results.
type SettlementConsole interface {
	// EnsureReady logs in and lands on the settlement-creation form.
	EnsureReady(ctx context.Context) error
	// CreateSettlement fills and submits the creation form for one row and
	// classifies the result within the console's bounded wait.
	CreateSettlement(ctx context.Context, req model.SettlementRequest) (model.SubmissionStatus, error)
	// Recover returns the session to the creation form after a failed row,
	// re-logging-in if navigation is unrecoverable.
	Recover(ctx context.Context) error
	// Screenshot captures the current page for diagnostics.
	Screenshot(ctx context.Context) ([]byte, error)
}

// SubmitterService replays the settlement_day schedule: for every row due
// today it submits a settlement covering [from_date, yesterday] and advances
// from_date only on confirmed, durably recorded success.
type SubmitterService interface {
	Run(ctx context.Context, exclusions *ExclusionList) (*model.RunRecord, error)
	DueToday(rows []model.ScheduleRow, exclusions *ExclusionList, run *model.RunRecord) []model.ScheduleRow
}

type submitterService struct {
	scheduleRepo repository.ScheduleRepository
	runRepo      repository.RunRepository
	console      SettlementConsole
	recorder     artifact.Recorder
	loc          *time.Location
	now          func() time.Time
}

// NewSubmitterService creates a settlement submitter service
func NewSubmitterService(
	scheduleRepo repository.ScheduleRepository,
	runRepo repository.RunRepository,
	console SettlementConsole,
	recorder artifact.Recorder,
	loc *time.Location,
) SubmitterService {
	return &submitterService{
		scheduleRepo: scheduleRepo,
		runRepo:      runRepo,
		console:      console,
		recorder:     recorder,
		loc:          loc,
		now:          time.Now,
	}
}

// Run performs one submitter pass. Rows are processed strictly one at a
// time in table order; a failure on one row never blocks the rest.
func (s *submitterService) Run(ctx context.Context, exclusions *ExclusionList) (*model.RunRecord, error) {
	run := &model.RunRecord{
		Kind:      model.RunKindSubmit,
		StartedAt: s.now(),
	}
	if err := s.runRepo.CreateRun(run); err != nil {
		return nil, err
	}

	rows, err := s.scheduleRepo.FindAll()
	if err != nil {
		run.AddNote(fmt.Sprintf("failed to read schedule: %v", err))
		s.finish(run)
		return run, err
	}

	due := s.DueToday(rows, exclusions, run)
	run.Queued = len(due)

	if len(due) == 0 {
		s.finish(run)
		logger.Info("No rows due for settlement today", map[string]interface{}{
			"skipped":  run.Skipped,
			"excluded": run.Excluded,
		})
		return run, nil
	}

	if err := s.console.EnsureReady(ctx); err != nil {
		run.AddNote(fmt.Sprintf("console session could not be opened: %v", err))
		s.finish(run)
		logger.Error("Submitter aborted before processing any row", err)
		return run, err
	}

	nowLocal := s.now().In(s.loc)
	today := model.DateOnly(nowLocal)
	yesterday := today.AddDate(0, 0, -1)
	runDate := today.Format("2006-01-02")

	for _, row := range due {
		outcome, note := s.processRow(ctx, row, today, yesterday, runDate)
		run.Count(outcome)
		if outcome == model.OutcomeUncertain || outcome == model.OutcomeError {
			run.AddNote(fmt.Sprintf("[%s] %s / %s: %s", outcome, row.MerchantName, row.StoreName, note))
		}
	}

	s.finish(run)
	logger.Info("Settlement run finished", map[string]interface{}{
		"queued":      run.Queued,
		"skipped":     run.Skipped,
		"excluded":    run.Excluded,
		"succeeded":   run.Succeeded,
		"no_eligible": run.NoEligible,
		"uncertain":   run.Uncertain,
		"errored":     run.Errored,
	})
	return run, nil
}

// DueToday filters the schedule to rows eligible this run: today's weekday
// flag set, a real (non-sentinel) from_date, not excluded, and not already
// settled today. Today and yesterday both resolve in the fixed civil
// timezone, never the server clock.
func (s *submitterService) DueToday(rows []model.ScheduleRow, exclusions *ExclusionList, run *model.RunRecord) []model.ScheduleRow {
	nowLocal := s.now().In(s.loc)
	weekday := nowLocal.Weekday()
	runDate := model.DateOnly(nowLocal).Format("2006-01-02")

	var due []model.ScheduleRow
	for _, row := range rows {
		if !row.ScheduledOn(weekday) {
			continue
		}
		if exclusions.Excluded(row.MerchantName, row.StoreName) {
			if run != nil {
				run.Excluded++
			}
			continue
		}
		if !row.Activated() {
			// not yet activated; a day flag alone never makes a row due
			if run != nil {
				run.Skipped++
			}
			continue
		}
		settled, err := s.alreadySettled(row.ID, runDate)
		if err != nil {
			logger.Error("Failed to check submission log, leaving row queued", err, map[string]interface{}{
				"merchant": row.MerchantName,
				"store":    row.StoreName,
			})
		}
		if settled {
			if run != nil {
				run.Skipped++
			}
			continue
		}
		due = append(due, row)
	}
	return due
}

func (s *submitterService) alreadySettled(rowID uint, runDate string) (bool, error) {
	log, err := s.runRepo.FindSubmission(rowID, runDate)
	if err != nil {
		return false, err
	}
	return log != nil && log.Settled(), nil
}

// processRow drives one settlement creation and persists its outcome.
// Any console error is caught here; the session is recovered before the
// next row.
func (s *submitterService) processRow(ctx context.Context, row model.ScheduleRow, today, yesterday time.Time, runDate string) (model.Outcome, string) {
	req := model.SettlementRequest{
		MerchantName: row.MerchantName,
		StoreName:    row.StoreName,
		StoreID:      row.StoreID,
		FromDate:     model.DateOnly(row.FromDate),
		ToDate:       yesterday,
	}

	logger.Info("Submitting settlement", map[string]interface{}{
		"merchant": row.MerchantName,
		"store":    row.StoreName,
		"from":     req.FromDate.Format("2006-01-02"),
		"to":       req.ToDate.Format("2006-01-02"),
	})

	status, err := s.console.CreateSettlement(ctx, req)
	if err != nil {
		note := err.Error()
		s.captureFailure(ctx, row, runDate)
		s.recover(ctx, row)
		s.logOutcome(row.ID, runDate, model.OutcomeError, note)
		return model.OutcomeError, note
	}

	switch status {
	case model.SubmissionAccepted:
		return s.confirmSuccess(row, today, runDate)
	case model.SubmissionNoEligible:
		s.logOutcome(row.ID, runDate, model.OutcomeNoEligible, "")
		return model.OutcomeNoEligible, ""
	default:
		note := "submission result not classifiable within wait bound"
		s.captureFailure(ctx, row, runDate)
		s.recover(ctx, row)
		s.logOutcome(row.ID, runDate, model.OutcomeUncertain, note)
		return model.OutcomeUncertain, note
	}
}

// confirmSuccess records the success durably before advancing from_date.
// The console accepting the form is not success until both writes land; a
// failed write downgrades the row to error so nothing claims success
// without a record.
func (s *submitterService) confirmSuccess(row model.ScheduleRow, today time.Time, runDate string) (model.Outcome, string) {
	log := &model.SubmissionLog{
		ScheduleRowID: row.ID,
		RunDate:       runDate,
		Outcome:       model.OutcomeSuccess,
	}
	if err := s.runRepo.LogSubmission(log); err != nil {
		note := fmt.Sprintf("settlement accepted but submission log write failed: %v", err)
		return model.OutcomeError, note
	}

	if err := s.scheduleRepo.AdvanceFromDate(row.ID, today); err != nil {
		note := fmt.Sprintf("settlement accepted but from_date advance failed: %v", err)
		s.logOutcome(row.ID, runDate, model.OutcomeError, note)
		return model.OutcomeError, note
	}

	logger.Info("Settlement created", map[string]interface{}{
		"merchant":      row.MerchantName,
		"store":         row.StoreName,
		"new_from_date": today.Format("2006-01-02"),
	})
	return model.OutcomeSuccess, ""
}

func (s *submitterService) logOutcome(rowID uint, runDate string, outcome model.Outcome, note string) {
	log := &model.SubmissionLog{
		ScheduleRowID: rowID,
		RunDate:       runDate,
		Outcome:       outcome,
		Note:          note,
	}
	if err := s.runRepo.LogSubmission(log); err != nil {
		logger.Error("Failed to write submission log", err, map[string]interface{}{
			"schedule_row_id": rowID,
			"outcome":         outcome,
		})
	}
}

func (s *submitterService) captureFailure(ctx context.Context, row model.ScheduleRow, runDate string) {
	png, err := s.console.Screenshot(ctx)
	if err != nil || len(png) == 0 {
		return
	}
	label := fmt.Sprintf("%s/%s-%s", runDate, row.MerchantName, row.StoreName)
	if url, err := s.recorder.Record(ctx, label, png); err == nil && url != "" {
		logger.Info("Recorded failure artifact", map[string]interface{}{
			"merchant": row.MerchantName,
			"store":    row.StoreName,
			"artifact": url,
		})
	}
}

func (s *submitterService) recover(ctx context.Context, row model.ScheduleRow) {
	if err := s.console.Recover(ctx); err != nil {
		logger.Error("Console session recovery failed", err, map[string]interface{}{
			"merchant": row.MerchantName,
			"store":    row.StoreName,
		})
	}
}

func (s *submitterService) finish(run *model.RunRecord) {
	now := s.now()
	run.FinishedAt = &now
	if err := s.runRepo.SaveRun(run); err != nil {
		logger.Error("Failed to persist submit run record", err)
	}
}
