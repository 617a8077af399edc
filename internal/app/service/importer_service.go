package service

import (
	"fmt"
	"time"

	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

// ImporterService turns a downloaded settlement-day report into the
// settlement_day table state, and activates rows from the transaction
// report. It never touches from_date on existing rows.
type ImporterService interface {
	ImportSchedule(rows []ReportRow) (*model.RunRecord, error)
	ActivateFromTransactions(rows []TransactionRow) (int, error)
}

type importerService struct {
	scheduleRepo repository.ScheduleRepository
	runRepo      repository.RunRepository
}

// NewImporterService creates a schedule importer service
func NewImporterService(scheduleRepo repository.ScheduleRepository, runRepo repository.RunRepository) ImporterService {
	return &importerService{
		scheduleRepo: scheduleRepo,
		runRepo:      runRepo,
	}
}

// ImportSchedule applies one report: every day column in the table is
// cleared first, then each report row is normalized and upserted by its
// (merchant, store) pair. Merchants missing from the report keep their row
// and from_date but end up with no scheduled days.
func (s *importerService) ImportSchedule(rows []ReportRow) (*model.RunRecord, error) {
	run := &model.RunRecord{
		Kind:      model.RunKindImport,
		StartedAt: time.Now(),
	}
	if err := s.runRepo.CreateRun(run); err != nil {
		return nil, err
	}

	if err := s.scheduleRepo.ClearAllDayMarkers(); err != nil {
		run.AddNote(fmt.Sprintf("clear day markers failed: %v", err))
		s.finish(run)
		return run, err
	}

	for _, row := range rows {
		run.RowsSeen++

		if row.MerchantName == "" || row.StoreName == "" {
			logger.Warn("Skipping report row with blank merchant or store", map[string]interface{}{
				"merchant": row.MerchantName,
				"store":    row.StoreName,
			})
			run.Skipped++
			continue
		}

		created, err := s.upsert(row)
		if err != nil {
			run.AddNote(fmt.Sprintf("upsert failed for %s / %s: %v", row.MerchantName, row.StoreName, err))
			run.Errored++
			continue
		}
		if created {
			run.Created++
		} else {
			run.Updated++
		}
	}

	s.finish(run)
	logger.Info("Schedule import finished", map[string]interface{}{
		"rows_seen": run.RowsSeen,
		"created":   run.Created,
		"updated":   run.Updated,
		"skipped":   run.Skipped,
		"errored":   run.Errored,
	})
	return run, nil
}

func (s *importerService) upsert(row ReportRow) (created bool, err error) {
	days := ParseWithdrawDays(row.WithdrawDays)
	if len(days) == 0 {
		logger.Warn("Report row matched no weekdays", map[string]interface{}{
			"merchant":      row.MerchantName,
			"store":         row.StoreName,
			"withdraw_days": row.WithdrawDays,
		})
	}

	existing, err := s.scheduleRepo.FindByMerchantStore(row.MerchantName, row.StoreName)
	if err != nil {
		return false, err
	}

	if existing != nil {
		// refresh the day columns only; id and from_date are preserved
		applyDays(existing, days)
		if row.StoreID != "" {
			existing.StoreID = row.StoreID
		}
		return false, s.scheduleRepo.UpdateDayMarkers(existing)
	}

	fresh := &model.ScheduleRow{
		MerchantName: row.MerchantName,
		StoreName:    row.StoreName,
		StoreID:      row.StoreID,
		FromDate:     model.NotActivated,
	}
	applyDays(fresh, days)
	return true, s.scheduleRepo.Create(fresh)
}

// ActivateFromTransactions gives not-yet-activated rows a real from_date:
// the earliest transaction date seen for that merchant/store. Already
// activated rows are untouched.
func (s *importerService) ActivateFromTransactions(rows []TransactionRow) (int, error) {
	type key struct{ merchant, store string }
	earliest := make(map[key]TransactionRow)
	for _, row := range rows {
		if row.MerchantName == "" || row.StoreName == "" {
			continue
		}
		k := key{normalizeKey(row.MerchantName), normalizeKey(row.StoreName)}
		if prev, ok := earliest[k]; !ok || row.Date.Before(prev.Date) {
			earliest[k] = row
		}
	}

	activated := 0
	for _, row := range earliest {
		schedule, err := s.scheduleRepo.FindByMerchantStore(row.MerchantName, row.StoreName)
		if err != nil {
			return activated, err
		}
		if schedule == nil || schedule.Activated() {
			continue
		}
		if err := s.scheduleRepo.ActivateFromDate(schedule.ID, row.Date); err != nil {
			logger.Error("Failed to activate schedule row", err, map[string]interface{}{
				"merchant": row.MerchantName,
				"store":    row.StoreName,
			})
			continue
		}
		activated++
		logger.Info("Activated schedule row", map[string]interface{}{
			"merchant":  row.MerchantName,
			"store":     row.StoreName,
			"from_date": row.Date.Format("2006-01-02"),
		})
	}
	return activated, nil
}

func (s *importerService) finish(run *model.RunRecord) {
	now := time.Now()
	run.FinishedAt = &now
	if err := s.runRepo.SaveRun(run); err != nil {
		logger.Error("Failed to persist import run record", err)
	}
}

func applyDays(row *model.ScheduleRow, days map[time.Weekday]bool) {
	for _, day := range weekdays {
		if days[day] {
			row.SetDayMarker(day, model.MarkerOn)
		} else {
			row.SetDayMarker(day, "")
		}
	}
}
