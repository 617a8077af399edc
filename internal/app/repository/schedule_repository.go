package repository

import (
	"errors"
	"time"

	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
	"gorm.io/gorm"
)

var ErrFromDateNotAdvanced = errors.New("from_date update matched no row (missing id or date would move backwards)")

// dayColumns in table order. Every clear/refresh touches all seven.
var dayColumns = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ScheduleRepository persists settlement_day rows. Each method is one
// short-lived transaction; callers get at-least-once semantics across a run.
type ScheduleRepository interface {
	FindAll() ([]model.ScheduleRow, error)
	FindByMerchantStore(merchantName, storeName string) (*model.ScheduleRow, error)
	Create(row *model.ScheduleRow) error
	UpdateDayMarkers(row *model.ScheduleRow) error
	ClearAllDayMarkers() error
	AdvanceFromDate(id uint, to time.Time) error
	ActivateFromDate(id uint, to time.Time) error
}

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a settlement schedule repository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

// FindAll returns every schedule row in natural read order.
func (r *scheduleRepository) FindAll() ([]model.ScheduleRow, error) {
	var rows []model.ScheduleRow
	if err := r.db.Order("id").Find(&rows).Error; err != nil {
		logger.Error("Failed to list schedule rows", err)
		return nil, err
	}
	return rows, nil
}

// FindByMerchantStore looks up the unique row for a merchant/store pair,
// case-insensitively. Returns nil when no row exists.
func (r *scheduleRepository) FindByMerchantStore(merchantName, storeName string) (*model.ScheduleRow, error) {
	var row model.ScheduleRow
	if err := r.db.
		Where("LOWER(merchant_name) = LOWER(?) AND LOWER(store_name) = LOWER(?)", merchantName, storeName).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("Failed to find schedule row", err, map[string]interface{}{
			"merchant": merchantName,
			"store":    storeName,
		})
		return nil, err
	}
	return &row, nil
}

// Create inserts a new schedule row.
func (r *scheduleRepository) Create(row *model.ScheduleRow) error {
	if err := r.db.Create(row).Error; err != nil {
		logger.Error("Failed to create schedule row", err, map[string]interface{}{
			"merchant": row.MerchantName,
			"store":    row.StoreName,
		})
		return err
	}
	return nil
}

// UpdateDayMarkers rewrites the seven day columns (and store_id) of an
// existing row, leaving id and from_date untouched.
func (r *scheduleRepository) UpdateDayMarkers(row *model.ScheduleRow) error {
	updates := map[string]interface{}{
		"store_id": row.StoreID,
	}
	for _, col := range dayColumns {
		updates[col] = row.DayMarker(weekdayByName(col))
	}
	if err := r.db.Model(&model.ScheduleRow{}).
		Where("id = ?", row.ID).
		Updates(updates).Error; err != nil {
		logger.Error("Failed to update day markers", err, map[string]interface{}{
			"id": row.ID,
		})
		return err
	}
	return nil
}

// ClearAllDayMarkers resets every day column across the whole table, so a
// merchant dropped from the next report ends up with no active schedule.
func (r *scheduleRepository) ClearAllDayMarkers() error {
	updates := map[string]interface{}{}
	for _, col := range dayColumns {
		updates[col] = ""
	}
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&model.ScheduleRow{}).
		Updates(updates).Error; err != nil {
		logger.Error("Failed to clear day markers", err)
		return err
	}
	return nil
}

// AdvanceFromDate moves from_date forward to the given date. The WHERE guard
// keeps from_date monotonically non-decreasing no matter what the caller
// passes in.
func (r *scheduleRepository) AdvanceFromDate(id uint, to time.Time) error {
	date := model.UTCDate(to)
	result := r.db.Model(&model.ScheduleRow{}).
		Where("id = ? AND from_date <= ?", id, date).
		Update("from_date", date)
	if result.Error != nil {
		logger.Error("Failed to advance from_date", result.Error, map[string]interface{}{
			"id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFromDateNotAdvanced
	}
	return nil
}

// ActivateFromDate replaces the not-yet-activated sentinel with a real
// start date. Rows that already carry a real date are left alone.
func (r *scheduleRepository) ActivateFromDate(id uint, to time.Time) error {
	result := r.db.Model(&model.ScheduleRow{}).
		Where("id = ? AND from_date >= ?", id, model.NotActivated).
		Update("from_date", model.UTCDate(to))
	if result.Error != nil {
		logger.Error("Failed to activate from_date", result.Error, map[string]interface{}{
			"id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFromDateNotAdvanced
	}
	return nil
}

func weekdayByName(name string) time.Weekday {
	switch name {
	case "Monday":
		return time.Monday
	case "Tuesday":
		return time.Tuesday
	case "Wednesday":
		return time.Wednesday
	case "Thursday":
		return time.Thursday
	case "Friday":
		return time.Friday
	case "Saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}
