package model

import (
	"strings"
	"time"
)

// MarkerOn is the canonical "scheduled" marker, matching what the admin
// console's own export uses. An empty column means not scheduled.
const MarkerOn = "✓"

// recognized tick symbols in the source feed, exact match after trimming
var recognizedMarkers = map[string]struct{}{
	"1": {}, "TRUE": {}, "True": {}, "true": {},
	"✔": {}, "✓": {}, "x": {}, "X": {},
}

// NotActivated is the sentinel from_date for rows that have never seen a
// transaction. Rows holding it are excluded from submission.
var NotActivated = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

// ScheduleRow is one merchant+store pair in the settlement_day table.
// Day columns hold MarkerOn or empty; they are rewritten in full by every
// importer run. from_date only ever moves forward, and only the submitter
// moves it.
type ScheduleRow struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	MerchantName string    `gorm:"column:merchant_name;not null;index:idx_merchant_store" json:"merchant_name"`
	StoreName    string    `gorm:"column:store_name;not null;index:idx_merchant_store" json:"store_name"`
	StoreID      string    `gorm:"column:store_id;type:varchar(64)" json:"store_id,omitempty"`
	Monday       string    `gorm:"column:Monday;type:varchar(8)" json:"Monday"`
	Tuesday      string    `gorm:"column:Tuesday;type:varchar(8)" json:"Tuesday"`
	Wednesday    string    `gorm:"column:Wednesday;type:varchar(8)" json:"Wednesday"`
	Thursday     string    `gorm:"column:Thursday;type:varchar(8)" json:"Thursday"`
	Friday       string    `gorm:"column:Friday;type:varchar(8)" json:"Friday"`
	Saturday     string    `gorm:"column:Saturday;type:varchar(8)" json:"Saturday"`
	Sunday       string    `gorm:"column:Sunday;type:varchar(8)" json:"Sunday"`
	FromDate     time.Time `gorm:"column:from_date" json:"from_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ScheduleRow) TableName() string {
	return "settlement_day"
}

// Activated reports whether the row has left the not-yet-activated state.
func (r *ScheduleRow) Activated() bool {
	return !SameDate(r.FromDate, NotActivated) && r.FromDate.Before(NotActivated)
}

// DayMarker returns the marker column for the given weekday.
func (r *ScheduleRow) DayMarker(day time.Weekday) string {
	switch day {
	case time.Monday:
		return r.Monday
	case time.Tuesday:
		return r.Tuesday
	case time.Wednesday:
		return r.Wednesday
	case time.Thursday:
		return r.Thursday
	case time.Friday:
		return r.Friday
	case time.Saturday:
		return r.Saturday
	default:
		return r.Sunday
	}
}

// SetDayMarker sets the marker column for the given weekday.
func (r *ScheduleRow) SetDayMarker(day time.Weekday, marker string) {
	switch day {
	case time.Monday:
		r.Monday = marker
	case time.Tuesday:
		r.Tuesday = marker
	case time.Wednesday:
		r.Wednesday = marker
	case time.Thursday:
		r.Thursday = marker
	case time.Friday:
		r.Friday = marker
	case time.Saturday:
		r.Saturday = marker
	default:
		r.Sunday = marker
	}
}

// ScheduledOn reports whether the row is flagged for the given weekday.
func (r *ScheduleRow) ScheduledOn(day time.Weekday) bool {
	return r.DayMarker(day) == MarkerOn
}

// NormalizeMarker collapses the free-text tick variants of the source feed
// to the canonical marker. Unrecognized non-empty values normalize to empty;
// callers that care use MarkerRecognized to log them. Idempotent.
func NormalizeMarker(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if _, ok := recognizedMarkers[trimmed]; ok {
		return MarkerOn
	}
	return ""
}

// MarkerRecognized reports whether a non-empty raw value is a known tick symbol.
func MarkerRecognized(raw string) bool {
	_, ok := recognizedMarkers[strings.TrimSpace(raw)]
	return ok
}

// SameDate compares two instants by civil date in a's location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates an instant to midnight of its civil date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// UTCDate maps an instant to midnight UTC of its civil date. Dates are
// persisted in this shape so a driver reading them back in UTC cannot
// shift them across midnight.
func UTCDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
