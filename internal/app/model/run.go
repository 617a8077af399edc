package model

import (
	"time"
)

// RunKind identifies which nightly procedure produced a run record.
type RunKind string

const (
	RunKindImport RunKind = "import"
	RunKindSubmit RunKind = "submit"
)

// Outcome classifies what happened to a single schedule row during a
// submitter run. Uncertain is its own category, never folded into success
// or error.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeNoEligible Outcome = "no_eligible"
	OutcomeUncertain  Outcome = "uncertain"
	OutcomeError      Outcome = "error"
)

// SubmissionStatus is what the console automation reports back for one
// settlement-creation attempt.
type SubmissionStatus int

const (
	// SubmissionAccepted means the console confirmed the settlement
	// (navigation away from the creation form or an explicit success cue).
	SubmissionAccepted SubmissionStatus = iota
	// SubmissionNoEligible means the console reported nothing to settle for
	// the requested window. Informational, not an error.
	SubmissionNoEligible
	// SubmissionUnclassified means neither signal appeared within the
	// bounded wait.
	SubmissionUnclassified
)

// SettlementRequest describes one settlement-creation form submission.
type SettlementRequest struct {
	MerchantName string
	StoreName    string
	StoreID      string
	FromDate     time.Time
	ToDate       time.Time
}

// SubmissionLog is the processed-marker for one (schedule row, civil date)
// pair. Its unique index is what keeps a same-day re-run from submitting a
// row twice; from_date alone cannot express that.
type SubmissionLog struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	ScheduleRowID uint      `gorm:"not null;uniqueIndex:idx_row_run_date" json:"schedule_row_id"`
	RunDate       string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_row_run_date" json:"run_date"` // YYYY-MM-DD in the civil timezone
	Outcome       Outcome   `gorm:"type:varchar(16);not null" json:"outcome"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SubmissionLog) TableName() string {
	return "submission_logs"
}

// Settled reports whether this log entry means the row is done for the day.
// Errored and uncertain rows stay eligible for a same-day retry.
func (l *SubmissionLog) Settled() bool {
	return l.Outcome == OutcomeSuccess || l.Outcome == OutcomeNoEligible
}

// RunRecord is the persisted aggregate report of one importer or submitter
// run. The end-of-run summary is a required observable output, so it lives
// in the database rather than only in the log stream.
type RunRecord struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	Kind       RunKind    `gorm:"type:varchar(10);not null;index" json:"kind"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// importer counters
	RowsSeen int `json:"rows_seen"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`

	// submitter counters
	Queued     int `json:"queued"`
	Excluded   int `json:"excluded"`
	Succeeded  int `json:"succeeded"`
	NoEligible int `json:"no_eligible"`
	Uncertain  int `json:"uncertain"`
	Errored    int `json:"errored"`

	// shared
	Skipped int    `json:"skipped"`
	Notes   string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RunRecord) TableName() string {
	return "run_records"
}

// AddNote appends a line to the run's manual-review notes.
func (r *RunRecord) AddNote(line string) {
	if r.Notes != "" {
		r.Notes += "\n"
	}
	r.Notes += line
}

// Count bumps the counter matching an outcome.
func (r *RunRecord) Count(outcome Outcome) {
	switch outcome {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeNoEligible:
		r.NoEligible++
	case OutcomeUncertain:
		r.Uncertain++
	case OutcomeError:
		r.Errored++
	}
}
