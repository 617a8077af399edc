package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
	"github.com/mahatab-code/settlement-automation/internal/artifact"
	"github.com/mahatab-code/settlement-automation/internal/db"
)

// fakeConsole scripts CreateSettlement results per merchant name and records
// every request it receives.
type fakeConsole struct {
	readyErr  error
	statuses  map[string]model.SubmissionStatus
	errs      map[string]error
	requests  []model.SettlementRequest
	readies   int
	recovered int
}

func (f *fakeConsole) EnsureReady(ctx context.Context) error {
	f.readies++
	return f.readyErr
}

func (f *fakeConsole) CreateSettlement(ctx context.Context, req model.SettlementRequest) (model.SubmissionStatus, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[req.MerchantName]; err != nil {
		return model.SubmissionUnclassified, err
	}
	status, ok := f.statuses[req.MerchantName]
	if !ok {
		return model.SubmissionAccepted, nil
	}
	return status, nil
}

func (f *fakeConsole) Recover(ctx context.Context) error {
	f.recovered++
	return nil
}

func (f *fakeConsole) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, nil
}

// 19:30 UTC on Monday March 4 is already 01:30 Tuesday March 5 in Dhaka.
var fixedNow = time.Date(2024, 3, 4, 19, 30, 0, 0, time.UTC)

func setupSubmitter(t *testing.T, console *fakeConsole) (SubmitterService, repository.ScheduleRepository, repository.RunRepository) {
	t.Helper()
	gdb, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(gdb) })

	loc, err := time.LoadLocation("Asia/Dhaka")
	require.NoError(t, err)

	scheduleRepo := repository.NewScheduleRepository(gdb)
	runRepo := repository.NewRunRepository(gdb)
	svc := NewSubmitterService(scheduleRepo, runRepo, console, artifact.NopRecorder{}, loc)
	svc.(*submitterService).now = func() time.Time { return fixedNow }
	return svc, scheduleRepo, runRepo
}

func createRow(t *testing.T, repo repository.ScheduleRepository, merchant, store string, day time.Weekday, fromDate time.Time) *model.ScheduleRow {
	t.Helper()
	row := &model.ScheduleRow{
		MerchantName: merchant,
		StoreName:    store,
		FromDate:     fromDate,
	}
	row.SetDayMarker(day, model.MarkerOn)
	require.NoError(t, repo.Create(row))
	return row
}

func TestSubmitterRun_SuccessAdvancesFromDate(t *testing.T) {
	console := &fakeConsole{}
	svc, scheduleRepo, runRepo := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	row := createRow(t, scheduleRepo, "Acme", "Acme Store", time.Tuesday, from)

	run, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Queued)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 0, run.Errored)

	require.Len(t, console.requests, 1)
	req := console.requests[0]
	assert.Equal(t, "2024-03-01", req.FromDate.Format("2006-01-02"))
	assert.Equal(t, "2024-03-04", req.ToDate.Format("2006-01-02"), "window ends yesterday in the civil timezone")

	updated, err := scheduleRepo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", updated.FromDate.Format("2006-01-02"))

	log, err := runRepo.FindSubmission(row.ID, "2024-03-05")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, model.OutcomeSuccess, log.Outcome)
	assert.True(t, log.Settled())
}

func TestSubmitterRun_TimezoneShiftsWeekday(t *testing.T) {
	// the server clock still says Monday; only the Tuesday flag makes a row due
	console := &fakeConsole{}
	svc, scheduleRepo, _ := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	createRow(t, scheduleRepo, "MondayOnly", "Store", time.Monday, from)
	createRow(t, scheduleRepo, "TuesdayOnly", "Store", time.Tuesday, from)

	run, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Queued)
	require.Len(t, console.requests, 1)
	assert.Equal(t, "TuesdayOnly", console.requests[0].MerchantName)
}

func TestDueToday_SentinelRowNeverDue(t *testing.T) {
	console := &fakeConsole{}
	svc, scheduleRepo, _ := setupSubmitter(t, console)

	createRow(t, scheduleRepo, "Fresh", "Store", time.Tuesday, model.NotActivated)

	run, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Queued)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 0, console.readies, "no browser session opened when nothing is due")
	assert.Empty(t, console.requests)
}

func TestDueToday_ExclusionsCoverAllStores(t *testing.T) {
	console := &fakeConsole{}
	svc, scheduleRepo, _ := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	createRow(t, scheduleRepo, "Blocked", "Store One", time.Tuesday, from)
	createRow(t, scheduleRepo, "Blocked", "Store Two", time.Tuesday, from)
	createRow(t, scheduleRepo, "Allowed", "Store", time.Tuesday, from)

	exclusions := NewExclusionList([][2]string{{"Blocked", ""}})

	run, err := svc.Run(context.Background(), exclusions)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Excluded)
	assert.Equal(t, 1, run.Queued)
	require.Len(t, console.requests, 1)
	assert.Equal(t, "Allowed", console.requests[0].MerchantName)
}

func TestSubmitterRun_NoEligibleLeavesFromDate(t *testing.T) {
	console := &fakeConsole{
		statuses: map[string]model.SubmissionStatus{"Acme": model.SubmissionNoEligible},
	}
	svc, scheduleRepo, runRepo := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	row := createRow(t, scheduleRepo, "Acme", "Acme Store", time.Tuesday, from)

	run, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.NoEligible)
	assert.Equal(t, 0, run.Succeeded)

	updated, err := scheduleRepo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", updated.FromDate.Format("2006-01-02"), "from_date untouched without a created settlement")

	log, err := runRepo.FindSubmission(row.ID, "2024-03-05")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, model.OutcomeNoEligible, log.Outcome)
	assert.True(t, log.Settled(), "no-eligible still counts as done for the day")
}

func TestSubmitterRun_ErrorDoesNotBlockLaterRows(t *testing.T) {
	console := &fakeConsole{
		errs: map[string]error{"Broken": errors.New("merchant option not found")},
	}
	svc, scheduleRepo, runRepo := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	broken := createRow(t, scheduleRepo, "Broken", "Store", time.Tuesday, from)
	createRow(t, scheduleRepo, "Working", "Store", time.Tuesday, from)

	run, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Queued)
	assert.Equal(t, 1, run.Errored)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, console.recovered, "session recovered after the failed row")
	assert.Contains(t, run.Notes, "Broken")

	// the errored row stays retryable the same day
	log, err := runRepo.FindSubmission(broken.ID, "2024-03-05")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.False(t, log.Settled())

	updated, err := scheduleRepo.FindByMerchantStore("Broken", "Store")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", updated.FromDate.Format("2006-01-02"))
}

func TestSubmitterRun_UnclassifiedIsUncertain(t *testing.T) {
	console := &fakeConsole{
		statuses: map[string]model.SubmissionStatus{"Fuzzy": model.SubmissionUnclassified},
	}
	svc, scheduleRepo, _ := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	createRow(t, scheduleRepo, "Fuzzy", "Store", time.Tuesday, from)

	run, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Uncertain)
	assert.Equal(t, 0, run.Succeeded)
	assert.Equal(t, 0, run.Errored)
	assert.Contains(t, run.Notes, "not classifiable")

	updated, err := scheduleRepo.FindByMerchantStore("Fuzzy", "Store")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", updated.FromDate.Format("2006-01-02"))
}

func TestSubmitterRun_SameDayRerunSkipsSettledRows(t *testing.T) {
	console := &fakeConsole{}
	svc, scheduleRepo, _ := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	createRow(t, scheduleRepo, "Acme", "Acme Store", time.Tuesday, from)

	first, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded)

	second, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, console.requests, 1, "settled row is not submitted twice on the same day")
}

func TestSubmitterRun_AbortsWhenConsoleUnavailable(t *testing.T) {
	console := &fakeConsole{readyErr: errors.New("login failed")}
	svc, scheduleRepo, runRepo := setupSubmitter(t, console)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	createRow(t, scheduleRepo, "Acme", "Acme Store", time.Tuesday, from)

	run, err := svc.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, run.Queued)
	assert.Empty(t, console.requests)
	assert.Contains(t, run.Notes, "login failed")

	latest, err := runRepo.LatestRun(model.RunKindSubmit)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NotNil(t, latest.FinishedAt)
}
