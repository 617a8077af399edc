package repository

import (
	"testing"
	"time"

	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupScheduleTest(t *testing.T) (*gorm.DB, ScheduleRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	return testDB, NewScheduleRepository(testDB)
}

func TestScheduleRepository_CreateAndFind(t *testing.T) {
	testDB, repo := setupScheduleTest(t)
	defer db.CleanupTestDB(testDB)

	row := &model.ScheduleRow{
		MerchantName: "Acme",
		StoreName:    "Acme Store",
		StoreID:      "42",
		Monday:       model.MarkerOn,
		FromDate:     model.NotActivated,
	}
	require.NoError(t, repo.Create(row))
	assert.NotZero(t, row.ID)

	found, err := repo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, row.ID, found.ID)
	assert.Equal(t, model.MarkerOn, found.Monday)
}

func TestScheduleRepository_FindIsCaseInsensitive(t *testing.T) {
	testDB, repo := setupScheduleTest(t)
	defer db.CleanupTestDB(testDB)

	require.NoError(t, repo.Create(&model.ScheduleRow{
		MerchantName: "Acme",
		StoreName:    "Main Branch",
		FromDate:     model.NotActivated,
	}))

	found, err := repo.FindByMerchantStore("ACME", "main branch")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Acme", found.MerchantName)

	missing, err := repo.FindByMerchantStore("Acme", "Other Branch")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestScheduleRepository_UpdateDayMarkersPreservesFromDate(t *testing.T) {
	testDB, repo := setupScheduleTest(t)
	defer db.CleanupTestDB(testDB)

	fromDate := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	row := &model.ScheduleRow{
		MerchantName: "Acme",
		StoreName:    "Acme Store",
		Monday:       model.MarkerOn,
		FromDate:     fromDate,
	}
	require.NoError(t, repo.Create(row))

	row.Monday = ""
	row.Friday = model.MarkerOn
	row.StoreID = "77"
	require.NoError(t, repo.UpdateDayMarkers(row))

	found, err := repo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	assert.Equal(t, "", found.Monday)
	assert.Equal(t, model.MarkerOn, found.Friday)
	assert.Equal(t, "77", found.StoreID)
	assert.True(t, model.SameDate(fromDate, found.FromDate))
}

func TestScheduleRepository_ClearAllDayMarkers(t *testing.T) {
	testDB, repo := setupScheduleTest(t)
	defer db.CleanupTestDB(testDB)

	require.NoError(t, repo.Create(&model.ScheduleRow{
		MerchantName: "Acme", StoreName: "A",
		Monday: model.MarkerOn, Sunday: model.MarkerOn,
		FromDate: model.NotActivated,
	}))
	require.NoError(t, repo.Create(&model.ScheduleRow{
		MerchantName: "Beta", StoreName: "B",
		Wednesday: model.MarkerOn,
		FromDate:  time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, repo.ClearAllDayMarkers())

	rows, err := repo.FindAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		for _, day := range []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
			time.Friday, time.Saturday, time.Sunday,
		} {
			assert.Equal(t, "", row.DayMarker(day))
		}
	}

	// rows and from_date survive the clear
	beta, err := repo.FindByMerchantStore("Beta", "B")
	require.NoError(t, err)
	assert.True(t, beta.Activated())
}

func TestScheduleRepository_AdvanceFromDateIsMonotonic(t *testing.T) {
	testDB, repo := setupScheduleTest(t)
	defer db.CleanupTestDB(testDB)

	row := &model.ScheduleRow{
		MerchantName: "Acme",
		StoreName:    "Acme Store",
		FromDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(row))

	today := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AdvanceFromDate(row.ID, today))

	found, err := repo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	assert.True(t, model.SameDate(today, found.FromDate))

	// moving backwards matches no row
	err = repo.AdvanceFromDate(row.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrFromDateNotAdvanced)

	found, err = repo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	assert.True(t, model.SameDate(today, found.FromDate))
}

func TestScheduleRepository_ActivateFromDate(t *testing.T) {
	testDB, repo := setupScheduleTest(t)
	defer db.CleanupTestDB(testDB)

	row := &model.ScheduleRow{
		MerchantName: "Acme",
		StoreName:    "Acme Store",
		FromDate:     model.NotActivated,
	}
	require.NoError(t, repo.Create(row))

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ActivateFromDate(row.ID, start))

	found, err := repo.FindByMerchantStore("Acme", "Acme Store")
	require.NoError(t, err)
	assert.True(t, found.Activated())
	assert.True(t, model.SameDate(start, found.FromDate))

	// a second activation must not rewind an already-real from_date
	err = repo.ActivateFromDate(row.ID, start.AddDate(0, 0, -10))
	assert.ErrorIs(t, err, ErrFromDateNotAdvanced)
}
