package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMarker(t *testing.T) {
	recognized := []string{"1", "TRUE", "True", "true", "✔", "✓", "x", "X"}
	for _, raw := range recognized {
		assert.Equal(t, MarkerOn, NormalizeMarker(raw), "marker %q should normalize to on", raw)
		assert.True(t, MarkerRecognized(raw))
	}

	assert.Equal(t, "", NormalizeMarker(""))
	assert.Equal(t, "", NormalizeMarker("   "))
	assert.Equal(t, MarkerOn, NormalizeMarker("  ✓  "))

	// unrecognized non-empty values are treated as unset
	assert.Equal(t, "", NormalizeMarker("yes"))
	assert.Equal(t, "", NormalizeMarker("0"))
	assert.Equal(t, "", NormalizeMarker("XX"))
	assert.False(t, MarkerRecognized("yes"))
}

func TestNormalizeMarker_Idempotent(t *testing.T) {
	inputs := []string{"1", "true", "✔", "✓", "x", "yes", "", "  X "}
	for _, raw := range inputs {
		once := NormalizeMarker(raw)
		assert.Equal(t, once, NormalizeMarker(once), "normalize(normalize(%q))", raw)
	}
}

func TestScheduleRow_DayMarkers(t *testing.T) {
	row := &ScheduleRow{}

	row.SetDayMarker(time.Monday, MarkerOn)
	row.SetDayMarker(time.Sunday, MarkerOn)

	assert.Equal(t, MarkerOn, row.Monday)
	assert.Equal(t, MarkerOn, row.Sunday)
	assert.True(t, row.ScheduledOn(time.Monday))
	assert.True(t, row.ScheduledOn(time.Sunday))
	assert.False(t, row.ScheduledOn(time.Tuesday))

	row.SetDayMarker(time.Monday, "")
	assert.False(t, row.ScheduledOn(time.Monday))

	for _, day := range []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	} {
		row.SetDayMarker(day, MarkerOn)
		assert.Equal(t, MarkerOn, row.DayMarker(day))
	}
}

func TestScheduleRow_Activated(t *testing.T) {
	row := &ScheduleRow{FromDate: NotActivated}
	assert.False(t, row.Activated())

	row.FromDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, row.Activated())

	// the sentinel expressed in another zone is still the sentinel
	dhaka, _ := time.LoadLocation("Asia/Dhaka")
	row.FromDate = time.Date(2030, 1, 1, 0, 0, 0, 0, dhaka)
	assert.False(t, row.Activated())
}

func TestDateHelpers(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Dhaka")
	a := time.Date(2024, 3, 5, 1, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), DateOnly(a))
	assert.True(t, SameDate(a, time.Date(2024, 3, 4, 19, 30, 0, 0, time.UTC)))
	assert.False(t, SameDate(a, time.Date(2024, 3, 4, 0, 0, 0, 0, loc)))
}
