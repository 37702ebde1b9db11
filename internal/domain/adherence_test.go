package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreminder/internal/domain"
)

func med(t *testing.T, id int64, start, end, times string) domain.Medication {
	t.Helper()
	return domain.Medication{ID: id, UserID: 1, Name: "med", Schedule: mustSchedule(t, start, end, times)}
}

func TestWeeklyReport_ShortCourseEndingMidWindow(t *testing.T) {
	m := med(t, 1, "2025-12-01", "2025-12-05", "08:00,20:00")
	end := day(t, "2025-12-09")

	before := domain.WeeklyReport([]domain.Medication{m}, end, domain.DefaultWindowDays)
	assert.Equal(t, domain.AdherenceReport{TotalDoses: 6, TakenDoses: 0, MissedDoses: 6, AdherencePercent: 0}, before)

	domain.RecordDay(&m, day(t, "2025-12-04"), true)

	got := domain.WeeklyReport([]domain.Medication{m}, end, domain.DefaultWindowDays)
	assert.Equal(t, domain.AdherenceReport{TotalDoses: 6, TakenDoses: 2, MissedDoses: 4, AdherencePercent: 33}, got)
}

func TestWeeklyReport_NoMedications(t *testing.T) {
	got := domain.WeeklyReport(nil, day(t, "2025-12-09"), domain.DefaultWindowDays)
	assert.Equal(t, domain.AdherenceReport{}, got)
}

func TestWeeklyReport_WindowIsSevenDaysInclusive(t *testing.T) {
	// The day eight days back must not be counted.
	m := med(t, 1, "2025-12-03", "2025-12-05", "08:00,20:00")
	got := domain.WeeklyReport([]domain.Medication{m}, day(t, "2025-12-10"), domain.DefaultWindowDays)
	assert.Equal(t, 4, got.TotalDoses)

	got = domain.WeeklyReport([]domain.Medication{m}, day(t, "2025-12-09"), domain.DefaultWindowDays)
	assert.Equal(t, 6, got.TotalDoses)
}

func TestWeeklyReport_ExplicitMissCountsAsMissed(t *testing.T) {
	m := med(t, 1, "2025-12-01", "2025-12-31", "09:00")
	m.Taken = domain.TakenLedger{
		"2025-12-08T09:00": true,
		"2025-12-09T09:00": false,
		"2025-11-30T09:00": true, // outside the schedule
		"2025-12-09T10:00": true, // not a scheduled time
	}
	got := domain.WeeklyReport([]domain.Medication{m}, day(t, "2025-12-09"), domain.DefaultWindowDays)
	assert.Equal(t, domain.AdherenceReport{TotalDoses: 7, TakenDoses: 1, MissedDoses: 6, AdherencePercent: 14}, got)
}

func TestWeeklyReport_MultipleMedications(t *testing.T) {
	a := med(t, 1, "2025-12-01", "2025-12-31", "08:00,20:00")
	b := med(t, 2, "2025-12-08", "2025-12-08", "12:00")
	domain.RecordDay(&a, day(t, "2025-12-09"), true)
	domain.RecordDay(&b, day(t, "2025-12-08"), true)

	got := domain.WeeklyReport([]domain.Medication{a, b}, day(t, "2025-12-09"), domain.DefaultWindowDays)
	assert.Equal(t, 15, got.TotalDoses)
	assert.Equal(t, 3, got.TakenDoses)
	assert.Equal(t, 20, got.AdherencePercent)
}

func TestWeeklyReport_Idempotent(t *testing.T) {
	m := med(t, 1, "2025-12-01", "2025-12-31", "08:00,20:00")
	domain.RecordDay(&m, day(t, "2025-12-07"), true)
	meds := []domain.Medication{m}

	first := domain.WeeklyReport(meds, day(t, "2025-12-09"), domain.DefaultWindowDays)
	second := domain.WeeklyReport(meds, day(t, "2025-12-09"), domain.DefaultWindowDays)
	assert.Equal(t, first, second)
}

func TestWeeklyReport_NonPositiveWindow(t *testing.T) {
	m := med(t, 1, "2025-12-01", "2025-12-31", "08:00")
	assert.Equal(t, domain.AdherenceReport{}, domain.WeeklyReport([]domain.Medication{m}, day(t, "2025-12-09"), 0))
	assert.Equal(t, domain.AdherenceReport{}, domain.WeeklyReport([]domain.Medication{m}, day(t, "2025-12-09"), -3))
}

func TestNewAdherenceReport_Truncates(t *testing.T) {
	tests := []struct {
		total, taken, want int
	}{
		{6, 1, 16},
		{3, 2, 66},
		{6, 2, 33},
		{7, 7, 100},
		{0, 0, 0},
		{9, 0, 0},
	}
	for _, tc := range tests {
		r := domain.NewAdherenceReport(tc.total, tc.taken)
		assert.Equal(t, tc.want, r.AdherencePercent, "taken=%d total=%d", tc.taken, tc.total)
		assert.Equal(t, r.TotalDoses, r.TakenDoses+r.MissedDoses)
		assert.GreaterOrEqual(t, r.AdherencePercent, 0)
		assert.LessOrEqual(t, r.AdherencePercent, 100)
	}
}

func TestDailyBreakdown_SumsToWeekly(t *testing.T) {
	a := med(t, 1, "2025-12-01", "2025-12-05", "08:00,20:00")
	b := med(t, 2, "2025-12-04", "2025-12-31", "12:00")
	domain.RecordDay(&a, day(t, "2025-12-04"), true)
	domain.RecordDay(&b, day(t, "2025-12-06"), true)
	domain.RecordDay(&b, day(t, "2025-12-07"), false)
	meds := []domain.Medication{a, b}
	end := day(t, "2025-12-09")

	days := domain.DailyBreakdown(meds, end, domain.DefaultWindowDays)
	require.Len(t, days, 7)
	assert.Equal(t, "2025-12-09", days[0].Day)
	assert.Equal(t, "2025-12-03", days[6].Day)

	var total, taken int
	for _, d := range days {
		total += d.TotalDoses
		taken += d.TakenDoses
	}
	weekly := domain.WeeklyReport(meds, end, domain.DefaultWindowDays)
	assert.Equal(t, weekly.TotalDoses, total)
	assert.Equal(t, weekly.TakenDoses, taken)
	assert.Equal(t, domain.AdherenceReport{TotalDoses: 3, TakenDoses: 2, MissedDoses: 1, AdherencePercent: 66}, days[5].AdherenceReport)
}
