package domain

import "time"

// DefaultWindowDays is the length of the weekly reporting window: the
// reference day and the six days before it.
const DefaultWindowDays = 7

// AdherenceReport aggregates scheduled doses over a reporting window.
type AdherenceReport struct {
	TotalDoses       int `json:"totalDoses"`
	TakenDoses       int `json:"takenDoses"`
	MissedDoses      int `json:"missedDoses"`
	AdherencePercent int `json:"adherencePercent"`
}

// NewAdherenceReport derives missed doses and the truncated percentage from
// the two counts.
func NewAdherenceReport(total, taken int) AdherenceReport {
	r := AdherenceReport{TotalDoses: total, TakenDoses: taken, MissedDoses: total - taken}
	if total > 0 {
		r.AdherencePercent = taken * 100 / total
	}
	return r
}

// Window returns the inclusive bounds [end-(days-1), end].
func Window(end time.Time, days int) (from, to time.Time) {
	to = Day(end)
	return to.AddDate(0, 0, -(days - 1)), to
}

// WeeklyReport counts the doses of meds scheduled within the days-long
// window ending at windowEnd and how many of them are recorded as taken.
// Unrecorded and missed doses both count as missed. A non-positive days
// yields an empty report.
func WeeklyReport(meds []Medication, windowEnd time.Time, days int) AdherenceReport {
	if days <= 0 {
		return AdherenceReport{}
	}
	from, to := Window(windowEnd, days)

	var total, taken int
	for i := range meds {
		m := &meds[i]
		for occ := range Enumerate(m.Schedule, from, to) {
			total++
			if m.Taken.Taken(occ.Key()) {
				taken++
			}
		}
	}
	return NewAdherenceReport(total, taken)
}

// DayAdherence is the adherence of a single calendar day.
type DayAdherence struct {
	Day string `json:"day"`
	AdherenceReport
}

// DailyBreakdown reports each day of the window separately, newest day
// first. The per-day counts sum to WeeklyReport over the same window.
func DailyBreakdown(meds []Medication, windowEnd time.Time, days int) []DayAdherence {
	if days <= 0 {
		return []DayAdherence{}
	}
	end := Day(windowEnd)
	out := make([]DayAdherence, 0, days)
	for i := range days {
		d := end.AddDate(0, 0, -i)
		out = append(out, DayAdherence{
			Day:             d.Format(DayLayout),
			AdherenceReport: WeeklyReport(meds, d, 1),
		})
	}
	return out
}
