package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DayLayout is the calendar-day format used in dose keys, queries and storage.
const DayLayout = "2006-01-02"

const clockLayout = "15:04"

var (
	// ErrInvalidSchedule indicates a schedule that violates its invariants.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrNotScheduled indicates a dose occurrence that is not part of a schedule.
	ErrNotScheduled = errors.New("dose not scheduled")
	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// TimeOfDay is a daily dose time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM token. A single-digit hour is accepted and
// normalized, so "8:00" and "08:00" are the same time.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String returns the canonical HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimes parses the flat comma-separated form of a schedule's times.
// All whitespace is removed before splitting, empty tokens are skipped and
// repeated times collapse onto their first occurrence.
func ParseTimes(s string) ([]TimeOfDay, error) {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	var out []TimeOfDay
	for _, tok := range strings.Split(stripped, ",") {
		if tok == "" {
			continue
		}
		t, err := ParseTimeOfDay(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	out = dedupeTimes(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no dose times in %q", ErrInvalidSchedule, s)
	}
	return out, nil
}

// FormatTimes renders times in their flat form, e.g. "08:00,20:00".
func FormatTimes(times []TimeOfDay) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

func dedupeTimes(times []TimeOfDay) []TimeOfDay {
	seen := make(map[TimeOfDay]struct{}, len(times))
	out := make([]TimeOfDay, 0, len(times))
	for _, t := range times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Day truncates t to its calendar date, read in t's own location, and
// returns it as midnight UTC. All date arithmetic in the engine runs on
// values produced by Day so that it never crosses a DST transition.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayLayout, strings.TrimSpace(s))
}

// Schedule is a medication's dosing calendar. It is immutable once built;
// edits replace it wholesale.
type Schedule struct {
	StartDate time.Time
	EndDate   time.Time
	Times     []TimeOfDay
}

// NewSchedule validates and normalizes a schedule. Dates are truncated to
// calendar days and times are de-duplicated in the order given.
func NewSchedule(start, end time.Time, times []TimeOfDay) (Schedule, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return Schedule{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidSchedule, start.Format(DayLayout), end.Format(DayLayout))
	}
	for _, t := range times {
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return Schedule{}, fmt.Errorf("%w: time %s out of range", ErrInvalidSchedule, t)
		}
	}
	times = dedupeTimes(times)
	if len(times) == 0 {
		return Schedule{}, fmt.Errorf("%w: at least one dose time is required", ErrInvalidSchedule)
	}
	return Schedule{StartDate: start, EndDate: end, Times: times}, nil
}

// ParseSchedule builds a schedule from its flat form: YYYY-MM-DD dates and a
// comma-separated times list.
func ParseSchedule(start, end, times string) (Schedule, error) {
	s, err := ParseDay(start)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: start date %q", ErrInvalidSchedule, start)
	}
	e, err := ParseDay(end)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: end date %q", ErrInvalidSchedule, end)
	}
	ts, err := ParseTimes(times)
	if err != nil {
		return Schedule{}, err
	}
	return NewSchedule(s, e, ts)
}

// Active reports whether day lies within [StartDate, EndDate], both ends
// inclusive.
func (s Schedule) Active(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(s.StartDate)) && !d.After(Day(s.EndDate))
}

// Scheduled reports whether occ is one of the schedule's dose occurrences.
func (s Schedule) Scheduled(occ DoseOccurrence) bool {
	if !s.Active(occ.Date) {
		return false
	}
	for _, t := range s.Times {
		if t == occ.Time {
			return true
		}
	}
	return false
}
