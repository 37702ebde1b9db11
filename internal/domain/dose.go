package domain

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

// DoseOccurrence is one scheduled administration: a calendar day and a
// time of day.
type DoseOccurrence struct {
	Date time.Time
	Time TimeOfDay
}

// Key returns the occurrence identity used by the taken ledger, e.g.
// "2025-12-09T14:00". The format is persisted and must not change.
func (o DoseOccurrence) Key() string {
	return DoseKey(o.Date, o.Time)
}

// DoseKey builds the ledger key for a day and time.
func DoseKey(day time.Time, t TimeOfDay) string {
	return Day(day).Format(DayLayout) + "T" + t.String()
}

// ParseDoseKey is the inverse of DoseKey.
func ParseDoseKey(key string) (DoseOccurrence, error) {
	day, clock, ok := strings.Cut(strings.TrimSpace(key), "T")
	if !ok {
		return DoseOccurrence{}, fmt.Errorf("dose key %q: want YYYY-MM-DDTHH:MM", key)
	}
	d, err := ParseDay(day)
	if err != nil {
		return DoseOccurrence{}, fmt.Errorf("dose key %q: %w", key, err)
	}
	t, err := ParseTimeOfDay(clock)
	if err != nil {
		return DoseOccurrence{}, fmt.Errorf("dose key %q: %w", key, err)
	}
	return DoseOccurrence{Date: d, Time: t}, nil
}

// Enumerate yields the scheduled dose occurrences whose day lies in
// [from, to] and in [s.StartDate, s.EndDate], all bounds inclusive. Days
// ascend; within a day, times follow the schedule's stored order. The
// sequence can be ranged over any number of times.
func Enumerate(s Schedule, from, to time.Time) iter.Seq[DoseOccurrence] {
	return enumerate(s, from, to, false)
}

// EnumerateDesc is Enumerate with days descending, newest first. Times
// within a day keep their stored order.
func EnumerateDesc(s Schedule, from, to time.Time) iter.Seq[DoseOccurrence] {
	return enumerate(s, from, to, true)
}

// EnumerateDoses collects Enumerate into a slice.
func EnumerateDoses(s Schedule, from, to time.Time) []DoseOccurrence {
	return slices.Collect(Enumerate(s, from, to))
}

func enumerate(s Schedule, from, to time.Time, desc bool) iter.Seq[DoseOccurrence] {
	lo, hi := Day(from), Day(to)
	if start := Day(s.StartDate); start.After(lo) {
		lo = start
	}
	if end := Day(s.EndDate); end.Before(hi) {
		hi = end
	}
	times := slices.Clone(s.Times)

	return func(yield func(DoseOccurrence) bool) {
		if hi.Before(lo) {
			return
		}
		emit := func(d time.Time) bool {
			for _, t := range times {
				if !yield(DoseOccurrence{Date: d, Time: t}) {
					return false
				}
			}
			return true
		}
		if desc {
			for d := hi; !d.Before(lo); d = d.AddDate(0, 0, -1) {
				if !emit(d) {
					return
				}
			}
			return
		}
		for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
			if !emit(d) {
				return
			}
		}
	}
}
