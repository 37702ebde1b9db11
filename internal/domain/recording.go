package domain

import (
	"fmt"
	"maps"
	"time"
)

// DayOutcomes returns the ledger updates that mark every dose scheduled on
// day as taken (or missed). It is empty when day is outside the schedule.
func DayOutcomes(s Schedule, day time.Time, taken bool) map[string]bool {
	out := make(map[string]bool, len(s.Times))
	for occ := range Enumerate(s, day, day) {
		out[occ.Key()] = taken
	}
	return out
}

// RecordDay applies one outcome to all of m's doses scheduled on day,
// overwriting earlier outcomes, and returns the updated ledger. The updates
// are computed first and merged in one step. A day outside the schedule
// writes nothing, so widening the schedule later leaves that day unrecorded.
func RecordDay(m *Medication, day time.Time, taken bool) TakenLedger {
	updates := DayOutcomes(m.Schedule, day, taken)
	if m.Taken == nil {
		m.Taken = make(TakenLedger, len(updates))
	}
	maps.Copy(m.Taken, updates)
	return m.Taken
}

// RecordDose records the outcome of a single scheduled dose.
func RecordDose(m *Medication, occ DoseOccurrence, taken bool) error {
	if !m.Schedule.Scheduled(occ) {
		return fmt.Errorf("%w: %s", ErrNotScheduled, occ.Key())
	}
	if m.Taken == nil {
		m.Taken = make(TakenLedger, 1)
	}
	m.Taken[occ.Key()] = taken
	return nil
}
