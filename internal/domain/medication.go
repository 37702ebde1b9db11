package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Medication is a user's prescribed medication with its dosing schedule and
// the ledger of recorded outcomes.
type Medication struct {
	ID        int64
	UserID    int64
	Name      string
	Dosage    string
	Schedule  Schedule
	Taken     TakenLedger
	CreatedAt time.Time
}

// Clone returns a copy that shares no mutable state with m.
func (m Medication) Clone() Medication {
	m.Schedule.Times = append([]TimeOfDay(nil), m.Schedule.Times...)
	m.Taken = m.Taken.Clone()
	return m
}

type medicationJSON struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	Name         string          `json:"name"`
	Dosage       string          `json:"dosage"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	Times        string          `json:"times"`
	TakenRecords map[string]bool `json:"takenRecords"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// MarshalJSON flattens the schedule into startDate, endDate and the
// comma-separated times string.
func (m Medication) MarshalJSON() ([]byte, error) {
	taken := m.Taken
	if taken == nil {
		taken = TakenLedger{}
	}
	return json.Marshal(medicationJSON{
		ID:           m.ID,
		UserID:       m.UserID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		StartDate:    m.Schedule.StartDate.Format(DayLayout),
		EndDate:      m.Schedule.EndDate.Format(DayLayout),
		Times:        FormatTimes(m.Schedule.Times),
		TakenRecords: taken,
		CreatedAt:    m.CreatedAt,
	})
}

// MedicationRepository is the port for medication persistence. Every method
// is scoped to the owning user; a medication owned by someone else is
// reported as ErrNotFound.
type MedicationRepository interface {
	CreateMedication(ctx context.Context, m Medication) (int64, error)
	GetMedication(ctx context.Context, userID, id int64) (*Medication, error)
	ListMedications(ctx context.Context, userID int64) ([]Medication, error)
	ReplaceSchedule(ctx context.Context, userID, id int64, s Schedule) error
	DeleteMedication(ctx context.Context, userID, id int64) error

	// ApplyOutcomes loads the medication, runs fn on it and persists the
	// ledger changes fn made as one atomic update. Calls for the same
	// medication are serialized.
	ApplyOutcomes(ctx context.Context, userID, id int64, fn func(m *Medication) error) (*Medication, error)
}
