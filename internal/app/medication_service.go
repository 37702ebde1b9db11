package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medreminder/internal/domain"
)

// ErrInvalidInput indicates a request that failed validation.
var ErrInvalidInput = errors.New("invalid input")

// maxDoseRangeDays bounds the dose listing range.
const maxDoseRangeDays = 366

// MedicationService encapsulates medication management and dose recording.
type MedicationService struct {
	repo domain.MedicationRepository
	now  func() time.Time
}

// NewMedicationService creates a MedicationService backed by the given repository.
func NewMedicationService(repo domain.MedicationRepository) *MedicationService {
	return &MedicationService{repo: repo, now: time.Now}
}

// CreateMedicationInput is the flat form of a new medication.
type CreateMedicationInput struct {
	Name      string
	Dosage    string
	Times     string
	StartDate string
	EndDate   string
}

// Create validates the input, builds the schedule and stores the medication.
func (s *MedicationService) Create(ctx context.Context, userID int64, in CreateMedicationInput) (*domain.Medication, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	sched, err := domain.ParseSchedule(in.StartDate, in.EndDate, in.Times)
	if err != nil {
		return nil, err
	}

	m := domain.Medication{
		UserID:    userID,
		Name:      name,
		Dosage:    strings.TrimSpace(in.Dosage),
		Schedule:  sched,
		Taken:     domain.TakenLedger{},
		CreatedAt: s.now().UTC(),
	}
	id, err := s.repo.CreateMedication(ctx, m)
	if err != nil {
		return nil, err
	}
	m.ID = id
	return &m, nil
}

// Get returns one of the user's medications.
func (s *MedicationService) Get(ctx context.Context, userID, id int64) (*domain.Medication, error) {
	return s.repo.GetMedication(ctx, userID, id)
}

// List returns all of the user's medications.
func (s *MedicationService) List(ctx context.Context, userID int64) ([]domain.Medication, error) {
	return s.repo.ListMedications(ctx, userID)
}

// UpdateSchedule replaces a medication's schedule wholesale. Ledger entries
// recorded under the old schedule are kept.
func (s *MedicationService) UpdateSchedule(ctx context.Context, userID, id int64, startDate, endDate, times string) (*domain.Medication, error) {
	sched, err := domain.ParseSchedule(startDate, endDate, times)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceSchedule(ctx, userID, id, sched); err != nil {
		return nil, err
	}
	return s.repo.GetMedication(ctx, userID, id)
}

// Delete removes a medication and its ledger.
func (s *MedicationService) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteMedication(ctx, userID, id)
}

// RecordOutcome marks every dose scheduled on day as taken or missed and
// returns the updated medication with the number of ledger entries written.
// A day outside the schedule writes nothing.
func (s *MedicationService) RecordOutcome(ctx context.Context, userID, id int64, day time.Time, taken bool) (*domain.Medication, int, error) {
	var written int
	m, err := s.repo.ApplyOutcomes(ctx, userID, id, func(m *domain.Medication) error {
		written = len(domain.DayOutcomes(m.Schedule, day, taken))
		domain.RecordDay(m, day, taken)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return m, written, nil
}

// RecordDose records the outcome of one scheduled dose identified by its
// key, e.g. "2025-12-09T08:00".
func (s *MedicationService) RecordDose(ctx context.Context, userID, id int64, doseKey string, taken bool) (*domain.Medication, error) {
	occ, err := domain.ParseDoseKey(doseKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.repo.ApplyOutcomes(ctx, userID, id, func(m *domain.Medication) error {
		return domain.RecordDose(m, occ, taken)
	})
}

// DoseStatus is a scheduled dose with its recorded outcome, if any.
type DoseStatus struct {
	Key   string `json:"key"`
	Day   string `json:"day"`
	Time  string `json:"time"`
	Taken *bool  `json:"taken"`
}

// Doses lists the medication's scheduled doses between from and to,
// inclusive, newest first.
func (s *MedicationService) Doses(ctx context.Context, userID, id int64, from, to time.Time) ([]DoseStatus, error) {
	from, to = domain.Day(from), domain.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidInput)
	}
	if to.Sub(from) >= maxDoseRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidInput, maxDoseRangeDays)
	}

	m, err := s.repo.GetMedication(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	out := []DoseStatus{}
	for occ := range domain.EnumerateDesc(m.Schedule, from, to) {
		key := occ.Key()
		st := DoseStatus{Key: key, Day: occ.Date.Format(domain.DayLayout), Time: occ.Time.String()}
		if taken, ok := m.Taken.Status(key); ok {
			st.Taken = &taken
		}
		out = append(out, st)
	}
	return out, nil
}
