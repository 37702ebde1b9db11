package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medreminder/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// Seed creates a sample user with two short courses starting on today.
// It refuses to run against a store that already has users.
func Seed(ctx context.Context, users domain.UserRepository, meds domain.MedicationRepository, username, password string, today time.Time) (*domain.User, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsersExist
	}
	if username == "" || password == "" {
		return nil, errors.New("seed: username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := users.Create(ctx, username, string(hash))
	if err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}

	today = domain.Day(today)
	samples := []struct {
		name, dosage, times string
		days                int
	}{
		{"Paracetamol 650", "1 tablet", "08:00,20:00", 5},
		{"Vitamin C", "1 tablet", "09:00", 7},
	}
	for _, sm := range samples {
		times, err := domain.ParseTimes(sm.times)
		if err != nil {
			return nil, err
		}
		sched, err := domain.NewSchedule(today, today.AddDate(0, 0, sm.days), times)
		if err != nil {
			return nil, err
		}
		m := domain.Medication{
			UserID:    user.ID,
			Name:      sm.name,
			Dosage:    sm.dosage,
			Schedule:  sched,
			Taken:     domain.TakenLedger{},
			CreatedAt: time.Now().UTC(),
		}
		if _, err := meds.CreateMedication(ctx, m); err != nil {
			return nil, fmt.Errorf("seed medication %q: %w", sm.name, err)
		}
	}
	return user, nil
}
