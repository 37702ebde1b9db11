package app

import (
	"context"
	"time"

	"medreminder/internal/domain"
)

// maxReportDays caps the reporting window.
const maxReportDays = 366

// ReportService encapsulates adherence reporting use cases.
type ReportService struct {
	repo domain.MedicationRepository
}

// NewReportService creates a ReportService backed by the given repository.
func NewReportService(repo domain.MedicationRepository) *ReportService {
	return &ReportService{repo: repo}
}

// Weekly returns the user's adherence over the days-long window ending at end.
func (s *ReportService) Weekly(ctx context.Context, userID int64, end time.Time, days int) (domain.AdherenceReport, error) {
	meds, err := s.repo.ListMedications(ctx, userID)
	if err != nil {
		return domain.AdherenceReport{}, err
	}
	return domain.WeeklyReport(meds, end, ClampReportDays(days)), nil
}

// Daily returns per-day adherence for the window ending at end, newest first.
func (s *ReportService) Daily(ctx context.Context, userID int64, end time.Time, days int) ([]domain.DayAdherence, error) {
	meds, err := s.repo.ListMedications(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.DailyBreakdown(meds, end, ClampReportDays(days)), nil
}

// ClampReportDays maps a requested window length into [1, 366]. Non-positive
// values select the default weekly window.
func ClampReportDays(days int) int {
	if days <= 0 {
		return domain.DefaultWindowDays
	}
	if days > maxReportDays {
		return maxReportDays
	}
	return days
}
