package adapthttp

import (
	"fmt"
	"net/http"

	"medreminder/internal/app"
	"medreminder/internal/domain"
)

type medicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Times     string `json:"times"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type scheduleRequest struct {
	Times     string `json:"times"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type recordRequest struct {
	Taken *bool  `json:"taken"`
	Day   string `json:"day,omitempty"`
}

type doseRequest struct {
	DateTime string `json:"dateTime"`
	Taken    *bool  `json:"taken"`
}

type recordResponse struct {
	Medication *domain.Medication `json:"medication"`
	Day        string             `json:"day"`
	Written    int                `json:"written"`
}

var errTakenRequired = fmt.Errorf("%w: taken is required", app.ErrInvalidInput)

func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := s.meds.List(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"medications": meds})
}

func (s *Server) handleCreateMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := parseJSON(r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}

	m, err := s.meds.Create(r.Context(), userFrom(r.Context()).ID, app.CreateMedicationInput{
		Name:      req.Name,
		Dosage:    req.Dosage,
		Times:     req.Times,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	m, err := s.meds.Get(r.Context(), userFrom(r.Context()).ID, id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMedication(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if err := s.meds.Delete(r.Context(), userFrom(r.Context()).ID, id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := parseJSON(r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}

	m, err := s.meds.UpdateSchedule(r.Context(), userFrom(r.Context()).ID, id, req.StartDate, req.EndDate, req.Times)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleRecordDay marks every dose of one day, today unless given.
func (s *Server) handleRecordDay(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	var req recordRequest
	if err := parseJSON(r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if req.Taken == nil {
		s.serviceError(w, r, errTakenRequired)
		return
	}

	day := s.today()
	if req.Day != "" {
		if day, err = domain.ParseDay(req.Day); err != nil {
			s.serviceError(w, r, fmt.Errorf("%w: %w", app.ErrInvalidInput, err))
			return
		}
	}

	m, written, err := s.meds.RecordOutcome(r.Context(), userFrom(r.Context()).ID, id, day, *req.Taken)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.metrics.recordOutcomes(*req.Taken, written)
	writeJSON(w, http.StatusOK, recordResponse{Medication: m, Day: day.Format(domain.DayLayout), Written: written})
}

func (s *Server) handleRecordDose(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	var req doseRequest
	if err := parseJSON(r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if req.Taken == nil {
		s.serviceError(w, r, errTakenRequired)
		return
	}
	if req.DateTime == "" {
		s.serviceError(w, r, fmt.Errorf("%w: dateTime is required", app.ErrInvalidInput))
		return
	}

	m, err := s.meds.RecordDose(r.Context(), userFrom(r.Context()).ID, id, req.DateTime, *req.Taken)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.metrics.recordOutcomes(*req.Taken, 1)
	writeJSON(w, http.StatusOK, m)
}

// handleListDoses defaults to the reporting window ending today.
func (s *Server) handleListDoses(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	to, err := dayQuery(r, "to", s.today())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	defFrom, _ := domain.Window(to, s.windowDays)
	from, err := dayQuery(r, "from", defFrom)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	doses, err := s.meds.Doses(r.Context(), userFrom(r.Context()).ID, id, from, to)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":  from.Format(domain.DayLayout),
		"to":    to.Format(domain.DayLayout),
		"doses": doses,
	})
}
