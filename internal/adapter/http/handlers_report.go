package adapthttp

import (
	"net/http"

	"medreminder/internal/app"
	"medreminder/internal/domain"
)

type weeklyResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	domain.AdherenceReport
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	end, err := dayQuery(r, "end", s.today())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	days := app.ClampReportDays(intQuery(r, "days", s.windowDays))

	report, err := s.reports.Weekly(r.Context(), userFrom(r.Context()).ID, end, days)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	from, to := domain.Window(end, days)
	writeJSON(w, http.StatusOK, weeklyResponse{
		From:            from.Format(domain.DayLayout),
		To:              to.Format(domain.DayLayout),
		AdherenceReport: report,
	})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	end, err := dayQuery(r, "end", s.today())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	days := intQuery(r, "days", s.windowDays)

	breakdown, err := s.reports.Daily(r.Context(), userFrom(r.Context()).ID, end, days)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": breakdown})
}
