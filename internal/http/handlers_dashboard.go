package http

import (
	"errors"
	"net/http"

	"finctl/internal/core"
	"finctl/internal/dashboard"
)

// handleDashboard answers an empty dashboard, not 404, while nothing is
// loaded so the charts can render their empty state.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.ledger.Dashboard(r.Context())
	if errors.Is(err, core.ErrNoData) {
		writeJSON(w, http.StatusOK, dashboard.Dashboard{MonthlyData: []dashboard.MonthlyPoint{}})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	months, err := parseIntParam(r.URL.Query(), "months", forecastDefaultMonths)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.ledger.Forecast(r.Context(), months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Validate(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
