package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finctl/internal/core"
	"finctl/internal/export"
	"finctl/internal/pnl"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var timeNow = time.Now

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stmt, err := s.ledger.Statement(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// handleExport streams the statement and dashboard as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	version := s.ledger.Status().Metadata.Version
	stmt, err := s.ledger.Statement(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, export.NewReport(version, stmt, timeNow().UTC())); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(version)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleDrilldown lists the transactions behind a leaf line or account code.
func (s *Server) handleDrilldown(w http.ResponseWriter, r *http.Request) {
	line, err := pnl.ParseLine(chi.URLParam(r, "line"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseOptionalMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.ledger.Drilldown(r.Context(), line, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// OverrideRequest sets one statement cell.
type OverrideRequest struct {
	Line  flexString `json:"line_number"`
	Month string     `json:"month"`
	Value flexFloat  `json:"value"`
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]pnl.Override{"overrides": s.ledger.Overrides().Entries()})
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Line == "" || strings.TrimSpace(req.Month) == "" {
		writeError(w, r, badRequest("missing line_number or month"))
		return
	}
	if !req.Value.set {
		writeError(w, r, badRequest("missing value"))
		return
	}
	month, err := core.ParseMonthKey(strings.TrimSpace(req.Month))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ledger.SetOverride(r.Context(), string(req.Line), month, req.Value.value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Override saved",
		Version: s.ledger.Status().Metadata.Version,
	})
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	line := strings.TrimSpace(q.Get("line_number"))
	if line == "" || strings.TrimSpace(q.Get("month")) == "" {
		writeError(w, r, badRequest("missing line_number or month"))
		return
	}
	month, err := core.ParseMonthKey(strings.TrimSpace(q.Get("month")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	removed, err := s.ledger.DeleteOverride(r.Context(), line, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		writeJSONError(w, http.StatusNotFound, "not_found", "no override for line "+line+" in "+string(month))
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Override removed",
		Version: s.ledger.Status().Metadata.Version,
	})
}

func (s *Server) handleClearOverrides(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.ClearOverrides(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "All overrides cleared",
		"cleared": n,
	})
}
