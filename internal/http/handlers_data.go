package http

import (
	"net/http"

	"finctl/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady answers 503 until a dataset is loaded, so a balancer can hold
// traffic during the first upload if it wants to.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.Status().HasData {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "empty"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// StatusResponse describes the loaded dataset and the server counters.
type StatusResponse struct {
	Health string `json:"status"`
	services.Status
	HTTP Metrics `json:"http"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Health: "healthy",
		Status: s.ledger.Status(),
		HTTP:   s.Metrics(),
	})
}

// UploadResponse reports what an upload loaded.
type UploadResponse struct {
	Message string `json:"message"`
	Rows    int    `json:"rows"`
	services.UploadResult
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	raw, name, err := readUpload(r, s.maxUpload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.ledger.Upload(r.Context(), name, raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Message:      "File processed successfully",
		Rows:         res.Report.Accepted,
		UploadResult: res,
	})
}

func (s *Server) handleResetData(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.ResetData(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Data cleared successfully",
		Version: s.ledger.Status().Metadata.Version,
	})
}
