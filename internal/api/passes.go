package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultPassLimit = 20
	maxPassLimit     = 200
)

// handleLastPass returns the most recent pass report.
func (s *Server) handleLastPass(w http.ResponseWriter, r *http.Request) {
	report, ok := s.passes.LastReport()
	if !ok {
		writeError(w, r, http.StatusNotFound, "no sync pass has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleListPasses returns stored pass reports, newest first.
func (s *Server) handleListPasses(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, "pass history not available")
		return
	}

	limit := defaultPassLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPassLimit {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPassLimit))
			return
		}
		limit = n
	}

	reports, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing pass reports failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list passes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"passes": reports,
		"count":  len(reports),
	})
}

// handleTriggerSync requests an immediate sync pass.
func (s *Server) handleTriggerSync(w http.ResponseWriter, _ *http.Request) {
	s.passes.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sync requested"})
}
