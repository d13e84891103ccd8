package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListAccessories returns every published accessory ordered by aid.
func (s *Server) handleListAccessories(w http.ResponseWriter, r *http.Request) {
	records := s.accessories.Records()

	if room := r.URL.Query().Get("room"); room != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.RoomID == room {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessories": records,
		"count":       len(records),
	})
}

// handleGetAccessory returns one accessory by key.
func (s *Server) handleGetAccessory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, ok := s.accessories.Record(key)
	if !ok {
		writeError(w, r, http.StatusNotFound, "accessory not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
