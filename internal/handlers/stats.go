package handlers

import (
	"net/http"

	"media-curator/internal/database"
)

// StatsResponse pairs the metadata store summary with the vector index
// record count.
type StatsResponse struct {
	*database.LibraryStats
	VectorRecords int `json:"vectorRecords"`
}

// GetStats returns library statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.CalculateStats(r.Context())
	if err != nil {
		writeJSONError(w, "failed to calculate stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, StatsResponse{LibraryStats: stats, VectorRecords: h.index.Len()})
}
