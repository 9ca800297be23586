package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"media-curator/internal/scanner"
)

// StartScanRequest is the optional body of POST /scan/start.
type StartScanRequest struct {
	TargetPath     string   `json:"target_path"`
	ForceReprocess bool     `json:"force_reprocess"`
	ExcludeDirs    []string `json:"exclude_dirs"`
}

// StartScanResponse acknowledges a launched scan.
type StartScanResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StartScan launches a background scan. A missing or empty body means a
// normal incremental scan. Returns 409 when a scan is already running.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	jobID, err := h.scanner.Start(scanner.Options{
		TargetPath:  req.TargetPath,
		Force:       req.ForceReprocess,
		ExcludeDirs: req.ExcludeDirs,
	})
	if errors.Is(err, scanner.ErrScanInProgress) {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if errors.Is(err, scanner.ErrInvalidTarget) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to start scan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, StartScanResponse{JobID: jobID, Status: "started"})
}

// ScanStatus reports the current or last scan job.
func (h *Handlers) ScanStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.scanner.Status())
}
