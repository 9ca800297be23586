package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-curator/internal/scanner"
	"media-curator/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Scanning bool   `json:"scanning"`

	ScanPhase     scanner.Phase `json:"scanPhase"`
	LastScanError string        `json:"lastScanError,omitempty"`
	IndexedFiles  int64         `json:"indexedFiles"`
	VectorRecords int           `json:"vectorRecords"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	scanStatus := h.scanner.Status()

	response := HealthResponse{
		Status:        statusHealthy,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Scanning:      scanStatus.IsActive,
		ScanPhase:     scanStatus.Phase,
		VectorRecords: h.index.Len(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	if scanStatus.Phase == scanner.PhaseError {
		response.Status = statusDegraded
		response.LastScanError = scanStatus.Error
	}

	if stats, err := h.db.CalculateStats(r.Context()); err == nil {
		response.IndexedFiles = stats.ProcessedFiles
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the stores answer queries.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.db.CalculateStats(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, "ready")
}
