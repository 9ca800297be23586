package scanner

import (
	"errors"
	"sync"
	"time"
)

// Phase is the lifecycle state of the scan job.
type Phase string

const (
	// PhaseIdle means no scan has run yet in this process.
	PhaseIdle Phase = "idle"
	// PhaseScanning means a scan is running.
	PhaseScanning Phase = "scanning"
	// PhaseCompleted means the last scan finished, possibly with
	// individual file failures.
	PhaseCompleted Phase = "completed"
	// PhaseError means the last scan aborted before finishing.
	PhaseError Phase = "error"
)

// ErrScanInProgress is returned when a scan is requested while one is
// already running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// ErrInvalidTarget is returned when the requested scan root does not exist
// or is not a directory. No job state changes in that case.
var ErrInvalidTarget = errors.New("invalid scan target")

// Status is a point-in-time snapshot of the scan job, shaped for the scan
// status endpoint. Individual file failures do not end the job; they show
// up in FailedCount while the job completes normally.
type Status struct {
	JobID           string  `json:"job_id,omitempty"`
	IsActive        bool    `json:"is_active"`
	Phase           Phase   `json:"phase"`
	ProgressPercent float64 `json:"progress_percent"`
	CurrentFile     string  `json:"current_file,omitempty"`
	ProcessedCount  int     `json:"processed_count"`
	SkippedCount    int     `json:"skipped_count"`
	FailedCount     int     `json:"failed_count"`
	TotalFiles      int     `json:"total_files"`
	ETASeconds      float64 `json:"eta_seconds"`
	Error           string  `json:"error,omitempty"`
}

// etaSmoothing is the weight of the newest per-file duration in the
// moving average behind the ETA.
const etaSmoothing = 0.2

// jobState tracks scan progress under a lock so status reads never block
// on extraction work.
type jobState struct {
	mu         sync.RWMutex
	status     Status
	emaPerFile float64 // smoothed seconds per file
}

func newJobState() *jobState {
	return &jobState{status: Status{Phase: PhaseIdle}}
}

// begin resets the state for a new job.
func (j *jobState) begin(jobID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = Status{
		JobID:    jobID,
		IsActive: true,
		Phase:    PhaseScanning,
	}
	j.emaPerFile = 0
}

func (j *jobState) setTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.TotalFiles = n
}

func (j *jobState) fileStarted(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.CurrentFile = path
}

// fileDone records one finished file and refreshes progress and ETA.
// outcome is "processed", "skipped" or "failed".
func (j *jobState) fileDone(outcome string, elapsed time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch outcome {
	case "skipped":
		j.status.SkippedCount++
	case "failed":
		j.status.FailedCount++
	default:
		j.status.ProcessedCount++
	}

	seconds := elapsed.Seconds()
	if j.emaPerFile == 0 {
		j.emaPerFile = seconds
	} else {
		j.emaPerFile = etaSmoothing*seconds + (1-etaSmoothing)*j.emaPerFile
	}

	done := j.status.ProcessedCount + j.status.SkippedCount + j.status.FailedCount
	if j.status.TotalFiles > 0 {
		j.status.ProgressPercent = 100 * float64(done) / float64(j.status.TotalFiles)
		remaining := j.status.TotalFiles - done
		j.status.ETASeconds = j.emaPerFile * float64(remaining)
	}
}

func (j *jobState) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.IsActive = false
	j.status.Phase = PhaseCompleted
	j.status.CurrentFile = ""
	j.status.ProgressPercent = 100
	j.status.ETASeconds = 0
}

func (j *jobState) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.IsActive = false
	j.status.Phase = PhaseError
	j.status.CurrentFile = ""
	j.status.ETASeconds = 0
	j.status.Error = err.Error()
}

// snapshot returns a copy of the current status.
func (j *jobState) snapshot() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}
