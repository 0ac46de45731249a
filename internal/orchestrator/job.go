package orchestrator

import (
	"time"

	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

// JobState is the orchestration state of one export job.
type JobState int

const (
	StatePending JobState = iota
	StateInProgress
	StateCompleted
	StateFailed
	// StateTimedOut marks a job the orchestrator gave up waiting on. It is
	// a local policy decision, distinct from a remote failure.
	StateTimedOut
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Job tracks one (camera, window) export for the duration of a run. The
// external system is the source of truth for export existence; jobs are
// never persisted across runs.
type Job struct {
	ExportID     string
	Camera       string
	Window       timeplan.Window
	State        JobState
	SubmittedAt  time.Time
	ArtifactPath string
	SizeBytes    int64
	Err          error
}

// Artifact describes a completed export ready for relocation.
type Artifact struct {
	ExportID  string
	Camera    string
	Window    timeplan.Window
	Path      string
	SizeBytes int64
}

// Failure describes a job that ended in Failed or TimedOut.
type Failure struct {
	Camera string
	Window timeplan.Window
	State  JobState
	Reason string
}

// Progress is one observation of a running job, reported on every poll.
type Progress struct {
	Camera    string
	Name      string
	SizeBytes int64
	Elapsed   time.Duration
}

// Summary is the terminal outcome of a batch.
type Summary struct {
	RunID        string
	Completed    int
	Failed       int
	TimedOut     int
	SubmitFailed int
	Artifacts    []Artifact
	Failures     []Failure
}

// OK reports whether every job in the batch completed.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.TimedOut == 0
}

// Total returns the number of jobs in the batch.
func (s Summary) Total() int {
	return s.Completed + s.Failed + s.TimedOut
}
