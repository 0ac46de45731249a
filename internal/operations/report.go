package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haotianfei/frigate-exports-backup/internal/backup"
	"github.com/haotianfei/frigate-exports-backup/internal/orchestrator"
)

// Report is the record of a single run. It is written as JSON into the
// backup directory so operators can audit what each run did.
type Report struct {
	RunID          string          `json:"run_id"`
	Date           string          `json:"date"`
	Windows        int             `json:"windows"`
	Completed      int             `json:"completed"`
	Failed         int             `json:"failed"`
	TimedOut       int             `json:"timed_out"`
	Backups        []backup.Result `json:"backups,omitempty"`
	Failures       []string        `json:"failures,omitempty"`
	RelocateErrors []string        `json:"relocate_errors,omitempty"`
	RecordErrors   []string        `json:"record_errors,omitempty"`
	SweepRemoved   int             `json:"sweep_removed"`
	SweepErrors    []string        `json:"sweep_errors,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
	Duration       time.Duration   `json:"duration_ns"`
}

func newReport(s orchestrator.Summary, date time.Time, windows int, started time.Time) *Report {
	r := &Report{
		RunID:     s.RunID,
		Date:      date.Format("2006-01-02"),
		Windows:   windows,
		Completed: s.Completed,
		Failed:    s.Failed,
		TimedOut:  s.TimedOut,
		StartedAt: started,
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures,
			fmt.Sprintf("%s %s: %s (%s)", f.Camera, f.Window.Slug(), f.State, f.Reason))
	}
	return r
}

// OK reports whether the run fully succeeded: every job completed and
// every file operation went through.
func (r *Report) OK() bool {
	return r.Failed == 0 &&
		r.TimedOut == 0 &&
		len(r.RelocateErrors) == 0 &&
		len(r.RecordErrors) == 0 &&
		len(r.SweepErrors) == 0
}

// Write stores the report as run-<date>.json inside dirPath.
func (r *Report) Write(dirPath string) error {
	if err := backup.EnsureDirectoryExist(dirPath); err != nil {
		return fmt.Errorf("ensure report directory %q: %w", dirPath, err)
	}
	filePath := filepath.Join(dirPath, fmt.Sprintf("run-%s.json", r.Date))

	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create report file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode report JSON: %w", err)
	}
	return nil
}
