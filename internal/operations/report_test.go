package operations

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haotianfei/frigate-exports-backup/internal/orchestrator"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

func TestReportOK(t *testing.T) {
	r := &Report{Completed: 3}
	assert.True(t, r.OK())

	assert.False(t, (&Report{Completed: 2, Failed: 1}).OK())
	assert.False(t, (&Report{Completed: 2, TimedOut: 1}).OK())
	assert.False(t, (&Report{Completed: 2, RelocateErrors: []string{"x"}}).OK())
	assert.False(t, (&Report{Completed: 2, RecordErrors: []string{"x"}}).OK())
	assert.False(t, (&Report{Completed: 2, SweepErrors: []string{"x"}}).OK())
}

func TestReportWrite(t *testing.T) {
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	w := timeplan.Window{Start: day, End: day.Add(4 * time.Hour)}

	summary := orchestrator.Summary{
		RunID:     "run-1",
		Completed: 1,
		TimedOut:  1,
		Failures: []orchestrator.Failure{
			{Camera: "garage", Window: w, State: orchestrator.StateTimedOut, Reason: "exceeded maximum wait"},
		},
	}

	report := newReport(summary, day, 6, time.Now())
	dir := t.TempDir()
	require.NoError(t, report.Write(dir))

	data, err := os.ReadFile(filepath.Join(dir, "run-2025-11-15.json"))
	require.NoError(t, err)

	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "2025-11-15", loaded.Date)
	assert.Equal(t, 6, loaded.Windows)
	assert.Equal(t, 1, loaded.Completed)
	assert.Equal(t, 1, loaded.TimedOut)
	require.Len(t, loaded.Failures, 1)
	assert.Contains(t, loaded.Failures[0], "garage")
	assert.Contains(t, loaded.Failures[0], "timed_out")
}
