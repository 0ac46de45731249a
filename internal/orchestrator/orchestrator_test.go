package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haotianfei/frigate-exports-backup/internal/frigate"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

// fakeClock advances by the waited duration on every After call, so poll
// loops run instantly while elapsed time stays meaningful.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type statusStep struct {
	status frigate.ExportStatus
	err    error
}

// fakeAPI returns export ids equal to the camera name, so status
// sequences can be keyed by camera. The last step repeats forever.
type fakeAPI struct {
	mu        sync.Mutex
	submitErr map[string]error
	steps     map[string][]statusStep
	polls     map[string]int
	submitted []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		submitErr: map[string]error{},
		steps:     map[string][]statusStep{},
		polls:     map[string]int{},
	}
}

func (f *fakeAPI) StartExport(ctx context.Context, camera string, w timeplan.Window) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.submitErr[camera]; err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, camera)
	return camera, nil
}

func (f *fakeAPI) GetExportStatus(ctx context.Context, exportID string) (frigate.ExportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := f.steps[exportID]
	if len(steps) == 0 {
		return frigate.ExportStatus{}, fmt.Errorf("no scripted status for %s", exportID)
	}
	i := f.polls[exportID]
	f.polls[exportID]++
	if i >= len(steps) {
		i = len(steps) - 1
	}
	return steps[i].status, steps[i].err
}

func inProgress(camera, path string) frigate.ExportStatus {
	return frigate.ExportStatus{State: frigate.StateInProgress, Camera: camera, Name: camera + "_export", VideoPath: path}
}

func finished(camera, path string) frigate.ExportStatus {
	return frigate.ExportStatus{State: frigate.StateFinished, Camera: camera, Name: camera + "_export", VideoPath: path}
}

func notFound() frigate.ExportStatus {
	return frigate.ExportStatus{State: frigate.StateNotFound}
}

func testWindows(t *testing.T) []timeplan.Window {
	t.Helper()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	windows, err := timeplan.Plan(day, timeplan.Mode{StartHour: 0, EndHour: 24})
	require.NoError(t, err)
	return windows
}

func fixedSize(size int64) Prober {
	return func(string) (int64, error) { return size, nil }
}

func TestRunCompletesJob(t *testing.T) {
	api := newFakeAPI()
	api.steps["cam1"] = []statusStep{
		{status: notFound()},
		{status: inProgress("cam1", "/media/frigate/exports/cam1.mp4")},
		{status: finished("cam1", "/media/frigate/exports/cam1.mp4")},
		{status: finished("cam1", "/media/frigate/exports/cam1.mp4")},
	}

	var mu sync.Mutex
	var progress []Progress

	orch := New(api, Config{
		SourceDir:    "/srv/exports",
		PollInterval: 30 * time.Second,
		MaxWait:      time.Hour,
		Workers:      2,
		Clock:        &fakeClock{},
		Probe:        fixedSize(100),
		OnProgress: func(p Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	})

	summary := orch.Run(context.Background(), []string{"cam1"}, testWindows(t))

	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.TimedOut)
	assert.True(t, summary.OK())
	require.Len(t, summary.Artifacts, 1)

	artifact := summary.Artifacts[0]
	assert.Equal(t, "cam1", artifact.ExportID)
	assert.Equal(t, filepath.Join("/srv/exports", "cam1.mp4"), artifact.Path)
	assert.Equal(t, int64(100), artifact.SizeBytes)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, progress)
	assert.Equal(t, "cam1", progress[0].Camera)
	assert.Equal(t, int64(100), progress[0].SizeBytes)
}

func TestRunWaitsForStableSize(t *testing.T) {
	api := newFakeAPI()
	path := "/media/frigate/exports/cam1.mp4"
	api.steps["cam1"] = []statusStep{
		{status: finished("cam1", path)},
		{status: finished("cam1", path)},
		{status: finished("cam1", path)},
	}

	var calls int
	sizes := []int64{10, 20, 20}
	probe := func(string) (int64, error) {
		size := sizes[calls]
		if calls < len(sizes)-1 {
			calls++
		}
		return size, nil
	}

	orch := New(api, Config{
		SourceDir:    "/srv/exports",
		PollInterval: 30 * time.Second,
		MaxWait:      time.Hour,
		Clock:        &fakeClock{},
		Probe:        probe,
	})

	summary := orch.Run(context.Background(), []string{"cam1"}, testWindows(t))

	require.Len(t, summary.Artifacts, 1)
	// Still growing at 10 then 20; completed only once two polls agree.
	assert.Equal(t, int64(20), summary.Artifacts[0].SizeBytes)
	assert.GreaterOrEqual(t, api.polls["cam1"], 3)
}

func TestRunToleratesSubmissionFailure(t *testing.T) {
	api := newFakeAPI()
	api.submitErr["bad"] = errors.New("boom")
	api.steps["good"] = []statusStep{
		{status: finished("good", "/media/frigate/exports/good.mp4")},
		{status: finished("good", "/media/frigate/exports/good.mp4")},
	}

	orch := New(api, Config{
		SourceDir:    "/srv/exports",
		PollInterval: 30 * time.Second,
		MaxWait:      time.Hour,
		Clock:        &fakeClock{},
		Probe:        fixedSize(50),
	})

	summary := orch.Run(context.Background(), []string{"bad", "good"}, testWindows(t))

	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.SubmitFailed)
	assert.False(t, summary.OK())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "bad", summary.Failures[0].Camera)
	assert.Equal(t, StateFailed, summary.Failures[0].State)
	// The bad camera never reached submission.
	assert.Equal(t, []string{"good"}, api.submitted)
}

func TestRunTimesOut(t *testing.T) {
	api := newFakeAPI()
	api.steps["cam1"] = []statusStep{
		{status: inProgress("cam1", "/media/frigate/exports/cam1.mp4")},
	}

	orch := New(api, Config{
		SourceDir:    "/srv/exports",
		PollInterval: 30 * time.Second,
		MaxWait:      90 * time.Second,
		Clock:        &fakeClock{},
		Probe:        fixedSize(10),
	})

	summary := orch.Run(context.Background(), []string{"cam1"}, testWindows(t))

	assert.Equal(t, 0, summary.Completed)
	assert.Equal(t, 1, summary.TimedOut)
	assert.Empty(t, summary.Artifacts, "timed out jobs are excluded from relocation")
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, StateTimedOut, summary.Failures[0].State)
}

func TestRunFailsWhenRecordDisappears(t *testing.T) {
	api := newFakeAPI()
	api.steps["cam1"] = []statusStep{
		{status: inProgress("cam1", "/media/frigate/exports/cam1.mp4")},
		{status: notFound()},
	}

	orch := New(api, Config{
		SourceDir:    "/srv/exports",
		PollInterval: 30 * time.Second,
		MaxWait:      time.Hour,
		Clock:        &fakeClock{},
		Probe:        fixedSize(10),
	})

	summary := orch.Run(context.Background(), []string{"cam1"}, testWindows(t))

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Reason, "disappeared")
}

func TestRunFailsAfterRepeatedStatusErrors(t *testing.T) {
	api := newFakeAPI()
	api.steps["cam1"] = []statusStep{
		{err: fmt.Errorf("%w: connection refused", frigate.ErrAPI)},
	}

	orch := New(api, Config{
		SourceDir:    "/srv/exports",
		PollInterval: 30 * time.Second,
		MaxWait:      24 * time.Hour,
		Clock:        &fakeClock{},
		Probe:        fixedSize(10),
	})

	summary := orch.Run(context.Background(), []string{"cam1"}, testWindows(t))

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, maxPollErrors, api.polls["cam1"])
}

func TestRunCancelledContextMarksJobsTimedOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := newFakeAPI()
	orch := New(api, Config{
		SourceDir: "/srv/exports",
		Clock:     &fakeClock{},
		Probe:     fixedSize(10),
	})

	summary := orch.Run(ctx, []string{"cam1", "cam2"}, testWindows(t))

	assert.Equal(t, 2, summary.TimedOut)
	assert.Empty(t, api.submitted)
}
