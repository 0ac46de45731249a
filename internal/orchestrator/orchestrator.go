// Package orchestrator drives export jobs through their lifecycle:
// sequential submission, bounded concurrent polling, and terminal
// classification into completed, failed, or timed out.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haotianfei/frigate-exports-backup/internal/frigate"
	"github.com/haotianfei/frigate-exports-backup/internal/logger"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

// maxPollErrors is how many consecutive API failures a single job
// tolerates before it is marked failed.
const maxPollErrors = 5

// ExportAPI is the slice of the Frigate client the orchestrator needs.
type ExportAPI interface {
	StartExport(ctx context.Context, camera string, w timeplan.Window) (string, error)
	GetExportStatus(ctx context.Context, exportID string) (frigate.ExportStatus, error)
}

// Prober reports the current on-disk size of an artifact.
type Prober func(path string) (int64, error)

// Config carries the knobs for one orchestration run. Zero values fall
// back to sane defaults in New.
type Config struct {
	// SourceDir is where Frigate's export files appear on this host.
	SourceDir    string
	PollInterval time.Duration
	// MaxWait is the per-job ceiling between submission and completion.
	MaxWait time.Duration
	// Workers bounds how many status requests run concurrently.
	Workers    int
	Clock      Clock
	Probe      Prober
	OnProgress func(Progress)
	Log        logger.Logger
}

// Orchestrator runs a batch of (camera, window) export jobs.
type Orchestrator struct {
	api ExportAPI
	cfg Config
	sem chan struct{}
}

// New creates an Orchestrator over the given API.
func New(api ExportAPI, cfg Config) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Probe == nil {
		cfg.Probe = statSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Log == nil {
		cfg.Log = logger.Global()
	}
	return &Orchestrator{
		api: api,
		cfg: cfg,
		sem: make(chan struct{}, cfg.Workers),
	}
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Run submits one job per camera and window, polls every job to a
// terminal state, and returns the batch summary. A failed submission
// marks only that job failed; the batch carries on. Cancelling ctx
// moves every non-terminal job to timed out, so callers can still
// relocate whatever completed.
func (o *Orchestrator) Run(ctx context.Context, cameras []string, windows []timeplan.Window) Summary {
	runID := uuid.NewString()
	log := o.cfg.Log

	jobs := make([]*Job, 0, len(cameras)*len(windows))
	submitFailed := 0
	for _, camera := range cameras {
		for _, w := range windows {
			job := &Job{Camera: camera, Window: w, State: StatePending}
			jobs = append(jobs, job)

			if ctx.Err() != nil {
				job.State = StateTimedOut
				job.Err = ctx.Err()
				continue
			}
			id, err := o.api.StartExport(ctx, camera, w)
			if err != nil {
				job.State = StateFailed
				job.Err = err
				submitFailed++
				log.Error("export submission failed",
					"run", runID, "camera", camera, "window", w.Slug(), "error", err)
				continue
			}
			job.ExportID = id
			job.SubmittedAt = o.cfg.Clock.Now()
			log.Info("export submitted",
				"run", runID, "camera", camera, "window", w.Slug(), "export_id", id)
		}
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		if job.State.Terminal() {
			continue
		}
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			o.poll(ctx, j)
		}(job)
	}
	wg.Wait()

	summary := Summary{RunID: runID, SubmitFailed: submitFailed}
	for _, j := range jobs {
		switch j.State {
		case StateCompleted:
			summary.Completed++
			summary.Artifacts = append(summary.Artifacts, Artifact{
				ExportID:  j.ExportID,
				Camera:    j.Camera,
				Window:    j.Window,
				Path:      j.ArtifactPath,
				SizeBytes: j.SizeBytes,
			})
		case StateFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, failureOf(j))
		case StateTimedOut:
			summary.TimedOut++
			summary.Failures = append(summary.Failures, failureOf(j))
		}
	}
	log.Info("export batch finished",
		"run", runID,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"timed_out", summary.TimedOut)
	return summary
}

func failureOf(j *Job) Failure {
	reason := "exceeded maximum wait"
	if j.Err != nil {
		reason = j.Err.Error()
	}
	return Failure{Camera: j.Camera, Window: j.Window, State: j.State, Reason: reason}
}

// poll drives one job to a terminal state. Each status check waits at
// least PollInterval after the previous one; the worker semaphore only
// bounds the API call itself, so slow jobs never starve others of a
// poll slot.
func (o *Orchestrator) poll(ctx context.Context, j *Job) {
	log := o.cfg.Log
	var lastSize int64 = -1
	seen := false
	apiErrs := 0

	for {
		select {
		case <-ctx.Done():
			j.State = StateTimedOut
			j.Err = fmt.Errorf("run cancelled: %w", ctx.Err())
			return
		case <-o.cfg.Clock.After(o.cfg.PollInterval):
		}

		elapsed := o.cfg.Clock.Now().Sub(j.SubmittedAt)
		if elapsed > o.cfg.MaxWait {
			j.State = StateTimedOut
			log.Warn("export timed out",
				"camera", j.Camera, "window", j.Window.Slug(), "waited", elapsed.Round(time.Second))
			return
		}

		o.sem <- struct{}{}
		status, err := o.api.GetExportStatus(ctx, j.ExportID)
		<-o.sem

		if err != nil {
			apiErrs++
			if apiErrs >= maxPollErrors {
				j.State = StateFailed
				j.Err = fmt.Errorf("status checks failed %d times in a row: %w", apiErrs, err)
				return
			}
			log.Warn("export status check failed",
				"camera", j.Camera, "export_id", j.ExportID, "error", err)
			continue
		}
		apiErrs = 0

		switch status.State {
		case frigate.StateNotFound:
			if seen {
				// The record existed and vanished without finishing.
				j.State = StateFailed
				j.Err = fmt.Errorf("export record %s disappeared before completion", j.ExportID)
				return
			}
			log.Debug("waiting for export record to appear",
				"camera", j.Camera, "export_id", j.ExportID)

		case frigate.StateInProgress:
			seen = true
			j.State = StateInProgress
			j.ArtifactPath = o.artifactPath(status.VideoPath)
			o.observe(j, status, elapsed)

		case frigate.StateFinished:
			seen = true
			j.State = StateInProgress
			j.ArtifactPath = o.artifactPath(status.VideoPath)

			size, err := o.cfg.Probe(j.ArtifactPath)
			if err != nil {
				log.Warn("export finished but artifact not visible yet",
					"camera", j.Camera, "path", j.ArtifactPath, "error", err)
				continue
			}
			o.report(j, status, size, elapsed)
			// The API can report done while the file is still being
			// flushed; require a stable size across two polls.
			if lastSize >= 0 && size == lastSize {
				j.SizeBytes = size
				j.State = StateCompleted
				log.Info("export completed",
					"camera", j.Camera, "window", j.Window.Slug(),
					"path", j.ArtifactPath, "size_bytes", size)
				return
			}
			lastSize = size
		}
	}
}

// observe probes the artifact if possible and reports progress.
func (o *Orchestrator) observe(j *Job, status frigate.ExportStatus, elapsed time.Duration) {
	size, err := o.cfg.Probe(j.ArtifactPath)
	if err != nil {
		size = 0
	}
	o.report(j, status, size, elapsed)
}

func (o *Orchestrator) report(j *Job, status frigate.ExportStatus, size int64, elapsed time.Duration) {
	if o.cfg.OnProgress == nil {
		return
	}
	name := status.Name
	if name == "" {
		name = frigate.ExportName(j.Camera, j.Window)
	}
	o.cfg.OnProgress(Progress{
		Camera:    j.Camera,
		Name:      name,
		SizeBytes: size,
		Elapsed:   elapsed,
	})
}

// artifactPath maps Frigate's container-internal video path onto the
// local source directory.
func (o *Orchestrator) artifactPath(videoPath string) string {
	if videoPath == "" {
		return ""
	}
	return filepath.Join(o.cfg.SourceDir, filepath.Base(videoPath))
}
