package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/haotianfei/frigate-exports-backup/internal/backup"
	"github.com/haotianfei/frigate-exports-backup/internal/frigate"
	"github.com/haotianfei/frigate-exports-backup/internal/orchestrator"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

// Params are the per-run inputs, typically from CLI flags.
type Params struct {
	// Cameras filters the export to these cameras; empty means all.
	Cameras []string
	// Date is the target day as YYYY-MM-DD; empty means days_ago before
	// today.
	Date string
	Mode timeplan.Mode
}

// Run executes the full pipeline for one day: plan windows, submit and
// poll export jobs, relocate finished artifacts, delete their source
// records, and sweep expired backups. Job and file level failures are
// accumulated in the report; only configuration problems and a fully
// unreachable API abort the run.
func (op *Operator) Run(ctx context.Context, p Params) (*Report, error) {
	started := time.Now().In(op.loc)

	date, err := op.targetDate(p.Date)
	if err != nil {
		return nil, err
	}
	windows, err := timeplan.Plan(date, p.Mode)
	if err != nil {
		return nil, err
	}
	cameras, err := op.resolveCameras(ctx, p.Cameras)
	if err != nil {
		return nil, err
	}

	op.log.Info("starting export run",
		"api", op.cfg.Frigate.APIURL,
		"date", date.Format("2006-01-02"),
		"windows", len(windows),
		"cameras", cameras)

	orch := orchestrator.New(op.client, orchestrator.Config{
		SourceDir:    op.cfg.Export.SourcePath,
		PollInterval: op.cfg.Export.PollInterval,
		MaxWait:      op.cfg.Export.MaxWait,
		Workers:      op.cfg.Export.Workers,
		Log:          op.log,
		OnProgress: func(pr orchestrator.Progress) {
			op.log.Info("export in progress",
				"name", pr.Name,
				"camera", pr.Camera,
				"size", humanize.Bytes(uint64(pr.SizeBytes)),
				"elapsed", pr.Elapsed.Round(time.Second).String())
		},
	})

	summary := orch.Run(ctx, cameras, windows)
	if summary.Total() > 0 && summary.SubmitFailed == summary.Total() {
		return nil, fmt.Errorf("all %d export submissions failed: %w", summary.Total(), frigate.ErrAPI)
	}

	report := newReport(summary, date, len(windows), started)

	relocator := backup.NewRelocator(op.cfg.Export.DestPath, op.cfg.Export.Compress, op.log)
	var relocated []backup.Relocated
	for _, artifact := range summary.Artifacts {
		result, err := relocator.Relocate(artifact)
		if err != nil {
			report.RelocateErrors = append(report.RelocateErrors, err.Error())
			op.log.Error("relocation failed",
				"camera", artifact.Camera, "path", artifact.Path, "error", err)
			continue
		}
		report.Backups = append(report.Backups, result)
		relocated = append(relocated, backup.Relocated{
			ExportID: artifact.ExportID,
			DestPath: result.DestPath,
		})
		if result.Skipped {
			op.log.Info("artifact already backed up", "dest", result.DestPath)
		} else {
			op.log.Info("artifact relocated",
				"dest", result.DestPath, "size", humanize.Bytes(uint64(result.SizeBytes)))
		}
	}

	sweeper := backup.NewSweeper(op.cfg.Export.DestPath, op.cfg.Retention.MaxAgeDays, op.client, op.log)
	for _, err := range sweeper.DeleteSourceRecords(ctx, relocated) {
		report.RecordErrors = append(report.RecordErrors, err.Error())
	}

	removed, sweepErrs := sweeper.SweepDest(time.Now().In(op.loc))
	report.SweepRemoved = removed
	for _, err := range sweepErrs {
		report.SweepErrors = append(report.SweepErrors, err.Error())
	}

	report.CompletedAt = time.Now().In(op.loc)
	report.Duration = report.CompletedAt.Sub(started)

	if err := report.Write(op.cfg.Export.DestPath); err != nil {
		op.log.Warn("failed to write run report", "error", err)
	}

	op.log.Info("export run finished",
		"completed", report.Completed,
		"failed", report.Failed,
		"timed_out", report.TimedOut,
		"backups", len(report.Backups),
		"swept", removed,
		"duration", report.Duration.Round(time.Second).String())

	return report, nil
}

// Sweep runs the retention sweep of the backup directory on its own.
func (op *Operator) Sweep(ctx context.Context) (int, []error) {
	sweeper := backup.NewSweeper(op.cfg.Export.DestPath, op.cfg.Retention.MaxAgeDays, op.client, op.log)
	return sweeper.SweepDest(time.Now().In(op.loc))
}
