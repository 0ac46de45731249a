package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haotianfei/frigate-exports-backup/internal/logger"
)

// RecordDeleter deletes an export record on the source system.
type RecordDeleter interface {
	DeleteExport(ctx context.Context, exportID string) error
}

// Relocated ties an export record to its confirmed backup file.
type Relocated struct {
	ExportID string
	DestPath string
}

// Sweeper prunes stale backup files and cleans up export records on the
// source system once their artifacts are safely relocated.
type Sweeper struct {
	destDir string
	maxAge  time.Duration
	deleter RecordDeleter
	log     logger.Logger
}

// NewSweeper creates a Sweeper over destDir with a retention age of
// maxAgeDays.
func NewSweeper(destDir string, maxAgeDays int, deleter RecordDeleter, log logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Global()
	}
	return &Sweeper{
		destDir: destDir,
		maxAge:  time.Duration(maxAgeDays) * 24 * time.Hour,
		deleter: deleter,
		log:     log,
	}
}

// SweepDest deletes backup files whose modification time is older than
// the retention age at the given reference time. Deletions are
// best-effort per file; failures are collected and the sweep carries on.
func (s *Sweeper) SweepDest(now time.Time) (int, []error) {
	cutoff := now.Add(-s.maxAge)

	entries, err := os.ReadDir(s.destDir)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("backup directory does not exist, nothing to sweep", "dir", s.destDir)
			return 0, nil
		}
		return 0, []error{fmt.Errorf("read backup directory %q: %w", s.destDir, err)}
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %q: %w", entry.Name(), err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.destDir, entry.Name())
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("remove expired backup %q: %w", path, err))
			s.log.Error("failed to remove expired backup", "file", entry.Name(), "error", err)
			continue
		}
		removed++
		s.log.Info("removed expired backup", "file", entry.Name(),
			"modified", info.ModTime().Format("2006-01-02"))
	}
	return removed, errs
}

// DeleteSourceRecords deletes the export records for relocated
// artifacts. A record is only ever deleted after its backup file stats
// successfully, so the source copy never goes away before the backup is
// confirmed on disk. Failures are per record and do not stop the sweep.
func (s *Sweeper) DeleteSourceRecords(ctx context.Context, items []Relocated) []error {
	var errs []error
	for _, item := range items {
		if _, err := os.Stat(item.DestPath); err != nil {
			errs = append(errs, fmt.Errorf(
				"keeping export record %s: backup %q not confirmed: %w",
				item.ExportID, item.DestPath, err))
			continue
		}
		if err := s.deleter.DeleteExport(ctx, item.ExportID); err != nil {
			errs = append(errs, fmt.Errorf("delete export record %s: %w", item.ExportID, err))
			s.log.Error("failed to delete source export record",
				"export_id", item.ExportID, "error", err)
			continue
		}
		s.log.Info("deleted source export record", "export_id", item.ExportID)
	}
	return errs
}
