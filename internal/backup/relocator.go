// Package backup moves finished export artifacts into the retention
// managed backup directory and prunes stale data on both sides.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/haotianfei/frigate-exports-backup/internal/logger"
	"github.com/haotianfei/frigate-exports-backup/internal/orchestrator"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

// ErrConflict indicates the destination already holds a file of the same
// name with different content.
var ErrConflict = errors.New("destination conflict")

// DestName returns the deterministic backup filename for a camera and
// window. The name encodes the job's full identity, so reruns of the
// same job always map to the same destination.
func DestName(camera string, w timeplan.Window) string {
	return fmt.Sprintf("%s_%s.mp4", camera, w.Slug())
}

// Result describes the outcome of one relocation.
type Result struct {
	Camera    string `json:"camera"`
	DestPath  string `json:"dest_path"`
	SizeBytes int64  `json:"size_bytes"`
	// Skipped is set when the destination already held this artifact.
	Skipped bool `json:"skipped,omitempty"`
}

// Relocator moves completed export artifacts into the backup directory.
type Relocator struct {
	destDir  string
	compress bool
	log      logger.Logger
}

// NewRelocator creates a Relocator writing into destDir, optionally
// compressing relocated files with zstd.
func NewRelocator(destDir string, compress bool, log logger.Logger) *Relocator {
	if log == nil {
		log = logger.Global()
	}
	return &Relocator{destDir: destDir, compress: compress, log: log}
}

// Relocate moves one artifact into the backup directory. The move is
// atomic with respect to the final name: either the complete file is
// there or nothing is. Calling it again for the same artifact skips the
// copy and reports the existing backup; a same-named destination with a
// different size is a conflict.
func (r *Relocator) Relocate(artifact orchestrator.Artifact) (Result, error) {
	if err := EnsureDirectoryExist(r.destDir); err != nil {
		return Result{}, err
	}

	dest := filepath.Join(r.destDir, DestName(artifact.Camera, artifact.Window))

	srcInfo, err := os.Stat(artifact.Path)
	if err != nil {
		// Source gone but destination present: an earlier run already
		// moved it.
		if existing, ok := r.existing(dest); ok {
			return existing, nil
		}
		return Result{}, fmt.Errorf("stat artifact %q: %w", artifact.Path, err)
	}

	if info, err := os.Stat(dest); err == nil {
		if info.Size() != srcInfo.Size() {
			return Result{}, fmt.Errorf("%w: %s holds %d bytes, artifact has %d",
				ErrConflict, dest, info.Size(), srcInfo.Size())
		}
		return Result{Camera: artifact.Camera, DestPath: dest, SizeBytes: info.Size(), Skipped: true}, nil
	}
	// A compressed form of the same name also counts as already backed up.
	if info, err := os.Stat(dest + ".zst"); err == nil {
		return Result{Camera: artifact.Camera, DestPath: dest + ".zst", SizeBytes: info.Size(), Skipped: true}, nil
	}

	if err := moveFile(artifact.Path, dest); err != nil {
		return Result{}, fmt.Errorf("relocate %q: %w", artifact.Path, err)
	}

	final := dest
	if r.compress {
		compressed, err := CompressZstd(dest)
		if err != nil {
			r.log.Warn("compression failed, keeping uncompressed backup",
				"file", dest, "error", err)
		} else {
			final = compressed
		}
	}

	size := srcInfo.Size()
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}
	return Result{Camera: artifact.Camera, DestPath: final, SizeBytes: size}, nil
}

func (r *Relocator) existing(dest string) (Result, bool) {
	for _, candidate := range []string{dest, dest + ".zst"} {
		if info, err := os.Stat(candidate); err == nil {
			return Result{DestPath: candidate, SizeBytes: info.Size(), Skipped: true}, true
		}
	}
	return Result{}, false
}

// moveFile renames src onto dst. When the two live on different
// filesystems it copies through a .partial file in the destination
// directory and renames that, so the final name only ever appears via
// rename.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	tmp := dst + ".partial"
	if err := copyFile(src, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
