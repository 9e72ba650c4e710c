package selfupdate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/state"
)

// FinalizeStatus says what Finalize found.
type FinalizeStatus int

const (
	// FinalizeNothing means there was no pending update.
	FinalizeNothing FinalizeStatus = iota
	// FinalizeDiscarded means the record was unreadable and was deleted.
	FinalizeDiscarded
	// FinalizeStale means the staging directory was gone; the record was
	// deleted.
	FinalizeStale
	// FinalizeApplied means the recorded files were copied.
	FinalizeApplied
)

func (s FinalizeStatus) String() string {
	switch s {
	case FinalizeNothing:
		return "nothing pending"
	case FinalizeDiscarded:
		return "discarded"
	case FinalizeStale:
		return "stale"
	case FinalizeApplied:
		return "applied"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome is what Finalize did.
type Outcome struct {
	Status FinalizeStatus
	Copied []string
	Failed []FileFailure
}

// FinalizerOptions configures a Finalizer.
type FinalizerOptions struct {
	RecordPath string
	InstallDir string
	// StagingDir is removed after the pending files are applied. A record
	// pointing outside it is treated as corrupt.
	StagingDir string

	Out      io.Writer
	Logger   log.Logger
	ErrorLog string
}

// Finalizer completes an update left pending by Stager.
type Finalizer struct {
	record     *state.File
	installDir string
	stagingDir string
	out        io.Writer
	logger     log.Logger
	errLogPath string
}

// NewFinalizer returns a Finalizer.
func NewFinalizer(opts FinalizerOptions) *Finalizer {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Finalizer{
		record:     state.NewFile(opts.RecordPath),
		installDir: opts.InstallDir,
		stagingDir: opts.StagingDir,
		out:        out,
		logger:     log.OrDefault(opts.Logger).With("component", "finalizer"),
		errLogPath: opts.ErrorLog,
	}
}

// Finalize applies a pending update, if any. Running it again afterwards
// is a no-op. Files that cannot be copied are reported and dropped; the
// record and staging directory are removed either way.
func (f *Finalizer) Finalize(ctx context.Context) (Outcome, error) {
	if !f.record.Exists() {
		return Outcome{Status: FinalizeNothing}, nil
	}

	errLog := &errorLog{path: f.errLogPath}
	defer errLog.Close()

	var out Outcome
	err := f.record.Locked(ctx, func() error {
		if !f.record.Exists() {
			return nil
		}
		rec, err := loadRecord(f.record, f.logger)
		if err != nil {
			return err
		}
		if rec == nil {
			errLog.Error("discarded corrupt pending update record", "path", f.record.Path())
			out.Status = FinalizeDiscarded
			return nil
		}

		if f.stagingDir != "" && !within(rec.StagingDir, f.stagingDir) {
			f.logger.Warn("pending update points outside the staging area", "staging_dir", rec.StagingDir)
			errLog.Error("discarded pending update outside staging area", "staging_dir", rec.StagingDir)
			out.Status = FinalizeDiscarded
			return f.record.Remove()
		}

		if info, err := os.Stat(rec.StagingDir); err != nil || !info.IsDir() {
			f.logger.Warn("discarding stale pending update", "staging_dir", rec.StagingDir)
			out.Status = FinalizeStale
			return f.record.Remove()
		}

		out.Status = FinalizeApplied
		for _, name := range rec.Files {
			src := filepath.Join(rec.StagingDir, filepath.FromSlash(name))
			dst := filepath.Join(f.installDir, filepath.FromSlash(name))
			if err := copyFile(src, dst); err != nil {
				f.logger.Warn("failed to finish updating file", "path", name, "error", err)
				errLog.Error("failed to finish updating file", "path", name, "error", err.Error())
				out.Failed = append(out.Failed, FileFailure{Path: name, Err: err})
				continue
			}
			out.Copied = append(out.Copied, name)
		}

		staging := f.stagingDir
		if staging == "" {
			staging = filepath.Dir(rec.StagingDir)
		}
		if err := os.RemoveAll(staging); err != nil {
			f.logger.Warn("failed to remove staging directory", "path", staging, "error", err)
			errLog.Error("failed to remove staging directory", "path", staging, "error", err.Error())
		}
		return f.record.Remove()
	})
	if err != nil {
		return out, fmt.Errorf("failed to finalize update: %w", err)
	}

	if out.Status == FinalizeApplied {
		fmt.Fprintf(f.out, "Finished applying update (%d files)\n", len(out.Copied))
		for _, fl := range out.Failed {
			fmt.Fprintf(f.out, "  could not update %s: %v\n", fl.Path, fl.Err)
		}
	}
	return out, nil
}
