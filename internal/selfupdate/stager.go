package selfupdate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/state"
)

// Phase is a step of staging.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDownloading
	PhaseExtracting
	PhaseCopying
	PhaseRecorded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDownloading:
		return "downloading"
	case PhaseExtracting:
		return "extracting"
	case PhaseCopying:
		return "copying"
	case PhaseRecorded:
		return "recorded"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

const (
	downloadBase = "update.download"
	extractedDir = "extracted"
)

// StagerOptions configures a Stager.
type StagerOptions struct {
	DownloadURL string

	// SignatureURL defaults to DownloadURL + ".sig". Only fetched when
	// Verifier is set.
	SignatureURL string
	Verifier     *Verifier

	// Checksum is the expected hex SHA-256 of the bundle. When empty the
	// server's X-Checksum-Sha256 header is used, if present.
	Checksum string

	// InstallDir receives the bundle's files.
	InstallDir string
	// StagingDir holds the download and extraction. It is removed when
	// staging ends unless a pending record hands it to the finalizer.
	StagingDir string
	RecordPath string

	// Protected are absolute paths that must not be replaced while this
	// process runs. The running executable is always protected.
	Protected []string

	Client *http.Client
	Out    io.Writer
	TTY    bool
	Logger log.Logger

	// ErrorLog, when set, is appended with every failure.
	ErrorLog string

	// Backoff are the waits between download attempts. Nil means
	// DefaultBackoff.
	Backoff []time.Duration
}

// Result is what staging did.
type Result struct {
	Copied []string
	// Skipped are protected files left for the finalizer.
	Skipped []string
	// Failed could not be copied. They are not retried.
	Failed        []FileFailure
	RecordWritten bool
}

// Err returns nil when every file was handled, otherwise a
// *PartialUpdateError.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialUpdateError{Failed: r.Failed}
}

// PartialUpdateError lists files that could not be replaced.
type PartialUpdateError struct {
	Failed []FileFailure
}

func (e *PartialUpdateError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		parts[i] = f.String()
	}
	return "failed to update: " + strings.Join(parts, "; ")
}

// PartialFailure marks the error for errmsg classification.
func (e *PartialUpdateError) PartialFailure() bool { return true }

// Stager downloads, unpacks and copies an update bundle.
type Stager struct {
	opts      StagerOptions
	record    *state.File
	protected map[string]bool
	dl        *downloader
	logger    log.Logger
	errLog    *errorLog
	phase     Phase
}

// NewStager validates opts and returns a Stager.
func NewStager(opts StagerOptions) (*Stager, error) {
	switch {
	case opts.DownloadURL == "":
		return nil, fmt.Errorf("no download URL configured")
	case opts.InstallDir == "":
		return nil, fmt.Errorf("no install directory configured")
	case opts.StagingDir == "":
		return nil, fmt.Errorf("no staging directory configured")
	case opts.RecordPath == "":
		return nil, fmt.Errorf("no pending update record path configured")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	if opts.SignatureURL == "" {
		opts.SignatureURL = opts.DownloadURL + ".sig"
	}
	logger := log.OrDefault(opts.Logger).With("component", "stager")

	protected := make(map[string]bool)
	if exe, err := os.Executable(); err == nil {
		protected[canonicalPath(exe)] = true
	}
	for _, p := range opts.Protected {
		protected[canonicalPath(p)] = true
	}

	return &Stager{
		opts:      opts,
		record:    state.NewFile(opts.RecordPath),
		protected: protected,
		logger:    logger,
		errLog:    &errorLog{path: opts.ErrorLog},
		dl: &downloader{
			client:  opts.Client,
			out:     opts.Out,
			tty:     opts.TTY,
			logger:  logger,
			backoff: opts.Backoff,
			sleep:   sleepCtx,
		},
	}, nil
}

// Phase returns the phase staging reached.
func (s *Stager) Phase() Phase { return s.phase }

func (s *Stager) enter(p Phase) {
	s.logger.Info("staging update", "from", s.phase.String(), "to", p.String())
	s.phase = p
}

func (s *Stager) fail(err error) error {
	s.logger.Error("update staging failed", "phase", s.phase.String(), "error", err)
	s.errLog.Error("update staging failed", "phase", s.phase.String(), "error", err.Error())
	s.enter(PhaseFailed)
	return err
}

// Stage runs the update. The returned error is non-nil when staging
// stopped before copying finished; per-file copy failures are reported in
// Result.Failed instead.
func (s *Stager) Stage(ctx context.Context) (res *Result, err error) {
	res = &Result{}
	defer s.errLog.Close()
	defer s.cleanup(res)

	s.enter(PhaseDownloading)
	if err := os.MkdirAll(s.opts.StagingDir, 0755); err != nil {
		return res, s.fail(fmt.Errorf("failed to create staging directory: %w", err))
	}
	archive, format, err := s.download(ctx)
	if err != nil {
		return res, s.fail(err)
	}

	s.enter(PhaseExtracting)
	root, err := s.extract(archive, format)
	if err != nil {
		return res, s.fail(err)
	}

	s.enter(PhaseCopying)
	if err := s.copyTree(ctx, root, res); err != nil {
		return res, s.fail(err)
	}

	if len(res.Skipped) > 0 {
		rec := &PendingUpdate{Files: res.Skipped, StagingDir: root, CreatedAt: time.Now().UTC().Truncate(time.Second)}
		err := s.record.Locked(ctx, func() error { return s.record.WriteJSON(rec) })
		if err != nil {
			return res, s.fail(fmt.Errorf("failed to write pending update record: %w", err))
		}
		res.RecordWritten = true
	}
	if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove downloaded bundle", "path", archive, "error", err)
	}
	s.enter(PhaseRecorded)

	for _, f := range res.Failed {
		s.errLog.Error("file not updated", "path", f.Path, "error", f.Err.Error())
	}
	return res, nil
}

// cleanup removes the staging directory unless the finalizer owns it now.
func (s *Stager) cleanup(res *Result) {
	if res.RecordWritten {
		return
	}
	if err := os.RemoveAll(s.opts.StagingDir); err != nil {
		s.logger.Warn("failed to clean staging directory", "path", s.opts.StagingDir, "error", err)
	}
}

// download fetches and verifies the bundle. It returns the bundle's path,
// named after its detected format, and the format.
func (s *Stager) download(ctx context.Context) (string, string, error) {
	tmp := filepath.Join(s.opts.StagingDir, downloadBase)
	sum, announced, err := s.dl.fetch(ctx, s.opts.DownloadURL, tmp)
	if err != nil {
		return "", "", err
	}

	want := strings.ToLower(strings.TrimSpace(s.opts.Checksum))
	if want == "" {
		want = announced
	}
	if want != "" && want != sum {
		return "", "", errmsg.Wrap(errmsg.Corruption, fmt.Errorf("bundle checksum mismatch: expected %s, got %s", want, sum))
	}

	if s.opts.Verifier != nil {
		sig, err := fetchSignature(ctx, s.opts.Client, s.opts.SignatureURL)
		if err != nil {
			return "", "", err
		}
		if err := s.opts.Verifier.VerifyFile(tmp, sig); err != nil {
			return "", "", errmsg.Wrap(errmsg.Corruption, err)
		}
		s.logger.Debug("bundle signature verified", "fingerprint", s.opts.Verifier.Fingerprint())
	}

	format, err := DetectFormat(tmp)
	if err != nil {
		return "", "", errmsg.Wrap(errmsg.Corruption, err)
	}
	archive := filepath.Join(s.opts.StagingDir, "update."+format)
	if err := os.Rename(tmp, archive); err != nil {
		return "", "", fmt.Errorf("failed to rename bundle: %w", err)
	}
	return archive, format, nil
}

func (s *Stager) extract(archive, format string) (string, error) {
	dest := filepath.Join(s.opts.StagingDir, extractedDir)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to clear stale extraction directory: %w", err)
	}
	fmt.Fprintln(s.opts.Out, "Extracting update...")
	if err := Extract(archive, dest, format); err != nil {
		return "", errmsg.Wrap(errmsg.Corruption, err)
	}
	root, err := bundleRoot(dest)
	if err != nil {
		return "", err
	}
	return filepath.Abs(root)
}

// copyTree copies every file under root into the install directory,
// leaving protected destinations to the finalizer.
func (s *Stager) copyTree(ctx context.Context, root string, res *Result) error {
	fmt.Fprintln(s.opts.Out, "Updating files...")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		dst := filepath.Join(s.opts.InstallDir, rel)

		if s.protected[canonicalPath(dst)] {
			s.logger.Info("deferring in-use file", "path", relSlash)
			res.Skipped = append(res.Skipped, relSlash)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := copyFile(path, dst); err != nil {
			s.logger.Warn("failed to update file", "path", relSlash, "error", err)
			fmt.Fprintf(s.opts.Out, "  could not update %s: %v\n", relSlash, err)
			res.Failed = append(res.Failed, FileFailure{Path: relSlash, Err: err})
			return nil
		}
		res.Copied = append(res.Copied, relSlash)
		return nil
	})
	sort.Strings(res.Skipped)
	return err
}
