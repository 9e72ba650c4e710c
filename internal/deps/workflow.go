// Package deps ties the scanner, installer and ledger together: it decides
// what a generated script needs, installs it, and remembers what is still
// missing so a later run can finish the job.
package deps

import (
	"context"
	"fmt"
	"io"

	"github.com/tsukumogami/aigene/internal/installer"
	"github.com/tsukumogami/aigene/internal/ledger"
	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/scanner"
)

// Installer installs requirements. *installer.Installer implements it.
type Installer interface {
	Install(ctx context.Context, reqs []scanner.Requirement) (*installer.Report, error)
}

// Options configures a Workflow.
type Options struct {
	// Probe decides which requirements are missing when installing is
	// deferred for system dependencies. Required.
	Probe installer.Probe

	// Out receives operator-facing output. Nil discards it.
	Out io.Writer

	Logger log.Logger
}

// Workflow runs scan, install and record for generated scripts.
type Workflow struct {
	scanner   *scanner.Scanner
	installer Installer
	ledger    *ledger.Ledger
	probe     installer.Probe
	out       io.Writer
	logger    log.Logger
}

// New returns a Workflow.
func New(in Installer, l *ledger.Ledger, opts Options) *Workflow {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := log.OrDefault(opts.Logger)
	return &Workflow{
		scanner:   scanner.New(logger),
		installer: in,
		ledger:    l,
		probe:     opts.Probe,
		out:       out,
		logger:    logger,
	}
}

// Outcome is the result of Prepare.
type Outcome struct {
	// Requirements is everything the script needs.
	Requirements []scanner.Requirement

	// ParseErr is set when the import scan stopped early.
	ParseErr error

	// NeedsSystemDeps is set when the script declared native
	// dependencies; nothing was installed.
	NeedsSystemDeps bool

	// Report is nil when no install ran.
	Report *installer.Report

	// Pending is what was written to the ledger.
	Pending []scanner.Requirement
}

// Ready reports whether the script can be run now.
func (o *Outcome) Ready() bool {
	return !o.NeedsSystemDeps && len(o.Pending) == 0
}

// Scan resolves the requirements of code without installing anything.
func (w *Workflow) Scan(code string) scanner.Result {
	return w.scanner.Scan(code)
}

// Prepare makes sure the requirements of code are installed.
//
// If code declares that it needs system dependencies, the install is
// deferred: the guidance is printed and the missing requirements are
// recorded for a later launch. Otherwise every requirement is installed
// and the ones that fail are recorded against artifact. The returned error
// is non-nil only when the environment could not be set up or ctx ended.
func (w *Workflow) Prepare(ctx context.Context, artifact, code string) (*Outcome, error) {
	res := w.scanner.Scan(code)
	out := &Outcome{Requirements: res.Requirements, ParseErr: res.ParseErr}

	for _, line := range installer.SystemDepsGuide(res.Requirements) {
		fmt.Fprintln(w.out, line)
	}

	if scanner.NeedsSystemDeps(code) {
		out.NeedsSystemDeps = true
		fmt.Fprintln(w.out, "This script needs system dependencies besides its Python packages.")
		fmt.Fprintln(w.out, "  1. Install the system dependencies named in the script's comments")
		fmt.Fprintln(w.out, "  2. Close this terminal")
		fmt.Fprintln(w.out, "  3. Start aigene again; the Python packages will be installed then")

		out.Pending = w.missing(ctx, res.Requirements)
		if len(out.Pending) == 0 {
			w.clearIfFor(ctx, artifact)
			return out, nil
		}
		if err := w.ledger.Save(context.WithoutCancel(ctx), artifact, out.Pending); err != nil {
			return out, fmt.Errorf("failed to record pending dependencies: %w", err)
		}
		return out, nil
	}

	if len(res.Requirements) == 0 {
		return out, nil
	}

	fmt.Fprintln(w.out, "Checking dependencies...")
	report, err := w.installer.Install(ctx, res.Requirements)
	out.Report = report
	if err != nil && !report.Attempted() {
		// Nothing was tried, so everything not already present is pending.
		out.Pending = w.missing(ctx, res.Requirements)
		w.record(ctx, artifact, out.Pending)
		return out, err
	}
	if report != nil && !report.OK() {
		out.Pending = report.FailedRequirements()
		report.WriteSummary(w.out)
		w.record(ctx, artifact, out.Pending)
	}
	if err != nil {
		return out, err
	}

	if report.OK() {
		w.clearIfFor(ctx, artifact)
	}
	return out, nil
}

// record saves pending against artifact. Interrupts do not stop the write.
func (w *Workflow) record(ctx context.Context, artifact string, pending []scanner.Requirement) {
	if len(pending) == 0 {
		return
	}
	if err := w.ledger.Save(context.WithoutCancel(ctx), artifact, pending); err != nil {
		w.logger.Error("could not record pending dependencies", "error", err)
		return
	}
	fmt.Fprintf(w.out, "Recorded %d pending dependencies; run \"aigene deps retry\" to try again.\n", len(pending))
}

// missing returns the requirements the probe reports as not installed.
func (w *Workflow) missing(ctx context.Context, reqs []scanner.Requirement) []scanner.Requirement {
	var out []scanner.Requirement
	for _, r := range reqs {
		if w.probe == nil || !w.probe.Satisfied(ctx, r) {
			out = append(out, r)
		}
	}
	return out
}

// clearIfFor drops the ledger record when it belongs to artifact, which
// has just been fully installed.
func (w *Workflow) clearIfFor(ctx context.Context, artifact string) {
	rec, err := w.ledger.Load(ctx)
	if err != nil || rec == nil || rec.ArtifactPath != artifact {
		return
	}
	if err := w.ledger.Clear(ctx); err != nil {
		w.logger.Warn("could not clear pending dependencies", "error", err)
	}
}

// ResumeResult is the outcome of Resume.
type ResumeResult struct {
	// Record is what was pending before the run.
	Record *ledger.Record

	Report *installer.Report

	// Remaining is what is still pending, or nil when the ledger is clear.
	Remaining *ledger.Record
}

// Done reports whether everything pending was installed.
func (r *ResumeResult) Done() bool {
	return r.Remaining == nil
}

// Resume installs the recorded pending requirements and shrinks the record
// to the ones that still fail. It returns nil, nil when nothing is
// pending.
func (w *Workflow) Resume(ctx context.Context) (*ResumeResult, error) {
	rec, err := w.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending dependencies: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	fmt.Fprintf(w.out, "Installing %d pending dependencies of %s\n", len(rec.Requirements), rec.ArtifactPath)
	result := &ResumeResult{Record: rec, Remaining: rec}

	report, err := w.installer.Install(ctx, rec.Requirements)
	result.Report = report
	if !report.Attempted() {
		// The environment could not be set up; nothing was attempted.
		return result, err
	}

	remaining, serr := w.ledger.Shrink(context.WithoutCancel(ctx), report.FailedRequirements())
	if serr != nil {
		w.logger.Error("could not update pending dependencies", "error", serr)
	} else {
		result.Remaining = remaining
	}
	report.WriteSummary(w.out)
	return result, err
}

// Status returns the pending record, or nil when nothing is pending.
func (w *Workflow) Status(ctx context.Context) (*ledger.Record, error) {
	return w.ledger.Load(ctx)
}

// Clear forgets the pending record.
func (w *Workflow) Clear(ctx context.Context) error {
	return w.ledger.Clear(ctx)
}
