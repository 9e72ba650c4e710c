// Package installer installs Python requirements into the private
// environment with pip.
//
// Each requirement is tried against an ordered list of package index
// mirrors. Every attempt runs under its own timeout; a timed-out pip is
// killed and the next mirror is tried. An attempt only counts as a success
// when pip exits 0 and prints a success marker, since pip can exit 0 while
// reporting a conflict.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/proc"
	"github.com/tsukumogami/aigene/internal/progress"
	"github.com/tsukumogami/aigene/internal/scanner"
)

// Env is the Python environment packages are installed into.
type Env interface {
	// Ensure creates the environment on first use.
	Ensure(ctx context.Context) (string, error)
	// Command builds an interpreter invocation inside the environment.
	Command(args ...string) proc.Command
}

// Options configures an Installer.
type Options struct {
	// Mirrors are package index URLs, tried in order.
	Mirrors []string

	// Timeout bounds a single pip run against one mirror.
	Timeout time.Duration

	// Probe overrides the installed-check. Nil uses PipProbe.
	Probe Probe

	// Out receives operator-facing output. Nil discards it.
	Out io.Writer

	// TTY enables in-place download progress.
	TTY bool

	Logger log.Logger
}

// Installer installs requirements one at a time, in the order given.
type Installer struct {
	env     Env
	runner  proc.Runner
	probe   Probe
	mirrors []string
	timeout time.Duration
	out     io.Writer
	status  *progress.Status
	logger  log.Logger
}

// New returns an Installer.
func New(env Env, runner proc.Runner, opts Options) *Installer {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	probe := opts.Probe
	if probe == nil {
		probe = NewPipProbe(env, runner)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	mirrors := opts.Mirrors
	if len(mirrors) == 0 {
		mirrors = []string{""}
	}
	return &Installer{
		env:     env,
		runner:  runner,
		probe:   probe,
		mirrors: mirrors,
		timeout: timeout,
		out:     out,
		status:  progress.NewStatus(out, opts.TTY),
		logger:  log.OrDefault(opts.Logger),
	}
}

// Install installs every requirement not already satisfied.
//
// The returned error is non-nil only when the environment cannot be set up
// or ctx ends; failed packages are reported in Report.Failed. When ctx
// ends, the requirements not yet installed are reported as interrupted so
// the caller can record them.
func (in *Installer) Install(ctx context.Context, reqs []scanner.Requirement) (*Report, error) {
	report := &Report{}
	if len(reqs) == 0 {
		return report, nil
	}
	if _, err := in.env.Ensure(ctx); err != nil {
		return report, err
	}

	var pending []scanner.Requirement
	for _, req := range reqs {
		if in.probe.Satisfied(ctx, req) {
			fmt.Fprintf(in.out, "✓ %s is already installed\n", req)
			report.Satisfied = append(report.Satisfied, req)
			continue
		}
		pending = append(pending, req)
	}

	shown := make(map[string]bool)
	for i, req := range pending {
		if err := ctx.Err(); err != nil {
			in.interrupt(report, pending[i:])
			return report, err
		}

		fmt.Fprintf(in.out, "Installing %s (%d/%d)\n", req, i+1, len(pending))

		rule, special := RuleFor(req.Name)
		if special && len(rule.Prerequisites) > 0 {
			in.installPrerequisites(ctx, req, rule)
		}

		f := in.installOne(ctx, req, false)
		if f == nil {
			fmt.Fprintf(in.out, "✓ %s\n", req)
			report.Succeeded = append(report.Succeeded, req)
			continue
		}
		if f.Reason == ReasonInterrupted {
			in.interrupt(report, pending[i:])
			return report, ctx.Err()
		}

		fmt.Fprintf(in.out, "✗ %s: %s\n", req, f.Reason)
		report.Failed = append(report.Failed, *f)
		if special && rule.Remediation != "" && !shown[req.Name] {
			fmt.Fprintln(in.out, rule.Remediation)
			shown[req.Name] = true
		}
	}
	return report, nil
}

func (in *Installer) interrupt(report *Report, rest []scanner.Requirement) {
	for _, req := range rest {
		report.Failed = append(report.Failed, Failure{Requirement: req, Reason: ReasonInterrupted})
	}
}

// installPrerequisites installs a special package's missing prerequisites.
// Failures are reported but do not stop the main install.
func (in *Installer) installPrerequisites(ctx context.Context, req scanner.Requirement, rule SpecialRule) {
	fmt.Fprintf(in.out, "Installing prerequisites of %s\n", req.Name)
	for _, dep := range rule.prerequisites() {
		if ctx.Err() != nil {
			return
		}
		if in.probe.Satisfied(ctx, dep) {
			continue
		}
		if f := in.installOne(ctx, dep, true); f != nil {
			fmt.Fprintf(in.out, "  prerequisite %s failed: %s\n", dep, f.Reason)
			in.logger.Warn("prerequisite install failed", "package", req.Name, "prerequisite", dep.String(), "reason", string(f.Reason))
			continue
		}
		fmt.Fprintf(in.out, "  ✓ %s\n", dep)
	}
}

// installOne tries each mirror in turn and returns nil on the first success.
func (in *Installer) installOne(ctx context.Context, req scanner.Requirement, prerequisite bool) *Failure {
	var attempts []string
	var last attemptResult

	for _, mirror := range in.mirrors {
		last = in.attempt(ctx, req, mirror, prerequisite)
		if last.reason == "" {
			return nil
		}
		if last.reason == ReasonInterrupted {
			return &Failure{Requirement: req, Reason: ReasonInterrupted}
		}

		label := mirror
		if label == "" {
			label = "default index"
		}
		attempts = append(attempts, fmt.Sprintf("%s: %s", label, last.reason))
		if last.reason == ReasonTimeout {
			fmt.Fprintf(in.out, "  timed out after %s on %s\n", in.timeout, label)
		}
		in.logger.Debug("mirror attempt failed", "package", req.String(), "mirror", label, "reason", string(last.reason))
	}

	detail := strings.Join(attempts, "; ")
	if len(last.errLines) > 0 {
		detail += "\n" + strings.Join(last.errLines, "\n")
	}
	return &Failure{Requirement: req, Reason: last.reason, Detail: detail}
}

type attemptResult struct {
	reason   Reason // empty on success
	errLines []string
}

const maxErrLines = 5

// attempt runs one pip install against one mirror.
func (in *Installer) attempt(ctx context.Context, req scanner.Requirement, mirror string, prerequisite bool) attemptResult {
	actx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	args := []string{"-m", "pip", "install", req.String(), "--prefer-binary", "--disable-pip-version-check"}
	if prerequisite {
		args = append(args, "--no-cache-dir")
	}
	if mirror != "" {
		args = append(args, "-i", mirror)
	}

	var (
		mu        sync.Mutex
		sawMarker bool
		errLines  []string
	)
	code, err := in.runner.Run(actx, in.env.Command(args...), func(stream proc.Stream, line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		class := classify(line)

		mu.Lock()
		if class.isSuccessMarker() {
			sawMarker = true
		}
		if class == lineError || (stream == proc.Stderr && class == lineOther) {
			errLines = append(errLines, line)
			if len(errLines) > maxErrLines {
				errLines = errLines[1:]
			}
		}
		mu.Unlock()

		switch class {
		case lineProgress:
			in.status.Update("  " + line)
		case lineOther:
		default:
			in.status.Println("  " + line)
		}
	})
	in.status.Clear()

	mu.Lock()
	defer mu.Unlock()
	res := attemptResult{errLines: errLines}

	switch {
	case err != nil && ctx.Err() != nil:
		res.reason = ReasonInterrupted
	case err != nil && errors.Is(actx.Err(), context.DeadlineExceeded):
		res.reason = ReasonTimeout
	case err != nil:
		res.reason = ReasonSpawn
		res.errLines = append(res.errLines, err.Error())
	case code != 0:
		res.reason = exitReason(code)
	case !sawMarker:
		res.reason = ReasonNoMarker
	}
	return res
}
