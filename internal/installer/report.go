package installer

import (
	"fmt"
	"io"
	"strings"

	"github.com/tsukumogami/aigene/internal/scanner"
)

// Reason says why a requirement failed.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonNoMarker    Reason = "no success marker"
	ReasonSpawn       Reason = "spawn error"
	ReasonInterrupted Reason = "interrupted"
)

func exitReason(code int) Reason {
	return Reason(fmt.Sprintf("exit status %d", code))
}

// Failure is a requirement that no mirror could install.
type Failure struct {
	Requirement scanner.Requirement
	Reason      Reason
	// Detail lists each mirror attempt and the last error lines.
	Detail string
}

// Report is the outcome of Install.
type Report struct {
	// Satisfied were already installed; no install was attempted.
	Satisfied []scanner.Requirement
	Succeeded []scanner.Requirement
	Failed    []Failure
}

// OK reports whether every requirement is installed.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Attempted reports whether any requirement was checked at all. A nil or
// empty report means the environment could not be set up.
func (r *Report) Attempted() bool {
	return r != nil && len(r.Satisfied)+len(r.Succeeded)+len(r.Failed) > 0
}

// FailedRequirements returns the failed requirements, in install order.
func (r *Report) FailedRequirements() []scanner.Requirement {
	out := make([]scanner.Requirement, len(r.Failed))
	for i, f := range r.Failed {
		out[i] = f.Requirement
	}
	return out
}

// Err returns nil when OK, otherwise a *PartialError.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return &PartialError{Report: r}
}

// WriteSummary prints which requirements failed and why.
func (r *Report) WriteSummary(w io.Writer) {
	if r.OK() {
		total := len(r.Satisfied) + len(r.Succeeded)
		if total > 0 {
			fmt.Fprintf(w, "All %d dependencies are installed\n", total)
		}
		return
	}
	fmt.Fprintf(w, "Failed to install %d of %d dependencies:\n",
		len(r.Failed), len(r.Failed)+len(r.Succeeded)+len(r.Satisfied))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  - %s (%s)\n", f.Requirement, f.Reason)
	}
	fmt.Fprintln(w, "If a VPN is enabled, disable it and retry.")
}

// PartialError reports that some requirements failed.
type PartialError struct {
	Report *Report
}

func (e *PartialError) Error() string {
	names := make([]string, len(e.Report.Failed))
	for i, f := range e.Report.Failed {
		names[i] = fmt.Sprintf("%s (%s)", f.Requirement, f.Reason)
	}
	return "failed to install: " + strings.Join(names, ", ")
}

// PartialFailure marks the error for errmsg classification.
func (e *PartialError) PartialFailure() bool { return true }
