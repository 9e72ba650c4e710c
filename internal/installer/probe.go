package installer

import (
	"bufio"
	"context"
	"strings"

	"github.com/tsukumogami/aigene/internal/proc"
	"github.com/tsukumogami/aigene/internal/scanner"
)

// Probe decides whether a requirement is already installed.
type Probe interface {
	Satisfied(ctx context.Context, req scanner.Requirement) bool
}

// PipProbe asks "pip show" in the private environment. A special package
// is only satisfied when all its prerequisites are present too.
type PipProbe struct {
	env    Env
	runner proc.Runner
}

// NewPipProbe returns a PipProbe for env.
func NewPipProbe(env Env, runner proc.Runner) *PipProbe {
	return &PipProbe{env: env, runner: runner}
}

// Satisfied implements Probe.
func (p *PipProbe) Satisfied(ctx context.Context, req scanner.Requirement) bool {
	version, ok := p.show(ctx, req.Name)
	if !ok {
		return false
	}
	if req.Pinned() && !strings.EqualFold(version, req.Version) {
		return false
	}
	if rule, ok := RuleFor(req.Name); ok {
		for _, dep := range rule.Prerequisites {
			if _, ok := p.show(ctx, dep); !ok {
				return false
			}
		}
	}
	return true
}

// show returns the installed version of a distribution.
func (p *PipProbe) show(ctx context.Context, name string) (string, bool) {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	code, out, err := proc.Capture(ctx, p.runner, p.env.Command("-m", "pip", "show", "--disable-pip-version-check", name))
	if err != nil || code != 0 {
		return "", false
	}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "Version:"); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", true
}
