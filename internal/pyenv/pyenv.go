// Package pyenv manages the private Python virtual environment that
// generated scripts and their dependencies run in.
package pyenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/proc"
	"github.com/tsukumogami/aigene/internal/progress"
)

var (
	// ErrPythonNotFound means the base interpreter could not be run.
	ErrPythonNotFound = errmsg.Sentinel(errmsg.FatalConfig, "python interpreter not found")

	// ErrUnsupportedPython means the base interpreter is too old.
	ErrUnsupportedPython = errmsg.Sentinel(errmsg.FatalConfig, "unsupported Python version")
)

// MinimumVersion is the oldest base interpreter accepted.
var MinimumVersion = semver.MustParse("3.7.0")

var versionOutput = regexp.MustCompile(`Python\s+(\d+\.\d+(?:\.\d+)?)`)

// Environment is a lazily created virtual environment.
type Environment struct {
	dir    string
	base   []string
	runner proc.Runner
	logger log.Logger
	out    io.Writer
	goos   string

	mu    sync.Mutex
	ready bool
}

// New returns an Environment rooted at dir, created on demand with the
// base interpreter command (e.g. "python3.9" or "py -3.9").
func New(dir, baseCommand string, runner proc.Runner, logger log.Logger, out io.Writer) *Environment {
	if out == nil {
		out = io.Discard
	}
	return &Environment{
		dir:    dir,
		base:   strings.Fields(baseCommand),
		runner: runner,
		logger: log.OrDefault(logger),
		out:    out,
		goos:   runtime.GOOS,
	}
}

// Dir returns the venv directory.
func (e *Environment) Dir() string {
	return e.dir
}

// Python returns the venv interpreter path. It may not exist yet.
func (e *Environment) Python() string {
	return InterpreterPath(e.dir, e.goos)
}

// InterpreterPath returns the interpreter inside a venv for goos.
func InterpreterPath(venvDir, goos string) string {
	if goos == "windows" {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}

// Exists reports whether the venv interpreter is present.
func (e *Environment) Exists() bool {
	_, err := os.Stat(e.Python())
	return err == nil
}

// Env returns the child environment for venv commands. PIP_USER is
// removed because it conflicts with venv installs.
func (e *Environment) Env() []string {
	env := proc.FilterEnv(os.Environ(), "PIP_USER", "PYTHONHOME")
	return append(env, "VIRTUAL_ENV="+e.dir, "PYTHONIOENCODING=utf-8")
}

// Command builds a venv interpreter invocation.
func (e *Environment) Command(args ...string) proc.Command {
	return proc.Command{Path: e.Python(), Args: args, Env: e.Env()}
}

// Ensure creates the venv if needed and returns the interpreter path.
func (e *Environment) Ensure(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready || e.Exists() {
		e.ready = true
		return e.Python(), nil
	}

	v, err := e.BaseVersion(ctx)
	if err != nil {
		return "", err
	}
	e.logger.Info("creating virtual environment", "dir", e.dir, "python", v.String())
	spinner := progress.NewSpinner(e.out)
	spinner.Start(fmt.Sprintf("Creating Python %d.%d virtual environment...", v.Major(), v.Minor()))
	defer spinner.Stop()

	if err := os.MkdirAll(filepath.Dir(e.dir), 0755); err != nil {
		return "", fmt.Errorf("failed to create venv parent: %w", err)
	}
	args := append(append([]string{}, e.base[1:]...), "-m", "venv", e.dir)
	code, out, err := proc.Capture(ctx, e.runner, proc.Command{Path: e.base[0], Args: args})
	if err != nil {
		return "", fmt.Errorf("failed to create venv: %w", err)
	}
	if code != 0 {
		os.RemoveAll(e.dir)
		return "", fmt.Errorf("venv creation failed (exit status %d)\nOutput: %s", code, strings.TrimSpace(out))
	}

	code, out, err = proc.Capture(ctx, e.runner, e.Command("-m", "pip", "install", "--upgrade", "pip", "--disable-pip-version-check"))
	if err != nil || code != 0 {
		e.logger.Warn("pip upgrade failed, continuing with bundled pip", "exit_code", code, "error", err, "output", strings.TrimSpace(out))
	}

	spinner.StopWithMessage("Virtual environment ready")
	e.ready = true
	return e.Python(), nil
}

// BaseVersion runs the base interpreter and checks its version.
func (e *Environment) BaseVersion(ctx context.Context) (*semver.Version, error) {
	if len(e.base) == 0 {
		return nil, fmt.Errorf("%w: no interpreter configured", ErrPythonNotFound)
	}

	args := append(append([]string{}, e.base[1:]...), "--version")
	code, out, err := proc.Capture(ctx, e.runner, proc.Command{Path: e.base[0], Args: args})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrPythonNotFound, strings.Join(e.base, " "), err)
	}
	if code != 0 {
		return nil, fmt.Errorf("%w: %s exited with status %d", ErrPythonNotFound, strings.Join(e.base, " "), code)
	}
	return CheckVersion(out)
}

// CheckVersion parses "Python X.Y.Z" output and enforces MinimumVersion.
func CheckVersion(output string) (*semver.Version, error) {
	m := versionOutput.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("%w: unexpected version output %q", ErrPythonNotFound, strings.TrimSpace(output))
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse version %q: %v", ErrPythonNotFound, m[1], err)
	}
	if v.LessThan(MinimumVersion) {
		return nil, fmt.Errorf("%w: found %s, need %d.%d or newer", ErrUnsupportedPython, v, MinimumVersion.Major(), MinimumVersion.Minor())
	}
	return v, nil
}
