// Package workspace stores generated scripts in the code library
// directory and runs them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tsukumogami/aigene/internal/extract"
	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/proc"
)

// Workspace is the directory generated scripts are saved in.
type Workspace struct {
	dir    string
	logger log.Logger
	now    func() time.Time
}

// New returns a Workspace rooted at dir. The directory is created on the
// first Save.
func New(dir string, logger log.Logger) *Workspace {
	return &Workspace{dir: dir, logger: log.OrDefault(logger), now: time.Now}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Save writes code to <dir>/<name>.py and returns the absolute path.
//
// name is sanitised first. An empty name, or one the filesystem refuses
// (some Windows setups reject non-ASCII names), falls back to
// generated_YYYYMMDDHHMMSS.py. An existing file of the same name is
// overwritten.
func (w *Workspace) Save(code, name string) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create code directory: %w", err)
	}

	if name = extract.SanitizeFilename(name); name != "" {
		path, err := w.write(name, code)
		if err == nil {
			return path, nil
		}
		w.logger.Warn("could not save under suggested name, using a timestamp", "name", name, "error", err)
	}

	return w.write(w.timestampName(), code)
}

func (w *Workspace) timestampName() string {
	return "generated_" + w.now().Format("20060102150405")
}

func (w *Workspace) write(name, code string) (string, error) {
	path, err := filepath.Abs(filepath.Join(w.dir, name+".py"))
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// List returns the names of the saved .py files, sorted. A missing
// directory yields an empty list.
func (w *Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list code directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".py") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path returns the absolute path of a listed file.
func (w *Workspace) Path(name string) string {
	p := filepath.Join(w.dir, filepath.Base(name))
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Read returns the contents of a listed file.
func (w *Workspace) Read(name string) (string, error) {
	data, err := os.ReadFile(w.Path(name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Streams attaches a script to a terminal.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// StdStreams returns the process's own standard streams.
func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run runs cmd in the foreground with the given streams and returns its
// exit code. cmd normally comes from the Python environment's Command
// with the script path as its argument. A non-zero exit is not an error.
func Run(ctx context.Context, cmd proc.Command, streams Streams) (int, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdin = streams.Stdin
	c.Stdout = streams.Stdout
	c.Stderr = streams.Stderr

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to run %s: %w", filepath.Base(cmd.Path), err)
	}
	return 0, nil
}
