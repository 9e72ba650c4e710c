// Package proc runs child processes and streams their output line by line.
package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stream identifies which output channel a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Command describes a child process.
type Command struct {
	Path string
	Args []string
	Env  []string // nil inherits the parent environment
	Dir  string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// LineFunc receives each output line without its terminator. It may be
// called from two goroutines at once.
type LineFunc func(stream Stream, line string)

// Runner starts a command and waits for it.
//
// Run returns the exit code once the process has exited and its output has
// been drained. A non-nil error means the process could not be started or
// was stopped because ctx ended; the exit code is then -1.
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine LineFunc) (int, error)
}

// ExecRunner is the os/exec Runner.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output after the process
	// is killed. Zero uses two seconds.
	WaitDelay time.Duration
}

const maxLine = 1 << 20

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command, onLine LineFunc) (int, error) {
	if onLine == nil {
		onLine = func(Stream, string) {}
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	var g errgroup.Group
	g.Go(func() error { return drain(outR, Stdout, onLine) })
	g.Go(func() error { return drain(errR, Stderr, onLine) })

	if err := cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		_ = g.Wait()
		return -1, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}

	waitErr := cmd.Wait()
	outW.Close()
	errW.Close()
	drainErr := g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("%s: %w", c.Path, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		return exitErr.ExitCode(), nil
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The process exited but a descendant kept the pipes open.
	default:
		return -1, fmt.Errorf("%s: %w", c.Path, waitErr)
	}
	if drainErr != nil {
		return cmd.ProcessState.ExitCode(), fmt.Errorf("reading output of %s: %w", c.Path, drainErr)
	}
	return cmd.ProcessState.ExitCode(), nil
}

func drain(r io.ReadCloser, stream Stream, onLine LineFunc) error {
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	sc.Split(scanLines)
	for sc.Scan() {
		onLine(stream, sc.Text())
	}
	if err := sc.Err(); err != nil {
		// Keep the writer side unblocked.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// scanLines splits on \n, \r\n, and bare \r. Progress bars redraw with \r.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' {
			if i+1 == len(data) && !atEOF {
				// Need one more byte to tell \r\n from \r.
				return 0, nil, nil
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				advance++
			}
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// FilterEnv returns env without the named variables.
func FilterEnv(env []string, names ...string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		drop := false
		for _, name := range names {
			if strings.HasPrefix(kv, name+"=") {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, kv)
		}
	}
	return out
}

// Capture runs cmd through r and returns its combined output.
func Capture(ctx context.Context, r Runner, cmd Command) (int, string, error) {
	var (
		mu  sync.Mutex
		buf strings.Builder
	)
	code, err := r.Run(ctx, cmd, func(_ Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		buf.WriteString(line)
		buf.WriteByte('\n')
	})
	return code, buf.String(), err
}
