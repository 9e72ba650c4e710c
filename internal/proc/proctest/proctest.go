// Package proctest provides a scripted proc.Runner for tests.
package proctest

import (
	"context"
	"strings"
	"sync"

	"github.com/tsukumogami/aigene/internal/proc"
)

// Line is one line of scripted output.
type Line struct {
	Stream proc.Stream
	Text   string
}

// Response is what a scripted command produces.
type Response struct {
	Lines []Line
	Code  int
	Err   error

	// Block makes the command wait for ctx to end, as a hung child would.
	Block bool
}

// Out returns stdout lines.
func Out(lines ...string) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{Stream: proc.Stdout, Text: l}
	}
	return out
}

// Handler decides the response for a command.
type Handler func(cmd proc.Command) Response

// Runner records every command and answers with Handler.
type Runner struct {
	Handler Handler

	mu    sync.Mutex
	calls []proc.Command
}

// Run implements proc.Runner.
func (r *Runner) Run(ctx context.Context, cmd proc.Command, onLine proc.LineFunc) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	resp := Response{}
	if r.Handler != nil {
		resp = r.Handler(cmd)
	}
	if resp.Err != nil {
		return -1, resp.Err
	}
	for _, l := range resp.Lines {
		if onLine != nil {
			onLine(l.Stream, l.Text)
		}
	}
	if resp.Block {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return resp.Code, nil
}

// Calls returns the commands run so far.
func (r *Runner) Calls() []proc.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proc.Command(nil), r.calls...)
}

// CallsMatching returns the commands whose arguments contain every word.
func (r *Runner) CallsMatching(words ...string) []proc.Command {
	var out []proc.Command
	for _, c := range r.Calls() {
		if HasArgs(c, words...) {
			out = append(out, c)
		}
	}
	return out
}

// HasArgs reports whether cmd's arguments contain every word.
func HasArgs(cmd proc.Command, words ...string) bool {
	joined := " " + strings.Join(cmd.Args, " ") + " "
	for _, w := range words {
		if !strings.Contains(joined, " "+w+" ") {
			return false
		}
	}
	return true
}
