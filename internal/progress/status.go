package progress

import (
	"fmt"
	"io"
	"sync"
)

// Status is a single status line that is redrawn in place, with permanent
// lines printed above it. Safe for concurrent use.
//
// Without a terminal, transient updates are dropped and only permanent
// lines are written.
type Status struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	showing bool
}

// NewStatus returns a Status writing to out. tty enables in-place redraws.
func NewStatus(out io.Writer, tty bool) *Status {
	return &Status{out: out, tty: tty}
}

// Update replaces the transient line.
func (s *Status) Update(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tty {
		return
	}
	fmt.Fprint(s.out, "\r"+fit(text))
	s.showing = true
}

// Println clears the transient line and prints a permanent one.
func (s *Status) Println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	fmt.Fprintln(s.out, text)
}

// Clear removes the transient line, if any.
func (s *Status) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Status) clearLocked() {
	if s.showing {
		fmt.Fprint(s.out, clearLine())
		s.showing = false
	}
}
