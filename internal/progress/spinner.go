package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// spinnerFrames defines the animation characters for the spinner.
var spinnerFrames = []string{"|", "/", "-", "\\"}

// spinnerInterval is the time between spinner frame updates.
const spinnerInterval = 100 * time.Millisecond

// Spinner shows that a request is in flight, with the elapsed seconds.
// Without a terminal it prints the message once.
type Spinner struct {
	mu      sync.Mutex
	output  io.Writer
	message string
	started time.Time
	done    chan struct{}
	exited  chan struct{}
	stopped bool
	running bool
	isTTY   bool
}

// NewSpinner creates a new spinner that writes to the given output.
// If output is nil, os.Stderr is used.
func NewSpinner(output io.Writer) *Spinner {
	if output == nil {
		output = os.Stderr
	}
	return &Spinner{
		output: output,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		isTTY:  ShouldShowProgress(),
	}
}

// Start shows message and, on a terminal, begins animating.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	s.message = message
	s.started = time.Now()
	s.mu.Unlock()

	if !s.isTTY {
		fmt.Fprintf(s.output, "%s\n", message)
		return
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go s.animate()
}

// SetMessage updates the spinner message while it's running.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop halts the spinner and clears its line.
func (s *Spinner) Stop() {
	s.stop("")
}

// StopWithMessage halts the spinner and prints a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.stop(message)
}

func (s *Spinner) stop(final string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	running := s.running
	s.mu.Unlock()

	close(s.done)
	if running {
		<-s.exited
	}

	if s.isTTY {
		fmt.Fprint(s.output, clearLine())
	}
	if final != "" {
		fmt.Fprintf(s.output, "%s\n", final)
	}
}

func (s *Spinner) animate() {
	defer close(s.exited)

	frame := 0
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			secs := int(time.Since(s.started).Seconds())
			s.mu.Unlock()

			char := spinnerFrames[frame%len(spinnerFrames)]
			fmt.Fprint(s.output, "\r"+fit(fmt.Sprintf("%s %s %ds", char, msg, secs)))
			frame++
		}
	}
}
