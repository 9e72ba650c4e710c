package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Writer passes bytes through to an underlying writer and draws a
// download bar on output.
type Writer struct {
	writer io.Writer
	output io.Writer
	label  string
	total  int64

	mu        sync.Mutex
	written   int64
	startTime time.Time
	lastPrint time.Time
	now       func() time.Time
}

// NewWriter returns a Writer for a transfer of total bytes. A total of zero
// or less shows only the byte count and speed.
func NewWriter(w io.Writer, total int64, output io.Writer) *Writer {
	return NewLabeledWriter(w, total, output, "")
}

// NewLabeledWriter is NewWriter with a label drawn before the bar.
func NewLabeledWriter(w io.Writer, total int64, output io.Writer, label string) *Writer {
	pw := &Writer{
		writer: w,
		output: output,
		label:  label,
		total:  total,
		now:    time.Now,
	}
	pw.startTime = pw.now()
	return pw
}

// Write implements io.Writer.
func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if n > 0 {
		pw.mu.Lock()
		pw.written += int64(n)
		pw.draw(false)
		pw.mu.Unlock()
	}
	return n, err
}

// Written returns the number of bytes passed through so far.
func (pw *Writer) Written() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.written
}

// Finish clears the bar.
func (pw *Writer) Finish() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	fmt.Fprint(pw.output, clearLine())
}

// draw redraws the bar at most ten times per second unless forced.
func (pw *Writer) draw(force bool) {
	now := pw.now()
	if !force && now.Sub(pw.lastPrint) < 100*time.Millisecond {
		return
	}
	elapsed := now.Sub(pw.startTime).Seconds()
	if !force && elapsed < 0.1 {
		return
	}
	pw.lastPrint = now

	speed := 0.0
	if elapsed > 0 {
		speed = float64(pw.written) / elapsed
	}

	var sb strings.Builder
	sb.WriteString("   ")
	if pw.label != "" {
		sb.WriteString(pw.label)
		sb.WriteString(" ")
	}

	if pw.total > 0 {
		percent := float64(pw.written) / float64(pw.total) * 100
		if percent > 100 {
			percent = 100
		}

		eta := "--:--"
		if speed > 0 {
			eta = formatDuration(float64(pw.total-pw.written) / speed)
		}

		const barWidth = 24
		filled := int(percent / 100 * barWidth)
		bar := strings.Repeat("=", filled)
		if filled < barWidth {
			bar += ">" + strings.Repeat(" ", barWidth-filled-1)
		}

		fmt.Fprintf(&sb, "[%s] %3.0f%% (%s/%s) %s/s ETA: %s",
			bar, percent, FormatBytes(pw.written), FormatBytes(pw.total), FormatBytes(int64(speed)), eta)
	} else {
		fmt.Fprintf(&sb, "%s (%s/s)", FormatBytes(pw.written), FormatBytes(int64(speed)))
	}

	fmt.Fprint(pw.output, "\r"+fit(sb.String()))
}
