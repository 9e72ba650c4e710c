// Package progress renders transient terminal output: download bars,
// single-line status updates, and spinners. Animated output is only drawn
// when stdout is a terminal.
package progress

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// IsTerminalFunc is the function used to check if a file descriptor is a terminal.
// It can be overridden for testing.
var IsTerminalFunc = term.IsTerminal

// lineWidth is the width cleared when a transient line is redrawn.
const lineWidth = 80

// ShouldShowProgress returns true if progress should be displayed.
// Progress is shown when stdout is a terminal.
func ShouldShowProgress() bool {
	return IsTerminalFunc(int(os.Stdout.Fd()))
}

// fit pads or truncates s to lineWidth runes.
func fit(s string) string {
	n := utf8.RuneCountInString(s)
	if n > lineWidth {
		r := []rune(s)
		return string(r[:lineWidth-3]) + "..."
	}
	return s + strings.Repeat(" ", lineWidth-n)
}

func clearLine() string {
	return "\r" + strings.Repeat(" ", lineWidth) + "\r"
}

// FormatBytes formats a byte count for display, e.g. "1.5MB".
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.1fGB", float64(b)/GB)
	case b >= MB:
		return fmt.Sprintf("%.1fMB", float64(b)/MB)
	case b >= KB:
		return fmt.Sprintf("%.1fKB", float64(b)/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// formatDuration formats seconds into MM:SS or HH:MM:SS format
func formatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
