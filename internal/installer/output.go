package installer

import "strings"

type lineClass int

const (
	lineOther lineClass = iota
	lineSuccess
	lineSatisfied
	lineError
	lineWarning
	lineProgress
)

// classify sorts a line of pip output. Only classified lines are shown.
func classify(line string) lineClass {
	switch {
	case strings.Contains(line, "Successfully installed"):
		return lineSuccess
	case strings.Contains(line, "Requirement already satisfied"):
		return lineSatisfied
	case strings.Contains(line, "ERROR:"):
		return lineError
	case strings.Contains(line, "WARNING:"):
		return lineWarning
	case strings.Contains(line, "%") && strings.Contains(line, "Downloading"),
		strings.HasPrefix(strings.TrimSpace(line), "Downloading "):
		return lineProgress
	}
	return lineOther
}

// isSuccessMarker reports whether the line proves pip finished the install.
func (c lineClass) isSuccessMarker() bool {
	return c == lineSuccess || c == lineSatisfied
}
