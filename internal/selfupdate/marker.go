package selfupdate

import (
	"fmt"
	"strings"

	"github.com/tsukumogami/aigene/internal/state"
)

// UnsetVersion is written on first run, before any update has been applied.
var UnsetVersion = strings.Repeat("0", 40)

// VersionMarker is the opaque installed-version string in version.txt.
// Markers are compared for equality only.
type VersionMarker struct {
	file *state.File
}

// NewVersionMarker returns the marker stored at path.
func NewVersionMarker(path string) *VersionMarker {
	return &VersionMarker{file: state.NewFile(path)}
}

// Path returns the marker file path.
func (m *VersionMarker) Path() string { return m.file.Path() }

// Read returns the trimmed marker, creating it with UnsetVersion when
// missing.
func (m *VersionMarker) Read() (string, error) {
	data, err := m.file.ReadRaw()
	if err != nil {
		return "", fmt.Errorf("failed to read version marker: %w", err)
	}
	if data == nil {
		if err := m.Write(UnsetVersion); err != nil {
			return UnsetVersion, err
		}
		return UnsetVersion, nil
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the marker.
func (m *VersionMarker) Write(version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return fmt.Errorf("refusing to write an empty version marker")
	}
	if err := m.file.WriteRaw([]byte(version)); err != nil {
		return fmt.Errorf("failed to write version marker: %w", err)
	}
	return nil
}
