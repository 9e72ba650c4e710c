package selfupdate

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/state"
)

// PendingUpdate lists files the stager could not replace because they
// were in use. The finalizer copies them on the next launch.
type PendingUpdate struct {
	// Files are relative to both StagingDir and the install directory,
	// with forward slashes.
	Files      []string  `json:"files"`
	StagingDir string    `json:"staging_dir"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *PendingUpdate) validate() error {
	if p.StagingDir == "" || !filepath.IsAbs(p.StagingDir) {
		return fmt.Errorf("staging_dir %q is not absolute", p.StagingDir)
	}
	if len(p.Files) == 0 {
		return fmt.Errorf("no files listed")
	}
	for _, f := range p.Files {
		if !safeRelative(f) {
			return fmt.Errorf("file %q is not a relative path inside the install directory", f)
		}
	}
	return nil
}

// safeRelative reports whether rel stays inside its root.
func safeRelative(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, `\`) || filepath.IsAbs(rel) {
		return false
	}
	clean := path.Clean(rel)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

// loadRecord reads the pending update record. A missing record is nil.
// A corrupt one is deleted and reported as nil.
func loadRecord(file *state.File, logger log.Logger) (*PendingUpdate, error) {
	data, err := file.ReadRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending update record: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var rec PendingUpdate
	err = json.Unmarshal(data, &rec)
	if err == nil {
		err = rec.validate()
	}
	if err != nil {
		logger.Warn("discarding corrupt pending update record", "path", file.Path(), "error", err)
		if rmErr := file.Remove(); rmErr != nil {
			return nil, fmt.Errorf("failed to remove corrupt pending update record: %w", rmErr)
		}
		return nil, nil
	}
	return &rec, nil
}
