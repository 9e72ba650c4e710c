// Package selfupdate keeps the installation current without replacing
// files that are in use.
//
// An update runs in two phases. Stager downloads and unpacks a bundle,
// copies every file it safely can, and records the files it had to skip
// because they belong to the running process. Finalizer runs first thing
// on the next launch and copies the recorded files, then removes the
// staging area. Either phase can be interrupted and the next launch picks
// up where it stopped.
package selfupdate

import (
	"context"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
)

// UpdateInfo is the outcome of a successful check.
type UpdateInfo struct {
	Current       string `json:"current"`
	Latest        string `json:"latest"`
	Available     bool   `json:"available"`
	CanDownload   bool   `json:"can_download"`
	ServerVersion string `json:"server_version,omitempty"`
	Source        string `json:"source"`

	// Release is what the source reported, for staging.
	Release *Release `json:"-"`
}

// Checker compares the installed version marker with a Source.
type Checker struct {
	marker  *VersionMarker
	source  Source
	timeout time.Duration
	logger  log.Logger
}

// NewChecker returns a Checker. A zero timeout means 5s.
func NewChecker(marker *VersionMarker, source Source, timeout time.Duration, logger log.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{marker: marker, source: source, timeout: timeout, logger: log.OrDefault(logger)}
}

// Check asks the source once. It returns false when the answer could not
// be determined, which is not the same as "no update".
//
// The marker is never written here; the caller does that after a
// successful stage.
func (c *Checker) Check(ctx context.Context) (*UpdateInfo, bool) {
	current, err := c.marker.Read()
	if err != nil {
		c.logger.Warn("version marker unreadable, assuming unset", "path", c.marker.Path(), "error", err)
		current = UnsetVersion
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rel, err := c.source.Latest(ctx)
	if err != nil {
		c.logger.Warn("update check failed", "source", c.source.Name(), "error", err)
		return nil, false
	}

	info := &UpdateInfo{
		Current:       current,
		Latest:        rel.Version,
		Available:     current != rel.Version,
		CanDownload:   rel.CanDownload,
		ServerVersion: rel.ServerVersion,
		Source:        c.source.Name(),
		Release:       rel,
	}
	c.logger.Debug("update check complete",
		"current", info.Current, "latest", info.Latest,
		"available", info.Available, "can_download", info.CanDownload)
	return info, true
}
