// Package ledger persists the dependency installs still outstanding for a
// generated script, so a later launch or "aigene deps retry" can finish them.
//
// The ledger holds a single record at a fixed path. Saving a record for a
// different script replaces the previous one; the replacement is logged.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/scanner"
	"github.com/tsukumogami/aigene/internal/state"
)

// Record is one pending install.
type Record struct {
	ArtifactPath string
	Requirements []scanner.Requirement
	CreatedAt    time.Time
}

type recordFile struct {
	ArtifactPath string    `json:"artifact_path"`
	Requirements []string  `json:"requirements"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ledger reads and writes the pending install record.
type Ledger struct {
	file   *state.File
	logger log.Logger
	now    func() time.Time
}

// New returns a Ledger backed by path.
func New(path string, logger log.Logger) *Ledger {
	return &Ledger{
		file:   state.NewFile(path),
		logger: log.OrDefault(logger),
		now:    time.Now,
	}
}

// Path returns the record location.
func (l *Ledger) Path() string {
	return l.file.Path()
}

// Save replaces the record. Saving an empty requirement list clears it.
func (l *Ledger) Save(ctx context.Context, artifactPath string, reqs []scanner.Requirement) error {
	if len(reqs) == 0 {
		return l.Clear(ctx)
	}
	return l.file.Locked(ctx, func() error {
		if prev := l.loadLocked(); prev != nil && prev.ArtifactPath != artifactPath {
			l.logger.Warn("replacing pending dependencies of another script",
				"previous", prev.ArtifactPath, "requirements", len(prev.Requirements))
		}
		return l.writeLocked(&Record{
			ArtifactPath: artifactPath,
			Requirements: reqs,
			CreatedAt:    l.now().UTC().Truncate(time.Second),
		})
	})
}

// Load returns the record, or nil if there is none. A record that is empty
// or malformed is deleted and reported as absent.
func (l *Ledger) Load(ctx context.Context) (*Record, error) {
	var rec *Record
	err := l.file.Locked(ctx, func() error {
		rec = l.loadLocked()
		return nil
	})
	return rec, err
}

// Clear deletes the record. It is a no-op when there is none.
func (l *Ledger) Clear(ctx context.Context) error {
	return l.file.Locked(ctx, l.file.Remove)
}

// Shrink keeps only the recorded requirements named in stillMissing, in
// their recorded order. When nothing remains the record is cleared and nil
// is returned.
func (l *Ledger) Shrink(ctx context.Context, stillMissing []scanner.Requirement) (*Record, error) {
	missing := make(map[string]bool, len(stillMissing))
	for _, r := range stillMissing {
		missing[r.Name] = true
	}

	var out *Record
	err := l.file.Locked(ctx, func() error {
		rec := l.loadLocked()
		if rec == nil {
			return nil
		}

		var kept []scanner.Requirement
		for _, r := range rec.Requirements {
			if missing[r.Name] {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			return l.file.Remove()
		}

		rec.Requirements = kept
		if err := l.writeLocked(rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (l *Ledger) writeLocked(rec *Record) error {
	return l.file.WriteJSON(recordFile{
		ArtifactPath: rec.ArtifactPath,
		Requirements: scanner.Strings(rec.Requirements),
		CreatedAt:    rec.CreatedAt,
	})
}

// loadLocked returns the record, discarding it if it does not decode.
func (l *Ledger) loadLocked() *Record {
	data, err := l.file.ReadRaw()
	if err != nil {
		l.logger.Warn("could not read pending dependencies", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}

	rec, reason := decode(data)
	if rec != nil {
		return rec
	}
	l.logger.Warn("discarding corrupt pending dependencies record", "path", l.file.Path(), "reason", reason)
	if err := l.file.Remove(); err != nil {
		l.logger.Warn("could not remove corrupt record", "error", err)
	}
	return nil
}

func decode(data []byte) (*Record, string) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, "empty file"
	}

	var f recordFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Sprintf("invalid JSON: %v", err)
	}
	if f.ArtifactPath == "" {
		return nil, "missing artifact_path"
	}
	if len(f.Requirements) == 0 {
		return nil, "no requirements"
	}

	reqs := make([]scanner.Requirement, 0, len(f.Requirements))
	for _, s := range f.Requirements {
		r, err := scanner.ParseRequirement(s)
		if err != nil {
			return nil, err.Error()
		}
		reqs = append(reqs, r)
	}
	return &Record{ArtifactPath: f.ArtifactPath, Requirements: reqs, CreatedAt: f.CreatedAt}, ""
}
