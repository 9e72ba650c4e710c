// Package state persists small JSON records next to the installation.
//
// Writes are atomic (temp file, fsync, rename) so an interrupted process
// never leaves a truncated record behind. Read-modify-write sequences run
// under an advisory lock on "<record>.lock".
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsukumogami/aigene/internal/filelock"
)

// File is one JSON record on disk.
type File struct {
	path string
}

// NewFile returns a File for path. Nothing is touched on disk.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the record path.
func (f *File) Path() string {
	return f.path
}

func (f *File) lockPath() string {
	return f.path + ".lock"
}

// Locked runs fn while holding the record's advisory lock.
func (f *File) Locked(ctx context.Context, fn func() error) error {
	lock, err := filelock.Acquire(ctx, f.lockPath())
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", filepath.Base(f.path), err)
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

// ReadRaw returns the record bytes, or nil and no error if the record is missing.
func (f *File) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(f.path), err)
	}
	return data, nil
}

// Exists reports whether the record file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// WriteJSON atomically replaces the record with v encoded as indented JSON.
func (f *File) WriteJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(f.path), err)
	}
	return f.WriteRaw(append(data, '\n'))
}

// WriteRaw atomically replaces the record with data.
func (f *File) WriteRaw(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set record permissions: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

// Remove deletes the record. A missing record is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(f.path), err)
	}
	return nil
}
