// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tsukumogami/aigene/internal/config"
)

// NewTestConfig returns a Config rooted in a fresh temporary home, with
// AIGENE_HOME pointing at it for the duration of the test.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)

	cfg := config.New(home)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to create test home: %v", err)
	}
	return cfg
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
