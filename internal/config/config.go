package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvHome overrides the aigene home directory.
	EnvHome = "AIGENE_HOME"

	// EnvInstallTimeout bounds a single pip attempt against one mirror.
	EnvInstallTimeout = "AIGENE_INSTALL_TIMEOUT"

	// EnvCheckTimeout bounds the update version check.
	EnvCheckTimeout = "AIGENE_CHECK_TIMEOUT"

	// EnvDownloadTimeout bounds a single update bundle download attempt.
	EnvDownloadTimeout = "AIGENE_DOWNLOAD_TIMEOUT"

	// EnvAPITimeout bounds a chat completion request.
	EnvAPITimeout = "AIGENE_API_TIMEOUT"

	// EnvUpdateURL overrides the update server base URL.
	EnvUpdateURL = "AIGENE_UPDATE_URL"

	// DefaultInstallTimeout is the per-mirror pip budget (5 minutes).
	DefaultInstallTimeout = 300 * time.Second

	// DefaultCheckTimeout is the version check budget (5 seconds).
	DefaultCheckTimeout = 5 * time.Second

	// DefaultDownloadTimeout is the bundle download budget (10 minutes).
	DefaultDownloadTimeout = 10 * time.Minute

	// DefaultAPITimeout is the chat request budget (60 seconds).
	DefaultAPITimeout = 60 * time.Second

	// DefaultUpdateURL is the update server base URL.
	DefaultUpdateURL = "http://43.242.201.140:5000"
)

// Well-known file and directory names inside the home directory.
const (
	CodeDirName          = "代码工具库"
	VenvDirName          = "venv3.9"
	ConfigFileName       = "config.toml"
	LedgerFileName       = "pending_dependencies.json"
	UpdateRecordFileName = "pending_update.json"
	VersionFileName      = "version.txt"
	StagingDirName       = "temp_update"
	UpdateLogFileName    = "update_error.log"
	DotEnvFileName       = ".env"
)

// GetInstallTimeout returns the per-mirror install timeout from AIGENE_INSTALL_TIMEOUT.
// Accepts duration strings like "90s" or "5m"; clamped to 10s..30m.
func GetInstallTimeout() time.Duration {
	return durationFromEnv(EnvInstallTimeout, DefaultInstallTimeout, 10*time.Second, 30*time.Minute)
}

// GetCheckTimeout returns the version check timeout from AIGENE_CHECK_TIMEOUT.
// Clamped to 1s..1m.
func GetCheckTimeout() time.Duration {
	return durationFromEnv(EnvCheckTimeout, DefaultCheckTimeout, time.Second, time.Minute)
}

// GetDownloadTimeout returns the bundle download timeout from AIGENE_DOWNLOAD_TIMEOUT.
// Clamped to 10s..1h.
func GetDownloadTimeout() time.Duration {
	return durationFromEnv(EnvDownloadTimeout, DefaultDownloadTimeout, 10*time.Second, time.Hour)
}

// GetAPITimeout returns the chat request timeout from AIGENE_API_TIMEOUT.
// Clamped to 1s..10m.
func GetAPITimeout() time.Duration {
	return durationFromEnv(EnvAPITimeout, DefaultAPITimeout, time.Second, 10*time.Minute)
}

// GetUpdateURL returns AIGENE_UPDATE_URL, or fallback when unset.
func GetUpdateURL(fallback string) string {
	if v := os.Getenv(EnvUpdateURL); v != "" {
		return v
	}
	if fallback != "" {
		return fallback
	}
	return DefaultUpdateURL
}

func durationFromEnv(name string, def, lo, hi time.Duration) time.Duration {
	envValue := os.Getenv(name)
	if envValue == "" {
		return def
	}

	d, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n", name, envValue, def)
		return def
	}
	if d < lo {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum %v\n", name, d, lo)
		return lo
	}
	if d > hi {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum %v\n", name, d, hi)
		return hi
	}
	return d
}

// DefaultHomeOverride, when set, replaces the executable directory as the
// default home. Tests and packaging scripts use it.
var DefaultHomeOverride string

// Config holds the paths aigene reads and writes. Every persisted record
// lives directly in HomeDir, next to the installed program.
type Config struct {
	HomeDir          string // installation tree and working directory
	CodeDir          string // saved scripts
	VenvDir          string // private Python environment
	ConfigFile       string // config.toml
	LedgerFile       string // pending dependency installs
	UpdateRecordFile string // pending update finalization
	VersionFile      string // installed version marker
	StagingDir       string // update download and extraction area
	UpdateLogFile    string // JSON log of self-update failures
}

// DefaultConfig resolves the home directory from AIGENE_HOME, then
// DefaultHomeOverride, then the directory of the running executable.
func DefaultConfig() (*Config, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		home = DefaultHomeOverride
	}
	if home == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		home = filepath.Dir(exe)
	}

	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return New(abs), nil
}

// New lays out a Config rooted at home.
func New(home string) *Config {
	return &Config{
		HomeDir:          home,
		CodeDir:          filepath.Join(home, CodeDirName),
		VenvDir:          filepath.Join(home, VenvDirName),
		ConfigFile:       filepath.Join(home, ConfigFileName),
		LedgerFile:       filepath.Join(home, LedgerFileName),
		UpdateRecordFile: filepath.Join(home, UpdateRecordFileName),
		VersionFile:      filepath.Join(home, VersionFileName),
		StagingDir:       filepath.Join(home, StagingDirName),
		UpdateLogFile:    filepath.Join(home, UpdateLogFileName),
	}
}

// EnsureDirectories creates the home and code directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.HomeDir, c.CodeDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadDotEnv loads .env from the home directory and then from each extra
// directory. Variables already present in the environment are kept.
// Missing files are ignored.
func (c *Config) LoadDotEnv(extraDirs ...string) error {
	dirs := append([]string{c.HomeDir}, extraDirs...)
	seen := make(map[string]bool)
	for _, dir := range dirs {
		path := filepath.Join(dir, DotEnvFileName)
		if seen[path] {
			continue
		}
		seen[path] = true

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
