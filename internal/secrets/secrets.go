// Package secrets resolves API keys and tokens.
//
// A secret is read from its environment variables first (including those
// loaded from .env), then from the [secrets] table of config.toml. Each
// known secret is declared once in the knownKeys table (specs.go).
package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/userconfig"
)

// ErrNotConfigured is wrapped by Get when no source provides a value.
// Callers treat it as a fatal configuration error.
var ErrNotConfigured = errmsg.Sentinel(errmsg.FatalConfig, "secret not configured")

// KeyInfo describes a registered secret for display.
type KeyInfo struct {
	Name    string
	EnvVars []string
	Desc    string
}

var (
	configOnce  sync.Once
	cachedCfg   *userconfig.Config
	configError error
)

func getConfig() (*userconfig.Config, error) {
	configOnce.Do(func() {
		cachedCfg, configError = userconfig.Load()
	})
	return cachedCfg, configError
}

// ResetConfig drops the cached config so the next lookup reloads it.
// Intended for tests.
func ResetConfig() {
	configOnce = sync.Once{}
	cachedCfg = nil
	configError = nil
}

// Get resolves a secret using the config.toml in the default home directory.
func Get(name string) (string, error) {
	cfg, err := getConfig()
	if err != nil {
		cfg = nil
	}
	return Lookup(cfg, name)
}

// Lookup resolves a secret against an explicit config. cfg may be nil.
func Lookup(cfg *userconfig.Config, name string) (string, error) {
	spec, ok := knownKeys[name]
	if !ok {
		return "", fmt.Errorf("unknown secret key: %q", name)
	}

	for _, env := range spec.EnvVars {
		if val := os.Getenv(env); val != "" {
			return val, nil
		}
	}

	if cfg != nil && cfg.Secrets != nil {
		if val := cfg.Secrets[name]; val != "" {
			return val, nil
		}
	}

	envList := strings.Join(spec.EnvVars, " or ")
	return "", fmt.Errorf(
		"%w: %s. Set %s in the environment or in .env, or add %s to [secrets] in config.toml",
		ErrNotConfigured, name, envList, name,
	)
}

// IsSet reports whether a secret is available without returning it.
func IsSet(name string) bool {
	cfg, _ := getConfig()
	_, err := Lookup(cfg, name)
	return err == nil
}

// KnownKeys returns metadata for all registered secrets, sorted by name.
func KnownKeys() []KeyInfo {
	keys := make([]KeyInfo, 0, len(knownKeys))
	for name, spec := range knownKeys {
		keys = append(keys, KeyInfo{Name: name, EnvVars: spec.EnvVars, Desc: spec.Desc})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}
