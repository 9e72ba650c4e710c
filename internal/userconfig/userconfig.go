// Package userconfig provides user configuration management for aigene.
// Configuration is stored in config.toml inside the aigene home directory
// and can be modified via the `aigene config` command.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tsukumogami/aigene/internal/config"
)

// Default package mirrors, tried in order.
var DefaultMirrors = []string{
	"https://mirrors.aliyun.com/pypi/simple/",
	"https://pypi.org/simple/",
}

// Config represents user-configurable settings.
type Config struct {
	// Provider selects the chat backend: deepseek, qwen, claude, or gemini.
	Provider string `toml:"provider"`

	// Model overrides the provider's default chat model.
	Model string `toml:"model,omitempty"`

	// ReasoningModel is used after the `r` REPL command.
	ReasoningModel string `toml:"reasoning_model,omitempty"`

	// Python is the base interpreter command used to create the private venv.
	// May contain arguments, e.g. "py -3.9".
	Python string `toml:"python"`

	// Mirrors are package index URLs tried in order.
	Mirrors []string `toml:"mirrors"`

	// UpdateCheck enables the update check at launch.
	UpdateCheck bool `toml:"update_check"`

	// UpdateSource is "http" (update server) or "github" (branch head).
	UpdateSource string `toml:"update_source"`

	// UpdateURL is the update server base URL.
	UpdateURL string `toml:"update_url,omitempty"`

	// UpdateRepo is owner/repo for the github update source.
	UpdateRepo string `toml:"update_repo,omitempty"`

	// UpdateBranch is the branch tracked by the github update source.
	UpdateBranch string `toml:"update_branch,omitempty"`

	// UpdatePublicKey is a path to an armored PGP key that signs bundles.
	UpdatePublicKey string `toml:"update_public_key,omitempty"`

	// UpdateKeyFingerprint pins the fingerprint of UpdatePublicKey.
	UpdateKeyFingerprint string `toml:"update_key_fingerprint,omitempty"`

	// Secrets holds API keys when they are not provided by the environment.
	Secrets map[string]string `toml:"secrets,omitempty"`
}

// DefaultPython returns the platform's default base interpreter command.
func DefaultPython() string {
	if runtime.GOOS == "windows" {
		return "py -3.9"
	}
	return "python3.9"
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Provider:     "deepseek",
		Python:       DefaultPython(),
		Mirrors:      append([]string(nil), DefaultMirrors...),
		UpdateCheck:  true,
		UpdateSource: "http",
		UpdateBranch: "main",
	}
}

// Load reads config.toml from the default home directory.
// Returns default values if the file doesn't exist.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(cfg.ConfigFile)
}

// LoadFrom reads config from a specific file path.
// A missing file yields defaults; only parse errors are returned.
func LoadFrom(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if len(userCfg.Mirrors) == 0 {
		userCfg.Mirrors = append([]string(nil), DefaultMirrors...)
	}

	return userCfg, nil
}

// Save writes the configuration to config.toml in the default home directory.
func (c *Config) Save() error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveTo(cfg.ConfigFile)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Get returns the value of a config key as a string.
func (c *Config) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "provider":
		return c.Provider, true
	case "model":
		return c.Model, true
	case "reasoning_model":
		return c.ReasoningModel, true
	case "python":
		return c.Python, true
	case "mirrors":
		return strings.Join(c.Mirrors, ","), true
	case "update_check":
		return strconv.FormatBool(c.UpdateCheck), true
	case "update_source":
		return c.UpdateSource, true
	case "update_url":
		return c.UpdateURL, true
	case "update_repo":
		return c.UpdateRepo, true
	case "update_branch":
		return c.UpdateBranch, true
	case "update_public_key":
		return c.UpdatePublicKey, true
	case "update_key_fingerprint":
		return c.UpdateKeyFingerprint, true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "provider":
		switch value {
		case "deepseek", "qwen", "claude", "gemini":
			c.Provider = value
			return nil
		}
		return fmt.Errorf("invalid value for provider: must be deepseek, qwen, claude, or gemini")
	case "model":
		c.Model = value
	case "reasoning_model":
		c.ReasoningModel = value
	case "python":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("invalid value for python: must not be empty")
		}
		c.Python = value
	case "mirrors":
		var mirrors []string
		for _, m := range strings.Split(value, ",") {
			if m = strings.TrimSpace(m); m != "" {
				mirrors = append(mirrors, m)
			}
		}
		if len(mirrors) == 0 {
			return fmt.Errorf("invalid value for mirrors: need at least one URL")
		}
		c.Mirrors = mirrors
	case "update_check":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for update_check: must be true or false")
		}
		c.UpdateCheck = b
	case "update_source":
		if value != "http" && value != "github" {
			return fmt.Errorf("invalid value for update_source: must be http or github")
		}
		c.UpdateSource = value
	case "update_url":
		c.UpdateURL = value
	case "update_repo":
		if value != "" && strings.Count(value, "/") != 1 {
			return fmt.Errorf("invalid value for update_repo: expected owner/repo")
		}
		c.UpdateRepo = value
	case "update_branch":
		c.UpdateBranch = value
	case "update_public_key":
		c.UpdatePublicKey = value
	case "update_key_fingerprint":
		c.UpdateKeyFingerprint = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// AvailableKeys returns all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"provider":               "Chat backend (deepseek, qwen, claude, gemini)",
		"model":                  "Chat model override",
		"reasoning_model":        "Model used after the 'r' command",
		"python":                 "Base interpreter for the private venv (e.g. python3.9)",
		"mirrors":                "Comma-separated package index URLs, tried in order",
		"update_check":           "Check for updates at launch (true/false)",
		"update_source":          "Where to look for updates (http, github)",
		"update_url":             "Update server base URL",
		"update_repo":            "owner/repo tracked by the github update source",
		"update_branch":          "Branch tracked by the github update source",
		"update_public_key":      "Path to the armored PGP key that signs update bundles",
		"update_key_fingerprint": "Expected fingerprint of update_public_key",
	}
}
