package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderDeepSeek = "deepseek"
	ProviderQwen     = "qwen"
	ProviderClaude   = "claude"
	ProviderGemini   = "gemini"
)

// DefaultTemperature is used when Config.Temperature is zero.
const DefaultTemperature = 0.7

// DefaultMaxTokens is used by providers that require an explicit limit.
const DefaultMaxTokens = 8192

// Config selects and configures one chat backend. It is passed explicitly
// to New; the package holds no global client.
type Config struct {
	// Provider is one of deepseek, qwen, claude, gemini.
	Provider string

	// Model overrides the provider's default chat model.
	Model string

	// ReasoningModel overrides the provider's default reasoning model.
	ReasoningModel string

	// BaseURL overrides the provider's API endpoint.
	BaseURL string

	APIKey string

	// Temperature is the sampling temperature. Zero selects
	// DefaultTemperature.
	Temperature float64

	// MaxTokens caps response length. Zero leaves the provider default.
	MaxTokens int

	// HTTPClient is used by the HTTP-based providers. Nil uses a
	// default client.
	HTTPClient *http.Client
}

type providerDefaults struct {
	baseURL        string
	model          string
	reasoningModel string
}

var defaults = map[string]providerDefaults{
	ProviderDeepSeek: {
		baseURL:        "https://api.deepseek.com/v1",
		model:          "deepseek-chat",
		reasoningModel: "deepseek-reasoner",
	},
	ProviderQwen: {
		baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		model:   "qwen-max-2025-01-25",
	},
	ProviderClaude: {
		model: "claude-sonnet-4-5-20250929",
	},
	ProviderGemini: {
		model: "gemini-2.0-flash",
	},
}

// Providers returns the supported provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// withDefaults returns a copy of c with empty fields filled in.
func (c Config) withDefaults() (Config, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	d, ok := defaults[c.Provider]
	if !ok {
		return c, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, c.Provider, strings.Join(Providers(), ", "))
	}
	if c.Model == "" {
		c.Model = d.model
	}
	if c.ReasoningModel == "" {
		c.ReasoningModel = d.reasoningModel
	}
	if c.BaseURL == "" {
		c.BaseURL = d.baseURL
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.APIKey == "" {
		return c, fmt.Errorf("%w for provider %s", ErrMissingAPIKey, c.Provider)
	}
	return c, nil
}

// New creates the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Provider, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderDeepSeek, ProviderQwen:
		return NewOpenAIProvider(cfg), nil
	case ProviderClaude:
		return NewClaudeProvider(cfg), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg)
	}
	// unreachable: withDefaults rejects unknown names
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

// ReasoningModel returns the reasoning model for cfg, or "" when the
// provider has none.
func ReasoningModel(cfg Config) string {
	if cfg.ReasoningModel != "" {
		return cfg.ReasoningModel
	}
	return defaults[strings.ToLower(cfg.Provider)].reasoningModel
}

// ChatModel returns the chat model for cfg.
func ChatModel(cfg Config) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return defaults[strings.ToLower(cfg.Provider)].model
}
