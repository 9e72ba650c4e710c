package secrets

// KeySpec defines how to resolve a specific secret.
type KeySpec struct {
	// EnvVars lists environment variables to check, in priority order.
	EnvVars []string

	// Desc is shown in error messages and `aigene config list`.
	Desc string
}

// knownKeys maps secret names to their resolution specs.
var knownKeys = map[string]KeySpec{
	"deepseek_api_key": {
		EnvVars: []string{"DEEPSEEK_API_KEY"},
		Desc:    "DeepSeek API key",
	},
	"dashscope_api_key": {
		EnvVars: []string{"DASHSCOPE_API_KEY"},
		Desc:    "Alibaba DashScope API key for Qwen",
	},
	"anthropic_api_key": {
		EnvVars: []string{"ANTHROPIC_API_KEY"},
		Desc:    "Anthropic API key for Claude",
	},
	"google_api_key": {
		EnvVars: []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
		Desc:    "Google API key for Gemini",
	},
	"github_token": {
		EnvVars: []string{"GITHUB_TOKEN"},
		Desc:    "GitHub token for the github update source",
	},
}

// ProviderKey maps a chat provider name to the secret holding its API key.
func ProviderKey(provider string) (string, bool) {
	switch provider {
	case "deepseek":
		return "deepseek_api_key", true
	case "qwen":
		return "dashscope_api_key", true
	case "claude":
		return "anthropic_api_key", true
	case "gemini":
		return "google_api_key", true
	}
	return "", false
}
