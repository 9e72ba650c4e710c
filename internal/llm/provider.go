// Package llm talks to hosted chat-completion APIs.
//
// Each backend (DeepSeek and Qwen through their OpenAI-compatible
// endpoints, Claude, Gemini) implements Provider. Providers stream: the
// request's OnDelta callback sees reasoning and answer text as it arrives,
// and the response carries the assembled result. Conversation layers
// history and retries on top of a Provider.
package llm

import "context"

// Provider defines the interface for single-turn chat completion.
// Providers are stateless; callers manage conversation history.
type Provider interface {
	// Name returns the provider identifier (e.g., "deepseek", "claude").
	Name() string

	// Complete sends messages to the model and returns the full response.
	// If req.OnDelta is set it is called for every streamed fragment
	// before Complete returns.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains input for a single turn.
type CompletionRequest struct {
	// SystemPrompt provides context and instructions for the model.
	SystemPrompt string

	// Messages contains the conversation history.
	// Must include at least one user message.
	Messages []Message

	// Model overrides the provider's configured model for this turn.
	Model string

	// MaxTokens limits the response length.
	// If zero, the provider's configured limit applies.
	MaxTokens int

	// OnDelta receives streamed text. May be nil.
	OnDelta func(Delta)
}

// CompletionResponse contains the model's response for a single turn.
type CompletionResponse struct {
	// Content is the answer text.
	Content string

	// Reasoning is the separately streamed thinking text, when the model
	// produces one (deepseek-reasoner, Claude extended thinking).
	Reasoning string

	// Model is the model that served the request.
	Model string

	// StopReason indicates why the model stopped generating.
	StopReason string

	Usage Usage
}

// Delta is one streamed fragment. Exactly one field is non-empty.
type Delta struct {
	Reasoning string
	Content   string
}

// Usage tracks token consumption for one turn.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Role identifies the sender of a message in a conversation.
type Role string

const (
	// RoleUser indicates a message from the user.
	RoleUser Role = "user"

	// RoleAssistant indicates a message from the model.
	RoleAssistant Role = "assistant"
)

// collector assembles a streamed response and forwards fragments.
type collector struct {
	onDelta   func(Delta)
	content   []byte
	reasoning []byte
}

func newCollector(onDelta func(Delta)) *collector {
	return &collector{onDelta: onDelta}
}

func (c *collector) addContent(s string) {
	if s == "" {
		return
	}
	c.content = append(c.content, s...)
	if c.onDelta != nil {
		c.onDelta(Delta{Content: s})
	}
}

func (c *collector) addReasoning(s string) {
	if s == "" {
		return
	}
	c.reasoning = append(c.reasoning, s...)
	if c.onDelta != nil {
		c.onDelta(Delta{Reasoning: s})
	}
}

func (c *collector) response(model, stop string, usage Usage) *CompletionResponse {
	return &CompletionResponse{
		Content:    string(c.content),
		Reasoning:  string(c.reasoning),
		Model:      model,
		StopReason: stop,
		Usage:      usage,
	}
}
