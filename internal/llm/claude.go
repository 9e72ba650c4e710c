package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider implements the Provider interface for Claude/Anthropic models.
type ClaudeProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewClaudeProvider creates a Claude provider. The SDK's own retries are
// disabled; Conversation retries instead.
func NewClaudeProvider(cfg Config) *ClaudeProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ClaudeProvider{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Name returns the provider identifier.
func (p *ClaudeProvider) Name() string {
	return ProviderClaude
}

// Complete streams a message from Claude.
func (p *ClaudeProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := int64(p.maxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(p.temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	c := newCollector(req.OnDelta)
	var stop string
	var usage Usage
	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			usage.InputTokens = int(ev.Message.Usage.InputTokens)
		case anthropic.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				c.addContent(d.Text)
			case anthropic.ThinkingDelta:
				c.addReasoning(d.Thinking)
			}
		case anthropic.MessageDeltaEvent:
			stop = string(ev.Delta.StopReason)
			usage.OutputTokens = int(ev.Usage.OutputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, wrapAnthropicError(err)
	}

	out := c.response(model, stop, usage)
	if out.Content == "" {
		return nil, &APIError{Provider: ProviderClaude, Err: ErrEmptyResponse}
	}
	return out, nil
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{Provider: ProviderClaude, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &APIError{Provider: ProviderClaude, Err: err}
}

// toAnthropicMessages converts common Messages to Anthropic format.
func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(block))
			continue
		}
		result = append(result, anthropic.NewUserMessage(block))
	}
	return result
}
