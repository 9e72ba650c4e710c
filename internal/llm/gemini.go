package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider using the Google AI API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// Complete replays the history into a chat session and streams the reply
// to the last user message.
func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: no messages to send")
	}

	name := p.model
	if req.Model != "" {
		name = req.Model
	}
	model := p.client.GenerativeModel(name)
	model.SetTemperature(p.temperature)
	if maxTokens := p.maxTokensFor(req); maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	history, last := splitHistory(req.Messages)
	cs := model.StartChat()
	cs.History = history

	c := newCollector(req.OnDelta)
	var stop string
	var usage Usage
	iter := cs.SendMessageStream(ctx, genai.Text(last.Content))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrapGeminiError(err)
		}
		if resp.UsageMetadata != nil {
			usage = Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}
		for _, cand := range resp.Candidates {
			if cand.FinishReason != genai.FinishReasonUnspecified {
				stop = cand.FinishReason.String()
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					c.addContent(string(text))
				}
			}
		}
	}

	out := c.response(name, stop, usage)
	if out.Content == "" {
		return nil, &APIError{Provider: ProviderGemini, Err: ErrEmptyResponse}
	}
	return out, nil
}

func (p *GeminiProvider) maxTokensFor(req *CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return p.maxTokens
}

// Close releases the Gemini client resources.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// splitHistory converts all but the final message to Gemini content and
// returns the final message separately. Gemini calls the assistant "model".
func splitHistory(msgs []Message) ([]*genai.Content, Message) {
	last := msgs[len(msgs)-1]
	history := make([]*genai.Content, 0, len(msgs)-1)
	for _, msg := range msgs[:len(msgs)-1] {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history, last
}

func wrapGeminiError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &APIError{Provider: ProviderGemini, StatusCode: gErr.Code, Err: err}
	}
	return &APIError{Provider: ProviderGemini, Err: err}
}
