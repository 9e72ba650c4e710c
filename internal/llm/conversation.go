package llm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
)

// DefaultBackoff is the wait before each retry of a failed turn.
var DefaultBackoff = []time.Duration{2 * time.Second, 4 * time.Second}

// ConversationOptions configures a Conversation.
type ConversationOptions struct {
	// SystemPrompt is sent with every turn.
	SystemPrompt string

	// Model is the initial model. Empty uses the provider's default.
	Model string

	// Timeout bounds one attempt. Zero means no per-attempt limit.
	Timeout time.Duration

	// Backoff lists the waits between attempts; its length is the number
	// of retries. Nil uses DefaultBackoff.
	Backoff []time.Duration

	// Out receives retry announcements. Nil discards them.
	Out io.Writer

	Logger log.Logger
}

// Conversation keeps the message history of one chat session.
// It is not safe for concurrent use.
type Conversation struct {
	provider Provider
	system   string
	model    string
	history  []Message
	timeout  time.Duration
	backoff  []time.Duration
	out      io.Writer
	logger   log.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewConversation starts an empty conversation on provider.
func NewConversation(provider Provider, opts ConversationOptions) *Conversation {
	backoff := opts.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Conversation{
		provider: provider,
		system:   opts.SystemPrompt,
		model:    opts.Model,
		timeout:  opts.Timeout,
		backoff:  backoff,
		out:      out,
		logger:   log.OrDefault(opts.Logger),
		sleep:    sleepCtx,
	}
}

// Provider returns the underlying provider.
func (c *Conversation) Provider() Provider { return c.provider }

// Model returns the model override in effect, or "" for the default.
func (c *Conversation) Model() string { return c.model }

// SetModel switches the model used by later turns. The history is kept.
func (c *Conversation) SetModel(model string) { c.model = model }

// History returns a copy of the exchanged messages.
func (c *Conversation) History() []Message {
	return append([]Message(nil), c.history...)
}

// Reset clears the history.
func (c *Conversation) Reset() {
	c.history = nil
}

// Send sends text as the next user message and returns the reply.
//
// Retryable failures (see IsRetryable) are retried after each Backoff
// wait, and every wait is announced on Out. Authentication failures and
// other client errors return immediately. The history only grows when a
// turn succeeds.
func (c *Conversation) Send(ctx context.Context, text string, onDelta func(Delta)) (*CompletionResponse, error) {
	msgs := append(c.History(), Message{Role: RoleUser, Content: text})
	req := &CompletionRequest{
		SystemPrompt: c.system,
		Messages:     msgs,
		Model:        c.model,
		OnDelta:      onDelta,
	}

	attempts := len(c.backoff) + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.complete(ctx, req)
		if err == nil {
			c.history = append(msgs, Message{Role: RoleAssistant, Content: resp.Content})
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) {
			c.logger.Debug("chat turn failed", "provider", c.provider.Name(), "error", err)
			return nil, err
		}
		if attempt == attempts {
			break
		}

		wait := c.backoff[attempt-1]
		c.logger.Warn("chat turn failed, retrying", "provider", c.provider.Name(), "attempt", attempt, "error", err)
		fmt.Fprintf(c.out, "\nConnection failed (%v). Retrying in %s (attempt %d/%d)...\n", err, wait, attempt+1, attempts)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func (c *Conversation) complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.provider.Complete(ctx, req)
}

// Close releases provider resources when the provider holds any.
func (c *Conversation) Close() error {
	if closer, ok := c.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
