package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sseServer replies to /chat/completions with the given data frames.
func sseServer(t *testing.T, frames []string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func errorServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":{"message":"nope","type":"invalid_request_error","code":"bad"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deepseekConfig(baseURL string) Config {
	return Config{Provider: ProviderDeepSeek, APIKey: "sk-test", BaseURL: baseURL}
}

func TestOpenAIProviderStreamsReasoningThenContent(t *testing.T) {
	frames := []string{
		`{"id":"1","model":"deepseek-reasoner","choices":[{"index":0,"delta":{"role":"assistant","reasoning_content":"think "}}]}`,
		`{"id":"1","model":"deepseek-reasoner","choices":[{"index":0,"delta":{"reasoning_content":"hard"}}]}`,
		`{"id":"1","model":"deepseek-reasoner","choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
		`{"id":"1","model":"deepseek-reasoner","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":"stop"}]}`,
		`{"id":"1","model":"deepseek-reasoner","choices":[],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`,
	}
	var body map[string]any
	srv := sseServer(t, frames, &body)

	p, err := New(context.Background(), deepseekConfig(srv.URL))
	require.NoError(t, err)
	require.Equal(t, "deepseek", p.Name())

	var deltas []Delta
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: RoleUser, Content: "hi"}},
		Model:        "deepseek-reasoner",
		OnDelta:      func(d Delta) { deltas = append(deltas, d) },
	})
	require.NoError(t, err)

	require.Equal(t, "Hello world", resp.Content)
	require.Equal(t, "think hard", resp.Reasoning)
	require.Equal(t, "stop", resp.StopReason)
	require.Equal(t, Usage{InputTokens: 7, OutputTokens: 3}, resp.Usage)
	require.Equal(t, []Delta{
		{Reasoning: "think "},
		{Reasoning: "hard"},
		{Content: "Hello"},
		{Content: " world"},
	}, deltas)

	require.Equal(t, "deepseek-reasoner", body["model"])
	require.Equal(t, true, body["stream"])
	require.InDelta(t, DefaultTemperature, body["temperature"], 0.001)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	require.Equal(t, "system", first["role"])
	require.Equal(t, "be brief", first["content"])
}

func TestOpenAIProviderDefaultModel(t *testing.T) {
	var body map[string]any
	srv := sseServer(t, []string{
		`{"id":"1","choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"stop"}]}`,
	}, &body)

	p, err := New(context.Background(), Config{Provider: ProviderQwen, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, "qwen-max-2025-01-25", body["model"])
}

func TestOpenAIProviderEmptyStream(t *testing.T) {
	srv := sseServer(t, nil, nil)
	p, err := New(context.Background(), deepseekConfig(srv.URL))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), &CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		status    int
		auth      bool
		retryable bool
	}{
		{status: http.StatusUnauthorized, auth: true},
		{status: http.StatusForbidden, auth: true},
		{status: http.StatusBadRequest},
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusServiceUnavailable, retryable: true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := errorServer(t, tt.status)
			p, err := New(context.Background(), deepseekConfig(srv.URL))
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), &CompletionRequest{
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.auth, errors.Is(err, ErrAuthentication))
			require.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestOpenAIProviderConnectionRefusedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := New(context.Background(), deepseekConfig(url))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), &CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.True(t, IsRetryable(err), "connection refused should be retryable: %v", err)
}
