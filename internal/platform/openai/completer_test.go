package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/analysis-service/internal/generation"
	"github.com/phrazzld/analysis-service/internal/platform/logger"
)

func newTestCompleter(t *testing.T, handler http.HandlerFunc) *Completer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewCompleter("sk-test", logger.DiscardLogger(), option.WithBaseURL(server.URL))
	require.NoError(t, err)
	return c
}

func TestNewCompleterRequiresKey(t *testing.T) {
	_, err := NewCompleter("", logger.DiscardLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestCompleteSendsMessages(t *testing.T) {
	var body map[string]any
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Quarterly sales grew 12%"}
			}]
		}`))
	})

	text, err := c.Complete(context.Background(), generation.Completion{
		Model:       "gpt-4o-mini",
		System:      "be brief",
		Prompt:      "analyze",
		MaxTokens:   100,
		Temperature: 0.2,
	})

	require.NoError(t, err)
	assert.Equal(t, "Quarterly sales grew 12%", text)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestCompleteMapsStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, generation.ErrRateLimited},
		{http.StatusUnauthorized, generation.ErrAuth},
		{http.StatusBadRequest, generation.ErrProtocol},
		{http.StatusInternalServerError, generation.ErrUnavailable},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newTestCompleter(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "error"}}`))
			})

			_, err := c.Complete(context.Background(), generation.Completion{Model: "m", Prompt: "p"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCompleteWithoutChoices(t *testing.T) {
	c := newTestCompleter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`))
	})

	_, err := c.Complete(context.Background(), generation.Completion{Model: "m", Prompt: "p"})
	assert.ErrorIs(t, err, generation.ErrProtocol)
}
