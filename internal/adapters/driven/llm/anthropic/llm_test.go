package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	t.Run("requires an API key", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		svc, err := New(Config{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, svc.ModelName())
	})
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("lifts system messages into the top-level field", func(t *testing.T) {
		var got messagesRequest
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
			assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "Answer [1]."}},
			})
		})

		messages := []driven.ChatMessage{
			{Role: "system", Content: "Answer from context only."},
			{Role: "user", Content: "what is calfresh"},
			{Role: "assistant", Content: "A food benefit program."},
			{Role: "user", Content: "how do I apply"},
		}
		text, err := svc.Complete(ctx, messages, driven.GenerateOptions{})

		require.NoError(t, err)
		assert.Equal(t, "Answer [1].", text)
		assert.Equal(t, "Answer from context only.", got.System)
		require.Len(t, got.Messages, 3, "system message must not remain in the list")
		assert.Equal(t, "user", got.Messages[0].Role)
		assert.Equal(t, 1024, got.MaxTokens, "max_tokens is mandatory and defaulted")
	})

	t.Run("passes generation options through", func(t *testing.T) {
		var got messagesRequest
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "ok"}},
			})
		})

		_, err := svc.Complete(ctx, []driven.ChatMessage{{Role: "user", Content: "q"}},
			driven.GenerateOptions{MaxTokens: 256, Temperature: 0.2, StopWords: []string{"END"}})

		require.NoError(t, err)
		assert.Equal(t, 256, got.MaxTokens)
		assert.InDelta(t, 0.2, got.Temperature, 1e-9)
		assert.Equal(t, []string{"END"}, got.StopSequences)
	})

	t.Run("concatenates text blocks and trims", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{
					{"type": "text", "text": "  First part."},
					{"type": "tool_use", "text": "ignored"},
					{"type": "text", "text": " Second part.  "},
				},
			})
		})

		text, err := svc.Complete(ctx, []driven.ChatMessage{{Role: "user", Content: "q"}},
			driven.GenerateOptions{})

		require.NoError(t, err)
		assert.Equal(t, "First part. Second part.", text)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"type": "invalid_request_error", "message": "model not found"},
			})
		})

		_, err := svc.Complete(ctx, []driven.ChatMessage{{Role: "user", Content: "q"}},
			driven.GenerateOptions{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("empty completion is an error", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{}})
		})

		_, err := svc.Complete(ctx, []driven.ChatMessage{{Role: "user", Content: "q"}},
			driven.GenerateOptions{})

		assert.Error(t, err)
	})
}

func TestService_Ping(t *testing.T) {
	t.Run("sends a minimal messages request", func(t *testing.T) {
		var got messagesRequest
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "."}},
			})
		})

		require.NoError(t, svc.Ping(context.Background()))
		assert.Equal(t, 1, got.MaxTokens)
	})

	t.Run("reports unreachable service", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		assert.Error(t, svc.Ping(context.Background()))
	})
}
