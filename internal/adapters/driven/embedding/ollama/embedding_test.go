package ollama

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Dimensions: 3})
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, DefaultModel, p.ModelName())
	assert.Equal(t, DefaultDimensions, p.Dimensions())
	assert.Equal(t, 1, p.MaxBatchSize())
}

func TestProvider_EmbedBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("one request per text with role prefixes", func(t *testing.T) {
		var prompts []string
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embeddings", r.URL.Path)
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			prompts = append(prompts, req.Prompt)
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
		})

		vectors, err := p.EmbedBatch(ctx, []string{"income limits", "how to apply"}, driven.EmbedRoleDocument)

		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
		assert.Equal(t, []string{
			"search_document: income limits",
			"search_document: how to apply",
		}, prompts)
	})

	t.Run("query role uses the query prefix", func(t *testing.T) {
		var prompt string
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			prompt = req.Prompt
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{1}})
		})

		_, err := p.EmbedBatch(ctx, []string{"am I eligible"}, driven.EmbedRoleQuery)

		require.NoError(t, err)
		assert.Equal(t, "search_query: am I eligible", prompt)
	})

	t.Run("server errors surface with status", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		})

		_, err := p.EmbedBatch(ctx, []string{"text"}, driven.EmbedRoleDocument)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})
}

func TestProvider_Ping(t *testing.T) {
	t.Run("checks the tags endpoint", func(t *testing.T) {
		var path string
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.Write([]byte(`{"models":[]}`))
		})

		require.NoError(t, p.Ping(context.Background()))
		assert.Equal(t, "/api/tags", path)
	})

	t.Run("reports unreachable service", func(t *testing.T) {
		p := New(Config{BaseURL: "http://127.0.0.1:1"})

		assert.Error(t, p.Ping(context.Background()))
	})
}
