package ai

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/vector/memory"
	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

func TestCreateEmbeddingProvider(t *testing.T) {
	t.Run("unconfigured settings yield no provider and no error", func(t *testing.T) {
		provider, err := CreateEmbeddingProvider(&domain.EmbeddingSettings{})

		require.NoError(t, err)
		assert.Nil(t, provider)
	})

	t.Run("nil settings yield no provider", func(t *testing.T) {
		provider, err := CreateEmbeddingProvider(nil)

		require.NoError(t, err)
		assert.Nil(t, provider)
	})

	t.Run("ollama provider is created with defaults", func(t *testing.T) {
		provider, err := CreateEmbeddingProvider(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
		})

		require.NoError(t, err)
		require.NotNil(t, provider)
		defer provider.Close()
		assert.NotEmpty(t, provider.ModelName())
		assert.Positive(t, provider.Dimensions())
	})

	t.Run("openai requires an API key", func(t *testing.T) {
		_, err := CreateEmbeddingProvider(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI,
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("anthropic cannot serve embeddings", func(t *testing.T) {
		_, err := CreateEmbeddingProvider(&domain.EmbeddingSettings{
			Provider: domain.AIProviderAnthropic,
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support embeddings")
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := CreateEmbeddingProvider(&domain.EmbeddingSettings{
			Provider: "cohere",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported embedding provider")
	})
}

func TestCreateGenerationService(t *testing.T) {
	t.Run("unconfigured settings yield no service", func(t *testing.T) {
		svc, err := CreateGenerationService(&domain.GenerationSettings{})

		require.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("each supported provider constructs", func(t *testing.T) {
		cases := []domain.GenerationSettings{
			{Provider: domain.AIProviderOllama},
			{Provider: domain.AIProviderOpenAI, APIKey: "sk-test"},
			{Provider: domain.AIProviderAnthropic, APIKey: "sk-ant-test"},
		}
		for _, settings := range cases {
			svc, err := CreateGenerationService(&settings)
			require.NoError(t, err, "provider %s", settings.Provider)
			require.NotNil(t, svc)
			assert.NotEmpty(t, svc.ModelName())
			svc.Close()
		}
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := CreateGenerationService(&domain.GenerationSettings{
			Provider: "bedrock",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported generation provider")
	})
}

func TestCreateVectorIndex(t *testing.T) {
	t.Run("defaults to the memory backend", func(t *testing.T) {
		index, err := CreateVectorIndex(nil, 3)

		require.NoError(t, err)
		require.IsType(t, &memory.Index{}, index)
		index.Close()
	})

	t.Run("memory backend rejects bad dimensions", func(t *testing.T) {
		_, err := CreateVectorIndex(&domain.IndexSettings{
			Backend: domain.IndexBackendMemory,
		}, 0)

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("memory backend tolerates a missing snapshot", func(t *testing.T) {
		index, err := CreateVectorIndex(&domain.IndexSettings{
			Backend:      domain.IndexBackendMemory,
			SnapshotPath: filepath.Join(t.TempDir(), "absent.gob"),
		}, 3)

		require.NoError(t, err)
		require.NotNil(t, index)
		index.Close()
	})

	t.Run("pinecone backend requires key and host", func(t *testing.T) {
		_, err := CreateVectorIndex(&domain.IndexSettings{
			Backend: domain.IndexBackendPinecone,
		}, 1536)

		require.Error(t, err)
	})

	t.Run("unknown backend is rejected", func(t *testing.T) {
		_, err := CreateVectorIndex(&domain.IndexSettings{
			Backend: "qdrant",
		}, 3)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported index backend")
	})
}
