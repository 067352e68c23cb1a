// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/benefitsflow/benefits-rag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/benefitsflow/benefits-rag/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/benefitsflow/benefits-rag/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/benefitsflow/benefits-rag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/benefitsflow/benefits-rag/internal/adapters/driven/llm/openai"
	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/vector/memory"
	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/vector/pinecone"
	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateAndValidateEmbeddingProvider creates an embedding provider and
// validates connectivity. Returns the provider if successful, or an error
// with guidance.
func CreateAndValidateEmbeddingProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	provider, err := CreateEmbeddingProvider(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if provider == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return provider, nil
}

// CreateAndValidateGenerationService creates a generation service and
// validates connectivity. Returns the service if successful, or an error
// with guidance.
func CreateAndValidateGenerationService(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateGenerationService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrGenerationUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingProvider creates the appropriate embedding provider based
// on settings. Returns nil if the provider is not configured.
func CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.New(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.New(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateGenerationService creates the appropriate generation service based
// on settings. Returns nil if the provider is not configured.
func CreateGenerationService(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.New(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.New(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.New(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", settings.Provider)
	}
}

// CreateVectorIndex creates the vector index backend. The dimensions
// argument must match the configured embedding provider.
func CreateVectorIndex(settings *domain.IndexSettings, dimensions int) (driven.VectorIndex, error) {
	backend := domain.IndexBackendMemory
	if settings != nil && settings.Backend != "" {
		backend = settings.Backend
	}

	switch backend {
	case domain.IndexBackendMemory:
		ix, err := memory.New(dimensions)
		if err != nil {
			return nil, err
		}
		if settings != nil && settings.SnapshotPath != "" {
			if err := ix.Load(settings.SnapshotPath); err != nil {
				return nil, err
			}
		}
		return ix, nil

	case domain.IndexBackendPinecone:
		return pinecone.New(pinecone.Config{
			APIKey:    settings.APIKey,
			IndexHost: settings.IndexHost,
			Namespace: settings.Namespace,
		})

	default:
		return nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}
