package driven

import "context"

// EmbedRole distinguishes document ingestion from query embedding.
// Some providers train asymmetric models where the two sides use
// different prefixes; providers that don't may ignore the role.
type EmbedRole string

// Embedding roles.
const (
	// EmbedRoleDocument embeds chunk text at ingestion time.
	EmbedRoleDocument EmbedRole = "document"

	// EmbedRoleQuery embeds a reformulated user query at search time.
	EmbedRoleQuery EmbedRole = "query"
)

// EmbeddingProvider generates vector embeddings from text. The gateway in
// core/services owns batching, retries, caching and rate limiting; a
// provider only needs to turn one bounded batch of texts into vectors.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
type EmbeddingProvider interface {
	// EmbedBatch generates embeddings for up to MaxBatchSize texts.
	// The result is parallel to the input order.
	EmbedBatch(ctx context.Context, texts []string, role EmbedRole) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This is determined by the model and must match the vector index.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// MaxBatchSize returns the largest batch the provider accepts in one
	// request. The gateway splits larger batches transparently.
	MaxBatchSize() int

	// Ping validates the service is reachable by making a lightweight
	// test request. Used at startup before committing to ingestion.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
