package driven

import (
	"context"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for durable corpora, or memory for tests.
type DocumentStore interface {
	// SaveDocument stores a document version. Saving the same (ID,
	// Version) pair again replaces it wholesale.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores the chunks of one document version.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves the latest version of a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetLatestByURI retrieves the latest document version for a URI.
	// Returns domain.ErrNotFound if the URI was never ingested.
	GetLatestByURI(ctx context.Context, uri string) (*domain.Document, error)

	// GetChunk retrieves a specific chunk by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks of one document version, ordered by
	// ordinal.
	GetChunks(ctx context.Context, documentID string, version int) ([]domain.Chunk, error)

	// DeleteVersion removes one document version and its chunks.
	DeleteVersion(ctx context.Context, documentID string, version int) error

	// Close releases resources.
	Close() error
}
