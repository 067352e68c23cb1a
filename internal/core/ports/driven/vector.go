package driven

import (
	"context"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// VectorIndex persists chunk vectors plus metadata and answers
// approximate top-k similarity queries.
//
// Failure semantics: transient faults (network, rate limits) wrap
// domain.ErrIndexUnavailable and are safe to retry; structural faults
// wrap domain.ErrIndexCorrupt and require re-ingestion of the affected
// document versions.
type VectorIndex interface {
	// Upsert inserts or replaces records by chunk ID. Replaying the same
	// batch twice leaves the index in the same observable state as
	// replaying it once. Replacement is atomic per record: no query may
	// observe a partially written record.
	Upsert(ctx context.Context, records []domain.IndexRecord) error

	// Query returns at most k results ordered by descending similarity.
	// Ties break by most recent document version, then lexicographically
	// by chunk ID, so results are reproducible.
	Query(ctx context.Context, vector []float32, k int, filter QueryFilter) ([]VectorHit, error)

	// DeleteVersion removes all chunks of one document version. Used when
	// re-ingestion supersedes it.
	DeleteVersion(ctx context.Context, documentID string, version int) error

	// Close releases resources.
	Close() error
}

// QueryFilter restricts a similarity query by metadata. Zero value means
// no filtering.
type QueryFilter struct {
	// Tags keeps only records carrying at least one of these tags.
	Tags []string

	// DocumentIDs keeps only records from these documents.
	DocumentIDs []string
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the cosine similarity, higher is more similar.
	Score float64

	// Metadata is the record metadata stored at upsert time.
	Metadata domain.RecordMetadata
}
