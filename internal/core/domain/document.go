package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Document represents a source document from the benefits corpus.
// Documents are immutable once ingested: re-ingesting the same URI with
// changed content creates a new version rather than mutating history.
type Document struct {
	// ID is the unique identifier for the document. It is stable across
	// versions of the same URI.
	ID string

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Body is the full text content before segmentation.
	Body string

	// Version is the ingestion version, starting at 1. A re-ingest with
	// unchanged content keeps the version; changed content increments it.
	Version int

	// RetrievedAt is when the document was fetched from its source.
	RetrievedAt time.Time

	// Tags carry corpus metadata such as programme or category labels.
	Tags []string
}

// Chunk represents a bounded, overlap-aware segment of a document.
// It is the unit of indexing, retrieval and citation. A chunk is owned
// exclusively by the document version that produced it.
type Chunk struct {
	// ID is the deterministic content hash, see ChunkID.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Version is the document version this chunk belongs to.
	Version int

	// Ordinal is the position within the document, starting at 0.
	Ordinal int

	// Text is the chunk content.
	Text string

	// Start and End are the rune offsets of Text within the document body.
	Start int
	End   int
}

// ChunkID derives the deterministic identity of a chunk. Re-running
// segmentation on unchanged input must produce identical IDs, so the hash
// covers everything that defines the chunk and nothing more.
func ChunkID(documentID string, version, ordinal int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", documentID, version, ordinal)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// EmbeddingVector is the vector representation of one chunk under one
// embedding model. A model upgrade requires a fresh vector; existing
// vectors are never edited in place.
type EmbeddingVector struct {
	// OwnerChunkID links to the embedded chunk.
	OwnerChunkID string

	// ModelID identifies the embedding model that produced the vector.
	ModelID string

	// Dims is the vector dimensionality.
	Dims int

	// Values is the vector itself.
	Values []float32
}

// RecordMetadata is the metadata persisted alongside a vector so that
// retrieval can rank and attribute results without a store round-trip.
type RecordMetadata struct {
	DocumentID string
	URI        string
	Title      string
	Tags       []string
	Version    int
	Ordinal    int
}

// IndexRecord is the persisted unit in the vector index. An upsert with
// the same ChunkID replaces the prior record atomically.
type IndexRecord struct {
	ChunkID  string
	Vector   []float32
	Metadata RecordMetadata
}
