// Package memory provides in-memory implementations of the storage ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// versionKey identifies one document version.
type versionKey struct {
	id      string
	version int
}

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[versionKey]domain.Document
	chunks    map[versionKey][]domain.Chunk
	byChunkID map[string]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[versionKey]domain.Document),
		chunks:    make(map[versionKey][]domain.Chunk),
		byChunkID: make(map[string]domain.Chunk),
	}
}

// SaveDocument stores a document version.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[versionKey{doc.ID, doc.Version}] = *doc
	return nil
}

// SaveChunks stores the chunks of one document version.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := versionKey{chunks[0].DocumentID, chunks[0].Version}
	// Replace wholesale: drop prior chunk IDs for this version first.
	for _, old := range s.chunks[key] {
		delete(s.byChunkID, old.ID)
	}
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Ordinal < stored[j].Ordinal })
	s.chunks[key] = stored
	for _, c := range stored {
		s.byChunkID[c.ID] = c
	}
	return nil
}

// GetDocument retrieves the latest version of a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Document
	for key := range s.documents {
		if key.id != id {
			continue
		}
		doc := s.documents[key]
		if latest == nil || doc.Version > latest.Version {
			latest = &doc
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

// GetLatestByURI retrieves the latest document version for a URI.
func (s *DocumentStore) GetLatestByURI(_ context.Context, uri string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Document
	for key := range s.documents {
		doc := s.documents[key]
		if doc.URI != uri {
			continue
		}
		if latest == nil || doc.Version > latest.Version {
			latest = &doc
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.byChunkID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// GetChunks retrieves all chunks of one document version, ordered by ordinal.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string, version int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[versionKey{documentID, version}]
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// DeleteVersion removes one document version and its chunks.
func (s *DocumentStore) DeleteVersion(_ context.Context, documentID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey{documentID, version}
	for _, c := range s.chunks[key] {
		delete(s.byChunkID, c.ID)
	}
	delete(s.chunks, key)
	delete(s.documents, key)
	return nil
}

// Close releases resources.
func (s *DocumentStore) Close() error {
	return nil
}
