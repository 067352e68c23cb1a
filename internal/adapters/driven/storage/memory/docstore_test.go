package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

func saveDoc(t *testing.T, s *DocumentStore, id, uri string, version int) {
	t.Helper()
	require.NoError(t, s.SaveDocument(context.Background(), &domain.Document{
		ID: id, URI: uri, Title: "Title " + id, Body: "body", Version: version,
	}))
}

func TestDocumentStore_Documents(t *testing.T) {
	ctx := context.Background()

	t.Run("GetDocument returns the latest version", func(t *testing.T) {
		s := NewDocumentStore()
		saveDoc(t, s, "doc-a", "file:///a.md", 1)
		saveDoc(t, s, "doc-a", "file:///a.md", 2)
		saveDoc(t, s, "doc-b", "file:///b.md", 5)

		doc, err := s.GetDocument(ctx, "doc-a")

		require.NoError(t, err)
		assert.Equal(t, 2, doc.Version)
	})

	t.Run("GetDocument of unknown ID is not found", func(t *testing.T) {
		s := NewDocumentStore()

		_, err := s.GetDocument(ctx, "missing")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetLatestByURI picks the highest version for the URI", func(t *testing.T) {
		s := NewDocumentStore()
		saveDoc(t, s, "doc-a", "file:///a.md", 1)
		saveDoc(t, s, "doc-a", "file:///a.md", 3)
		saveDoc(t, s, "doc-b", "file:///b.md", 9)

		doc, err := s.GetLatestByURI(ctx, "file:///a.md")

		require.NoError(t, err)
		assert.Equal(t, "doc-a", doc.ID)
		assert.Equal(t, 3, doc.Version)
	})

	t.Run("GetLatestByURI of unknown URI is not found", func(t *testing.T) {
		s := NewDocumentStore()
		saveDoc(t, s, "doc-a", "file:///a.md", 1)

		_, err := s.GetLatestByURI(ctx, "file:///other.md")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestDocumentStore_Chunks(t *testing.T) {
	ctx := context.Background()

	chunk := func(id, docID string, version, ordinal int) domain.Chunk {
		return domain.Chunk{ID: id, DocumentID: docID, Version: version, Ordinal: ordinal, Text: "text " + id}
	}

	t.Run("stores and orders by ordinal", func(t *testing.T) {
		s := NewDocumentStore()
		require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{
			chunk("c2", "doc-a", 1, 2),
			chunk("c0", "doc-a", 1, 0),
			chunk("c1", "doc-a", 1, 1),
		}))

		chunks, err := s.GetChunks(ctx, "doc-a", 1)

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, []string{"c0", "c1", "c2"}, []string{chunks[0].ID, chunks[1].ID, chunks[2].ID})
	})

	t.Run("replaces a version wholesale", func(t *testing.T) {
		s := NewDocumentStore()
		require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{
			chunk("old-0", "doc-a", 1, 0),
			chunk("old-1", "doc-a", 1, 1),
		}))
		require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{
			chunk("new-0", "doc-a", 1, 0),
		}))

		chunks, err := s.GetChunks(ctx, "doc-a", 1)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "new-0", chunks[0].ID)

		_, err = s.GetChunk(ctx, "old-1")
		assert.ErrorIs(t, err, domain.ErrNotFound, "replaced chunk IDs must be forgotten")
	})

	t.Run("GetChunk resolves by ID across documents", func(t *testing.T) {
		s := NewDocumentStore()
		require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{chunk("a0", "doc-a", 1, 0)}))
		require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{chunk("b0", "doc-b", 1, 0)}))

		got, err := s.GetChunk(ctx, "b0")

		require.NoError(t, err)
		assert.Equal(t, "doc-b", got.DocumentID)
		assert.Equal(t, "text b0", got.Text)
	})

	t.Run("empty save is a no-op", func(t *testing.T) {
		s := NewDocumentStore()
		assert.NoError(t, s.SaveChunks(ctx, nil))
	})
}

func TestDocumentStore_DeleteVersion(t *testing.T) {
	ctx := context.Background()

	s := NewDocumentStore()
	saveDoc(t, s, "doc-a", "file:///a.md", 1)
	saveDoc(t, s, "doc-a", "file:///a.md", 2)
	require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{
		{ID: "v1-0", DocumentID: "doc-a", Version: 1, Ordinal: 0, Text: "old"},
	}))
	require.NoError(t, s.SaveChunks(ctx, []domain.Chunk{
		{ID: "v2-0", DocumentID: "doc-a", Version: 2, Ordinal: 0, Text: "new"},
	}))

	require.NoError(t, s.DeleteVersion(ctx, "doc-a", 1))

	doc, err := s.GetDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)

	gone, err := s.GetChunks(ctx, "doc-a", 1)
	require.NoError(t, err)
	assert.Empty(t, gone)

	_, err = s.GetChunk(ctx, "v1-0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	kept, err := s.GetChunks(ctx, "doc-a", 2)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "v2-0", kept[0].ID)
}
