package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storemem "github.com/benefitsflow/benefits-rag/internal/adapters/driven/storage/memory"
	vecmem "github.com/benefitsflow/benefits-rag/internal/adapters/driven/vector/memory"
	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// stubProvider embeds each text to a scripted unit vector, defaulting to
// the x axis. Gives tests full control over similarity scores.
type stubProvider struct {
	vectors map[string][]float32
}

func (p *stubProvider) EmbedBatch(_ context.Context, texts []string, _ driven.EmbedRole) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := p.vectors[text]; ok {
			out[i] = vec
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int            { return 3 }
func (p *stubProvider) ModelName() string          { return "stub-embed" }
func (p *stubProvider) MaxBatchSize() int          { return 64 }
func (p *stubProvider) Ping(context.Context) error { return nil }
func (p *stubProvider) Close() error               { return nil }

// retrievalFixture wires a retrieval service over in-memory adapters.
type retrievalFixture struct {
	index   *vecmem.Index
	docs    *storemem.DocumentStore
	service *RetrievalService
}

func newRetrievalFixture(t *testing.T, opts ...RetrievalOption) *retrievalFixture {
	t.Helper()

	index, err := vecmem.New(3)
	require.NoError(t, err)
	docs := storemem.NewDocumentStore()
	gateway := fastGateway(&stubProvider{vectors: map[string][]float32{}})

	return &retrievalFixture{
		index:   index,
		docs:    docs,
		service: NewRetrievalService(index, gateway, docs, domain.DefaultLexicon(), opts...),
	}
}

// addChunk indexes one chunk with the given vector and stores its text.
func (f *retrievalFixture) addChunk(
	t *testing.T, docID, uri, title string, version, ordinal int, tags []string,
	text string, vector []float32,
) string {
	t.Helper()
	ctx := context.Background()

	chunkID := domain.ChunkID(docID, version, ordinal, text)
	require.NoError(t, f.docs.SaveDocument(ctx, &domain.Document{
		ID: docID, URI: uri, Title: title, Body: text, Version: version, Tags: tags,
	}))
	require.NoError(t, f.docs.SaveChunks(ctx, []domain.Chunk{{
		ID: chunkID, DocumentID: docID, Version: version, Ordinal: ordinal, Text: text,
	}}))
	require.NoError(t, f.index.Upsert(ctx, []domain.IndexRecord{{
		ChunkID: chunkID,
		Vector:  vector,
		Metadata: domain.RecordMetadata{
			DocumentID: docID, URI: uri, Title: title, Tags: tags,
			Version: version, Ordinal: ordinal,
		},
	}}))
	return chunkID
}

func TestRetrievalService_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query is invalid input", func(t *testing.T) {
		f := newRetrievalFixture(t)

		_, err := f.service.Retrieve(ctx, "   ", nil, 5, 0)

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns hydrated evidence ranked by similarity", func(t *testing.T) {
		f := newRetrievalFixture(t)
		best := f.addChunk(t, "doc-a", "file:///a.md", "Income limits", 1, 0, nil,
			"Income limit details.", []float32{1, 0, 0})
		second := f.addChunk(t, "doc-b", "file:///b.md", "Household size", 1, 0, nil,
			"Household size rules.", []float32{0.7, 0.7, 0})

		evidence, err := f.service.Retrieve(ctx, "income limits", nil, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 2)
		assert.Equal(t, best, evidence[0].ChunkID)
		assert.Equal(t, second, evidence[1].ChunkID)
		assert.Equal(t, "Income limit details.", evidence[0].Text)
		assert.Equal(t, "file:///a.md", evidence[0].Source.URI)
		assert.InDelta(t, 1.0, evidence[0].Similarity, 0.001)
	})

	t.Run("candidates below the similarity floor are dropped", func(t *testing.T) {
		f := newRetrievalFixture(t, WithSimilarityFloor(0.5))
		kept := f.addChunk(t, "doc-a", "file:///a.md", "Relevant", 1, 0, nil,
			"Relevant text.", []float32{1, 0, 0})
		f.addChunk(t, "doc-b", "file:///b.md", "Orthogonal", 1, 0, nil,
			"Unrelated text.", []float32{0, 1, 0})

		evidence, err := f.service.Retrieve(ctx, "question", nil, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 1)
		assert.Equal(t, kept, evidence[0].ChunkID)
	})

	t.Run("no candidate above floor yields empty result without error", func(t *testing.T) {
		f := newRetrievalFixture(t, WithSimilarityFloor(0.99))
		f.addChunk(t, "doc-a", "file:///a.md", "Weak", 1, 0, nil,
			"Weak match.", []float32{0.7, 0.7, 0})

		evidence, err := f.service.Retrieve(ctx, "question", nil, 5, 0)

		require.NoError(t, err)
		assert.Empty(t, evidence)
	})

	t.Run("budget admits chunks whole or not at all", func(t *testing.T) {
		f := newRetrievalFixture(t)
		big := f.addChunk(t, "doc-a", "file:///a.md", "Big", 1, 0, nil,
			"0123456789", []float32{1, 0, 0}) // 10 chars, best match
		small := f.addChunk(t, "doc-b", "file:///b.md", "Small", 1, 0, nil,
			"abc", []float32{0.9, 0.436, 0}) // 3 chars, second

		evidence, err := f.service.Retrieve(ctx, "question", nil, 5, 12)

		require.NoError(t, err)
		require.Len(t, evidence, 1, "the second chunk exceeds the remaining budget and is skipped whole")
		assert.Equal(t, big, evidence[0].ChunkID)
		_ = small
	})

	t.Run("k bounds the number of evidence items", func(t *testing.T) {
		f := newRetrievalFixture(t)
		f.addChunk(t, "doc-a", "file:///a.md", "A", 1, 0, nil, "text a", []float32{1, 0, 0})
		f.addChunk(t, "doc-b", "file:///b.md", "B", 1, 0, nil, "text b", []float32{0.9, 0.436, 0})
		f.addChunk(t, "doc-c", "file:///c.md", "C", 1, 0, nil, "text c", []float32{0.8, 0.6, 0})

		evidence, err := f.service.Retrieve(ctx, "question", nil, 2, 0)

		require.NoError(t, err)
		assert.Len(t, evidence, 2)
	})

	t.Run("deduplicates by document and ordinal", func(t *testing.T) {
		f := newRetrievalFixture(t)
		// Two index records for the same chunk position (stale overlap),
		// the higher-similarity one must win.
		f.addChunk(t, "doc-a", "file:///a.md", "Stale", 1, 0, nil,
			"Old wording.", []float32{0.7, 0.7, 0})
		winner := f.addChunk(t, "doc-a", "file:///a.md", "Fresh", 1, 0, nil,
			"New wording.", []float32{1, 0, 0})

		evidence, err := f.service.Retrieve(ctx, "question", nil, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 1)
		assert.Equal(t, winner, evidence[0].ChunkID)
	})

	t.Run("newer version of the same source outranks older at equal similarity", func(t *testing.T) {
		f := newRetrievalFixture(t)
		f.addChunk(t, "doc-a", "file:///guide.md", "Guide v1", 1, 0, nil,
			"Old guidance.", []float32{1, 0, 0})
		newer := f.addChunk(t, "doc-a", "file:///guide.md", "Guide v2", 2, 1, nil,
			"New guidance.", []float32{1, 0, 0})

		evidence, err := f.service.Retrieve(ctx, "question", nil, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 2)
		assert.Equal(t, newer, evidence[0].ChunkID)
	})

	t.Run("programme tag match boosts ranking", func(t *testing.T) {
		f := newRetrievalFixture(t)
		f.addChunk(t, "doc-a", "file:///generic.md", "General info", 1, 0, nil,
			"General notes.", []float32{0.8, 0.6, 0}) // sim 0.8
		tagged := f.addChunk(t, "doc-b", "file:///calfresh.md", "Food benefits", 1, 0,
			[]string{"calfresh"}, "CalFresh rules.", []float32{0.75, 0.661, 0}) // sim ~0.75

		evidence, err := f.service.Retrieve(ctx, "am I eligible for CalFresh", nil, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 2)
		assert.Equal(t, tagged, evidence[0].ChunkID,
			"tag-boosted candidate should outrank a slightly better raw match")
	})

	t.Run("chunks deleted since indexing are skipped", func(t *testing.T) {
		f := newRetrievalFixture(t)
		// Index a record without storing its chunk.
		require.NoError(t, f.index.Upsert(ctx, []domain.IndexRecord{{
			ChunkID: "orphan",
			Vector:  []float32{1, 0, 0},
			Metadata: domain.RecordMetadata{
				DocumentID: "doc-gone", URI: "file:///gone.md", Version: 1, Ordinal: 0,
			},
		}}))
		kept := f.addChunk(t, "doc-a", "file:///a.md", "Kept", 1, 0, nil,
			"Still here.", []float32{0.9, 0.436, 0})

		evidence, err := f.service.Retrieve(ctx, "question", nil, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 1)
		assert.Equal(t, kept, evidence[0].ChunkID)
	})

	t.Run("prior user turns join the retrieval query", func(t *testing.T) {
		provider := &stubProvider{vectors: map[string][]float32{
			// The concatenated query embeds toward the y axis.
			"how do I apply\nwhat documents do I need": {0, 1, 0},
		}}
		index, err := vecmem.New(3)
		require.NoError(t, err)
		docs := storemem.NewDocumentStore()
		service := NewRetrievalService(index, fastGateway(provider), docs, nil)

		chunkID := domain.ChunkID("doc-a", 1, 0, "Bring pay stubs and ID.")
		require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{{
			ID: chunkID, DocumentID: "doc-a", Version: 1, Ordinal: 0,
			Text: "Bring pay stubs and ID.",
		}}))
		require.NoError(t, index.Upsert(ctx, []domain.IndexRecord{{
			ChunkID: chunkID,
			Vector:  []float32{0, 1, 0},
			Metadata: domain.RecordMetadata{
				DocumentID: "doc-a", URI: "file:///docs.md", Version: 1, Ordinal: 0,
			},
		}}))

		history := []domain.ConversationTurn{
			{Role: domain.RoleUser, Text: "how do I apply"},
			{Role: domain.RoleAssistant, Text: "You can apply online."},
		}
		evidence, err := service.Retrieve(ctx, "what documents do I need", history, 5, 0)

		require.NoError(t, err)
		require.Len(t, evidence, 1)
		assert.InDelta(t, 1.0, evidence[0].Similarity, 0.001,
			"query embedding must reflect prior user turns")
	})
}
