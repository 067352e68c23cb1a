package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

func doc(body string) *domain.Document {
	return &domain.Document{
		ID:      "doc-1",
		URI:     "file:///corpus/test.md",
		Version: 1,
		Body:    body,
	}
}

func TestSegmenter_Segment(t *testing.T) {
	t.Run("short document yields one chunk", func(t *testing.T) {
		s := New()

		chunks, err := s.Segment(doc("A short eligibility note."))

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "A short eligibility note.", chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Ordinal)
		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, len([]rune(chunks[0].Text)), chunks[0].End)
	})

	t.Run("empty body fails segmentation", func(t *testing.T) {
		s := New()

		_, err := s.Segment(doc("   \n\t "))

		assert.ErrorIs(t, err, domain.ErrSegmentation)
	})

	t.Run("overlap not smaller than max length fails", func(t *testing.T) {
		s := New(WithMaxLength(100), WithOverlap(100))

		_, err := s.Segment(doc("some body"))

		assert.ErrorIs(t, err, domain.ErrSegmentation)
	})

	t.Run("prefers paragraph boundaries", func(t *testing.T) {
		first := strings.Repeat("a", 60)
		second := strings.Repeat("b", 60)
		s := New(WithMaxLength(100), WithOverlap(10))

		chunks, err := s.Segment(doc(first + "\n\n" + second))

		require.NoError(t, err)
		require.GreaterOrEqual(t, len(chunks), 2)
		assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"),
			"first chunk should end at the paragraph break, got %q", chunks[0].Text)
	})

	t.Run("falls back to sentence boundary", func(t *testing.T) {
		body := "First sentence about CalFresh applications. Second sentence about income limits and household size rules."
		s := New(WithMaxLength(60), WithOverlap(10))

		chunks, err := s.Segment(doc(body))

		require.NoError(t, err)
		require.GreaterOrEqual(t, len(chunks), 2)
		assert.True(t, strings.HasSuffix(strings.TrimRight(chunks[0].Text, " "), "."),
			"first chunk should end at a sentence, got %q", chunks[0].Text)
	})

	t.Run("hard cut when no boundary exists", func(t *testing.T) {
		body := strings.Repeat("x", 250)
		s := New(WithMaxLength(100), WithOverlap(20))

		chunks, err := s.Segment(doc(body))

		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		assert.Len(t, []rune(chunks[0].Text), 100)
	})

	t.Run("adjacent chunks overlap by the configured amount", func(t *testing.T) {
		body := strings.Repeat("y", 300)
		s := New(WithMaxLength(100), WithOverlap(25))

		chunks, err := s.Segment(doc(body))

		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		for i := 1; i < len(chunks); i++ {
			assert.Equal(t, chunks[i-1].End-25, chunks[i].Start)
		}
	})

	t.Run("every position is covered and ordinals are sequential", func(t *testing.T) {
		body := strings.Repeat("The CalFresh program helps households buy food. ", 40)
		s := New(WithMaxLength(200), WithOverlap(40))

		chunks, err := s.Segment(doc(body))

		require.NoError(t, err)
		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, len([]rune(body)), chunks[len(chunks)-1].End)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Ordinal)
			if i > 0 {
				assert.Less(t, chunks[i].Start, chunks[i-1].End, "chunks should overlap")
				assert.Greater(t, chunks[i].Start, chunks[i-1].Start, "progress is guaranteed")
			}
		}
	})

	t.Run("re-segmentation yields identical chunk IDs", func(t *testing.T) {
		body := strings.Repeat("Medi-Cal covers doctor visits and prescriptions. ", 30)
		s := New(WithMaxLength(150), WithOverlap(30))

		first, err := s.Segment(doc(body))
		require.NoError(t, err)
		second, err := s.Segment(doc(body))
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})

	t.Run("multibyte runes count as single units", func(t *testing.T) {
		body := strings.Repeat("ä", 150)
		s := New(WithMaxLength(100), WithOverlap(10))

		chunks, err := s.Segment(doc(body))

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Len(t, []rune(chunks[0].Text), 100)
	})
}
