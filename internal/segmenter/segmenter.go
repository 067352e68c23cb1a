// Package segmenter splits documents into overlapping chunks with stable
// identity. Segmentation is a pure function of the document body and the
// configured lengths: re-running it on unchanged input yields byte-identical
// chunk boundaries and therefore identical chunk IDs.
package segmenter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// DefaultMaxLength is the default chunk length in runes.
const DefaultMaxLength = 1000

// DefaultOverlap is the default overlap between adjacent chunks in runes.
const DefaultOverlap = 150

// Segmenter splits document bodies into overlapping chunks.
type Segmenter struct {
	maxLength int
	overlap   int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithMaxLength sets the maximum chunk length in runes.
func WithMaxLength(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(n int) Option {
	return func(s *Segmenter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// New creates a segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		maxLength: DefaultMaxLength,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits the document body into chunks. Boundaries prefer
// paragraph breaks, then sentence ends, then whitespace, falling back to
// a hard cut only when no boundary exists within the length budget.
//
// Fails wrapping domain.ErrSegmentation when the body is empty or the
// configured overlap is not smaller than the maximum length.
func (s *Segmenter) Segment(doc *domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Body) == "" {
		return nil, fmt.Errorf("%w: document %q has empty body", domain.ErrSegmentation, doc.URI)
	}
	if s.maxLength <= s.overlap {
		return nil, fmt.Errorf("%w: max length %d must exceed overlap %d",
			domain.ErrSegmentation, s.maxLength, s.overlap)
	}

	runes := []rune(doc.Body)
	total := len(runes)

	estimated := total/(s.maxLength-s.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	for ordinal := 0; start < total; ordinal++ {
		end := start + s.maxLength
		if end >= total {
			end = total
		} else {
			end = s.cut(runes, start, end)
		}

		text := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, doc.Version, ordinal, text),
			DocumentID: doc.ID,
			Version:    doc.Version,
			Ordinal:    ordinal,
			Text:       text,
			Start:      start,
			End:        end,
		})

		if end >= total {
			break
		}
		start = end - s.overlap
	}

	return chunks, nil
}

// cut picks the break position within (start+overlap, limit]. Restricting
// the search to positions past the overlap guarantees forward progress of
// at least one rune per chunk.
func (s *Segmenter) cut(runes []rune, start, limit int) int {
	min := start + s.overlap + 1
	if min >= limit {
		return limit
	}

	if p := lastParagraphBreak(runes, min, limit); p > 0 {
		return p
	}
	if p := lastSentenceEnd(runes, min, limit); p > 0 {
		return p
	}
	if p := lastWhitespace(runes, min, limit); p > 0 {
		return p
	}
	return limit
}

// lastParagraphBreak returns the position just after the last blank line
// in [min, limit), or 0 if there is none.
func lastParagraphBreak(runes []rune, min, limit int) int {
	for i := limit - 1; i > min; i-- {
		if runes[i-1] == '\n' && runes[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

// lastSentenceEnd returns the position just after the last sentence
// terminator followed by whitespace in [min, limit), or 0 if none.
func lastSentenceEnd(runes []rune, min, limit int) int {
	for i := limit - 1; i > min; i-- {
		r := runes[i-1]
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}

// lastWhitespace returns the position just after the last whitespace rune
// in [min, limit), or 0 if none.
func lastWhitespace(runes []rune, min, limit int) int {
	for i := limit - 1; i > min; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}
