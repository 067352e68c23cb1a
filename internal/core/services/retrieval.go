package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
	"github.com/benefitsflow/benefits-rag/internal/logger"
)

// Default retrieval tuning.
const (
	// DefaultHistoryTurns is how many prior user turns join the query.
	DefaultHistoryTurns = 3

	// DefaultOverfetchFactor is the multiple of k fetched before
	// re-ranking and deduplication.
	DefaultOverfetchFactor = 2

	// DefaultSimilarityFloor is the minimum raw similarity a candidate
	// must clear to count as grounded evidence.
	DefaultSimilarityFloor = 0.25

	// DefaultRecencyWeight scales the boost for newer document versions.
	DefaultRecencyWeight = 0.1

	// DefaultTagBoost multiplies the score of candidates whose tags match
	// a programme mentioned in the conversation.
	DefaultTagBoost = 1.2
)

// RetrievalService turns a conversation turn into ranked, budgeted
// evidence. It is stateless and safe to share across sessions.
type RetrievalService struct {
	index   driven.VectorIndex
	gateway *EmbeddingGateway
	docs    driven.DocumentStore
	lexicon *domain.Lexicon

	historyTurns  int
	overfetch     int
	floor         float64
	recencyWeight float64
	tagBoost      float64
}

// RetrievalOption configures the retrieval service.
type RetrievalOption func(*RetrievalService)

// WithHistoryTurns sets how many prior user turns join the retrieval query.
func WithHistoryTurns(n int) RetrievalOption {
	return func(s *RetrievalService) {
		if n >= 0 {
			s.historyTurns = n
		}
	}
}

// WithOverfetchFactor sets the candidate overfetch multiple.
func WithOverfetchFactor(n int) RetrievalOption {
	return func(s *RetrievalService) {
		if n >= 1 {
			s.overfetch = n
		}
	}
}

// WithSimilarityFloor sets the minimum raw similarity for evidence.
func WithSimilarityFloor(f float64) RetrievalOption {
	return func(s *RetrievalService) {
		if f >= 0 {
			s.floor = f
		}
	}
}

// WithRecencyWeight sets the version-recency boost weight.
func WithRecencyWeight(w float64) RetrievalOption {
	return func(s *RetrievalService) {
		if w >= 0 {
			s.recencyWeight = w
		}
	}
}

// WithTagBoost sets the multiplier for programme tag matches.
func WithTagBoost(b float64) RetrievalOption {
	return func(s *RetrievalService) {
		if b >= 1 {
			s.tagBoost = b
		}
	}
}

// NewRetrievalService creates a retrieval service. The lexicon may be nil
// to disable tag boosting.
func NewRetrievalService(
	index driven.VectorIndex,
	gateway *EmbeddingGateway,
	docs driven.DocumentStore,
	lexicon *domain.Lexicon,
	opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		index:         index,
		gateway:       gateway,
		docs:          docs,
		lexicon:       lexicon,
		historyTurns:  DefaultHistoryTurns,
		overfetch:     DefaultOverfetchFactor,
		floor:         DefaultSimilarityFloor,
		recencyWeight: DefaultRecencyWeight,
		tagBoost:      DefaultTagBoost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns ranked evidence for one conversation turn, at most k
// items whose combined text stays within evidenceBudget characters.
// An empty result means no candidate cleared the similarity floor; it is
// not an error, and the synthesizer must answer "no grounded evidence".
func (s *RetrievalService) Retrieve(
	ctx context.Context,
	query string,
	history []domain.ConversationTurn,
	k, evidenceBudget int,
) ([]domain.Evidence, error) {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = 5
	}

	// Query reformulation is a plain concatenation of recent user turns,
	// not a free rewrite, so retrieval stays deterministic and auditable.
	retrievalQuery := s.buildQuery(query, history)
	logger.Debug("Retrieval query: %q", retrievalQuery)

	vectors, err := s.gateway.Embed(ctx, []string{retrievalQuery}, driven.EmbedRoleQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Query(ctx, vectors[0], k*s.overfetch, driven.QueryFilter{})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	logger.Debug("Index returned %d candidates (overfetch %dx)", len(hits), s.overfetch)

	programs := s.conversationPrograms(query, history)
	candidates := s.rerank(hits, programs)
	candidates = dedupeByChunkPosition(candidates)

	evidence := s.selectWithinBudget(ctx, candidates, k, evidenceBudget)
	logger.Info("Selected %d evidence items", len(evidence))
	return evidence, nil
}

// buildQuery concatenates the last historyTurns user turns with the
// current query, oldest first.
func (s *RetrievalService) buildQuery(query string, history []domain.ConversationTurn) string {
	var userTurns []string
	for _, turn := range history {
		if turn.Role == domain.RoleUser {
			userTurns = append(userTurns, turn.Text)
		}
	}
	if len(userTurns) > s.historyTurns {
		userTurns = userTurns[len(userTurns)-s.historyTurns:]
	}
	return strings.Join(append(userTurns, query), "\n")
}

// conversationPrograms derives programme tags from the conversation so
// far. Used only for boosting, never for filtering.
func (s *RetrievalService) conversationPrograms(
	query string, history []domain.ConversationTurn,
) []string {
	if s.lexicon == nil {
		return nil
	}
	texts := []string{query}
	for _, turn := range history {
		if turn.Role == domain.RoleUser {
			texts = append(texts, turn.Text)
		}
	}
	return s.lexicon.Match(texts...)
}

// candidate pairs a vector hit with its re-ranked score.
type candidate struct {
	hit   driven.VectorHit
	score float64
}

// rerank applies the recency and tag-match boosts on top of similarity.
func (s *RetrievalService) rerank(hits []driven.VectorHit, programs []string) []candidate {
	// Newer versions of the same URI outrank older ones: the boost decays
	// with the version-age rank relative to the newest version seen.
	newest := make(map[string]int)
	for _, hit := range hits {
		if hit.Metadata.Version > newest[hit.Metadata.URI] {
			newest[hit.Metadata.URI] = hit.Metadata.Version
		}
	}

	wanted := make(map[string]bool, len(programs))
	for _, p := range programs {
		wanted[strings.ToLower(p)] = true
	}

	candidates := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		score := hit.Score

		age := newest[hit.Metadata.URI] - hit.Metadata.Version
		score *= 1 + s.recencyWeight/float64(1+age)

		if len(wanted) > 0 && s.tagsMatch(hit.Metadata, wanted) {
			score *= s.tagBoost
		}

		candidates = append(candidates, candidate{hit: hit, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.hit.Metadata.Version != b.hit.Metadata.Version {
			return a.hit.Metadata.Version > b.hit.Metadata.Version
		}
		return a.hit.ChunkID < b.hit.ChunkID
	})
	return candidates
}

// tagsMatch reports whether any record tag or the title names a wanted
// programme.
func (s *RetrievalService) tagsMatch(meta domain.RecordMetadata, wanted map[string]bool) bool {
	for _, tag := range meta.Tags {
		if wanted[strings.ToLower(tag)] {
			return true
		}
	}
	for p := range wanted {
		if strings.Contains(strings.ToLower(meta.Title), p) {
			return true
		}
	}
	return false
}

// dedupeByChunkPosition keeps at most one candidate per (documentID,
// ordinal). Overlapping duplicates from the segmenter's overlap window
// resolve to the higher-scored occurrence. Input must be sorted by
// descending score.
func dedupeByChunkPosition(candidates []candidate) []candidate {
	type position struct {
		documentID string
		ordinal    int
	}
	seen := make(map[position]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		pos := position{c.hit.Metadata.DocumentID, c.hit.Metadata.Ordinal}
		if seen[pos] {
			continue
		}
		seen[pos] = true
		out = append(out, c)
	}
	return out
}

// selectWithinBudget walks candidates in rank order, drops those below
// the similarity floor, hydrates chunk text and admits chunks whole until
// the character budget or k is reached. Inclusion is all-or-nothing per
// chunk: a chunk that does not fit is skipped, never truncated.
func (s *RetrievalService) selectWithinBudget(
	ctx context.Context, candidates []candidate, k, budget int,
) []domain.Evidence {
	evidence := make([]domain.Evidence, 0, k)
	used := 0

	for _, c := range candidates {
		if len(evidence) >= k {
			break
		}
		if c.hit.Score < s.floor {
			continue
		}

		chunk, err := s.docs.GetChunk(ctx, c.hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Chunk was deleted since indexing, skip it.
				continue
			}
			logger.Warn("Hydrate chunk %s: %v", c.hit.ChunkID, err)
			continue
		}

		if budget > 0 && used+len(chunk.Text) > budget {
			continue
		}
		used += len(chunk.Text)

		evidence = append(evidence, domain.Evidence{
			ChunkID:    c.hit.ChunkID,
			Score:      c.score,
			Similarity: c.hit.Score,
			Text:       chunk.Text,
			Source:     c.hit.Metadata,
		})
	}

	return evidence
}
