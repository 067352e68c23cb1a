package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driving"
	"github.com/benefitsflow/benefits-rag/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.Assistant = (*ChatService)(nil)

// Default chat tuning.
const (
	// DefaultTopK is how many evidence items one turn may use.
	DefaultTopK = 5

	// DefaultEvidenceBudget caps combined evidence size in characters.
	DefaultEvidenceBudget = 8000

	// DefaultSessionIdle is how long an untouched session survives.
	DefaultSessionIdle = 30 * time.Minute
)

// Retriever turns one conversation turn into ranked, budgeted evidence.
type Retriever interface {
	Retrieve(ctx context.Context, query string, history []domain.ConversationTurn,
		k, evidenceBudget int) ([]domain.Evidence, error)
}

// Synthesizer produces a grounded answer from evidence, with fixed
// degraded answers for outage conditions.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, history []domain.ConversationTurn,
		evidence []domain.Evidence) (*domain.Answer, error)
	RetryAnswer() *domain.Answer
}

// session holds one conversation's state. The mutex serialises turns:
// history ordering is only well-defined when turns never interleave.
type session struct {
	mu         sync.Mutex
	turns      []domain.ConversationTurn
	lastActive time.Time
}

// ChatService answers conversation turns. Sessions live in memory only
// and are pruned after an idle period; no conversation state is ever
// persisted.
type ChatService struct {
	retriever   Retriever
	synthesizer Synthesizer

	mu       sync.Mutex
	sessions map[string]*session

	topK     int
	budget   int
	idleTTL  time.Duration
	now      func() time.Time // test seam
}

// ChatOption configures the chat service.
type ChatOption func(*ChatService)

// WithTopK sets how many evidence items one turn may use.
func WithTopK(k int) ChatOption {
	return func(s *ChatService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithEvidenceBudget caps combined evidence size in characters.
func WithEvidenceBudget(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.budget = n
		}
	}
}

// WithSessionIdle sets the idle lifetime of a session.
func WithSessionIdle(d time.Duration) ChatOption {
	return func(s *ChatService) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// NewChatService creates a chat service.
func NewChatService(retriever Retriever, synthesizer Synthesizer, opts ...ChatOption) *ChatService {
	s := &ChatService{
		retriever:   retriever,
		synthesizer: synthesizer,
		sessions:    make(map[string]*session),
		topK:        DefaultTopK,
		budget:      DefaultEvidenceBudget,
		idleTTL:     DefaultSessionIdle,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnswerTurn processes one turn of the given session.
func (s *ChatService) AnswerTurn(ctx context.Context, sessionID, query string) (*domain.Answer, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session ID", domain.ErrInvalidInput)
	}

	sess := s.getOrCreate(sessionID)
	if !sess.mu.TryLock() {
		return nil, fmt.Errorf("%w: session %s", domain.ErrTurnInProgress, sessionID)
	}
	defer sess.mu.Unlock()

	// Snapshot history before this turn; the current query joins it only
	// after the answer is produced.
	history := make([]domain.ConversationTurn, len(sess.turns))
	copy(history, sess.turns)

	answer := s.answerOnce(ctx, query, history)
	if answer == nil {
		// Only invalid input reaches here; surface it.
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	now := s.now()
	sess.turns = append(sess.turns,
		domain.ConversationTurn{Role: domain.RoleUser, Text: query, Timestamp: now},
		domain.ConversationTurn{Role: domain.RoleAssistant, Text: answer.Text, Timestamp: now},
	)
	sess.lastActive = now

	s.pruneIdle(now)
	return answer, nil
}

// answerOnce runs retrieve + synthesize for one turn, degrading to the
// retry answer when retrieval infrastructure is unavailable.
func (s *ChatService) answerOnce(
	ctx context.Context, query string, history []domain.ConversationTurn,
) *domain.Answer {
	evidence, err := s.retriever.Retrieve(ctx, query, history, s.topK, s.budget)
	if err != nil {
		if isInvalidInput(err) {
			return nil
		}
		// Transient retrieval failure after retries: the user still gets
		// a response, clearly labeled as such.
		logger.Warn("Retrieval failed, degrading to retry answer: %v", err)
		return s.synthesizer.RetryAnswer()
	}

	answer, err := s.synthesizer.Synthesize(ctx, query, history, evidence)
	if err != nil {
		if isInvalidInput(err) {
			return nil
		}
		logger.Warn("Synthesis failed, degrading to retry answer: %v", err)
		return s.synthesizer.RetryAnswer()
	}
	return answer
}

// History returns a copy of the session's turns so far, oldest first.
func (s *ChatService) History(sessionID string) []domain.ConversationTurn {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]domain.ConversationTurn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// getOrCreate returns the session, creating it on first use.
func (s *ChatService) getOrCreate(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{lastActive: s.now()}
		s.sessions[sessionID] = sess
	}
	return sess
}

// pruneIdle drops sessions idle longer than the TTL. Sessions currently
// processing a turn hold their own lock and are skipped.
func (s *ChatService) pruneIdle(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := now.Sub(sess.lastActive)
		sess.mu.Unlock()
		if idle > s.idleTTL {
			delete(s.sessions, id)
		}
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput)
}
