package driving

import (
	"context"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// Assistant answers conversation turns grounded in the indexed corpus.
type Assistant interface {
	// AnswerTurn processes one turn of the given session. Sessions are
	// single-flight: a concurrent turn for the same session fails with
	// domain.ErrTurnInProgress. The user always receives an Answer for
	// degraded conditions (no evidence, provider outage); an error return
	// means the turn was not processed at all.
	AnswerTurn(ctx context.Context, sessionID, query string) (*domain.Answer, error)

	// History returns a copy of the session's turns so far, oldest first.
	History(sessionID string) []domain.ConversationTurn
}
