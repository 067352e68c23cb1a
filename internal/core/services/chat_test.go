package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// fakeRetriever returns scripted evidence, optionally blocking until
// released to exercise the single-flight guarantee.
type fakeRetriever struct {
	mu       sync.Mutex
	evidence []domain.Evidence
	err      error
	block    chan struct{} // when set, Retrieve waits for it to close
	calls    int
	lastHist []domain.ConversationTurn
}

func (f *fakeRetriever) Retrieve(
	_ context.Context, _ string, history []domain.ConversationTurn, _, _ int,
) ([]domain.Evidence, error) {
	f.mu.Lock()
	f.calls++
	f.lastHist = history
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.evidence, nil
}

// fakeSynthesizer returns a canned grounded answer.
type fakeSynthesizer struct {
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(
	_ context.Context, query string, _ []domain.ConversationTurn, _ []domain.Evidence,
) (*domain.Answer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Text: "answer to: " + query, Grounded: true}, nil
}

func (f *fakeSynthesizer) RetryAnswer() *domain.Answer {
	return &domain.Answer{Text: "please try again"}
}

func TestChatService_AnswerTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("answers and records both turns", func(t *testing.T) {
		chat := NewChatService(&fakeRetriever{}, &fakeSynthesizer{})

		answer, err := chat.AnswerTurn(ctx, "s1", "am I eligible")

		require.NoError(t, err)
		assert.Equal(t, "answer to: am I eligible", answer.Text)

		history := chat.History("s1")
		require.Len(t, history, 2)
		assert.Equal(t, domain.RoleUser, history[0].Role)
		assert.Equal(t, "am I eligible", history[0].Text)
		assert.Equal(t, domain.RoleAssistant, history[1].Role)
	})

	t.Run("history snapshot excludes the current turn", func(t *testing.T) {
		retriever := &fakeRetriever{}
		chat := NewChatService(retriever, &fakeSynthesizer{})

		_, err := chat.AnswerTurn(ctx, "s1", "first question")
		require.NoError(t, err)
		_, err = chat.AnswerTurn(ctx, "s1", "second question")
		require.NoError(t, err)

		require.Len(t, retriever.lastHist, 2, "second turn sees only the first exchange")
		assert.Equal(t, "first question", retriever.lastHist[0].Text)
	})

	t.Run("empty session ID is invalid input", func(t *testing.T) {
		chat := NewChatService(&fakeRetriever{}, &fakeSynthesizer{})

		_, err := chat.AnswerTurn(ctx, "", "question")

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("concurrent turn on the same session is rejected", func(t *testing.T) {
		block := make(chan struct{})
		retriever := &fakeRetriever{block: block}
		chat := NewChatService(retriever, &fakeSynthesizer{})

		firstDone := make(chan error, 1)
		go func() {
			_, err := chat.AnswerTurn(ctx, "s1", "slow question")
			firstDone <- err
		}()

		// Wait until the first turn holds the session.
		require.Eventually(t, func() bool {
			retriever.mu.Lock()
			defer retriever.mu.Unlock()
			return retriever.calls == 1
		}, time.Second, time.Millisecond)

		_, err := chat.AnswerTurn(ctx, "s1", "impatient question")
		assert.ErrorIs(t, err, domain.ErrTurnInProgress)

		close(block)
		require.NoError(t, <-firstDone)
	})

	t.Run("other sessions proceed while one is busy", func(t *testing.T) {
		block := make(chan struct{})
		retriever := &fakeRetriever{block: block}
		chat := NewChatService(retriever, &fakeSynthesizer{})

		go func() {
			_, _ = chat.AnswerTurn(ctx, "busy", "slow question")
		}()
		require.Eventually(t, func() bool {
			retriever.mu.Lock()
			defer retriever.mu.Unlock()
			return retriever.calls == 1
		}, time.Second, time.Millisecond)

		// The blocked retriever is shared, so release it for the second
		// session's turn before asserting.
		close(block)

		answer, err := chat.AnswerTurn(ctx, "other", "quick question")
		require.NoError(t, err)
		assert.Equal(t, "answer to: quick question", answer.Text)
	})

	t.Run("retrieval outage degrades to the retry answer", func(t *testing.T) {
		retriever := &fakeRetriever{err: fmt.Errorf("embed query: %w", domain.ErrEmbeddingUnavailable)}
		chat := NewChatService(retriever, &fakeSynthesizer{})

		answer, err := chat.AnswerTurn(ctx, "s1", "question")

		require.NoError(t, err)
		assert.Equal(t, "please try again", answer.Text)
	})

	t.Run("synthesis failure degrades to the retry answer", func(t *testing.T) {
		synth := &fakeSynthesizer{err: errors.New("unexpected")}
		chat := NewChatService(&fakeRetriever{}, synth)

		answer, err := chat.AnswerTurn(ctx, "s1", "question")

		require.NoError(t, err)
		assert.Equal(t, "please try again", answer.Text)
	})

	t.Run("invalid query surfaces as an error", func(t *testing.T) {
		retriever := &fakeRetriever{err: fmt.Errorf("%w: empty query", domain.ErrInvalidInput)}
		chat := NewChatService(retriever, &fakeSynthesizer{})

		_, err := chat.AnswerTurn(ctx, "s1", "")

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("idle sessions are pruned", func(t *testing.T) {
		chat := NewChatService(&fakeRetriever{}, &fakeSynthesizer{},
			WithSessionIdle(10*time.Minute))

		current := time.Now()
		chat.now = func() time.Time { return current }

		_, err := chat.AnswerTurn(ctx, "old", "question")
		require.NoError(t, err)

		// A later turn on another session triggers pruning.
		current = current.Add(time.Hour)
		_, err = chat.AnswerTurn(ctx, "new", "question")
		require.NoError(t, err)

		assert.Nil(t, chat.History("old"), "idle session should be gone")
		assert.Len(t, chat.History("new"), 2)
	})
}
