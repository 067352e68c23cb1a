package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSegmentation indicates a document could not be segmented.
	// Not retried: the input or configuration must be fixed first.
	ErrSegmentation = errors.New("segmentation failed")

	// ErrEmbeddingUnavailable indicates the embedding provider kept
	// failing after retries. Transient; see EmbeddingExhausted for the
	// partial-success detail.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrIndexUnavailable indicates a transient vector index failure.
	// Callers retry with backoff.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexCorrupt indicates structural damage in the vector index.
	// The affected document versions must be re-ingested; never retried
	// blindly.
	ErrIndexCorrupt = errors.New("vector index corrupt")

	// ErrGenerationUnavailable indicates the generation provider kept
	// failing after retries. Surfaced to the user as a "try again"
	// answer, never as a crash.
	ErrGenerationUnavailable = errors.New("generation provider unavailable")

	// ErrTurnInProgress indicates a session is already processing a turn.
	// Turns within a session are single-flight to keep history ordering
	// well-defined.
	ErrTurnInProgress = errors.New("turn already in progress")
)

// EmbeddingExhausted reports retry exhaustion part-way through a batch.
// Vectors is parallel to the input texts; nil entries were not embedded.
// Callers can persist the non-nil prefix and retry only the remainder, so
// nothing already embedded is lost or billed twice.
type EmbeddingExhausted struct {
	Vectors [][]float32
	Cause   error
}

// Error implements the error interface.
func (e *EmbeddingExhausted) Error() string {
	embedded := 0
	for _, v := range e.Vectors {
		if v != nil {
			embedded++
		}
	}
	return fmt.Sprintf("embedding exhausted after %d/%d texts: %v",
		embedded, len(e.Vectors), e.Cause)
}

// Unwrap makes errors.Is(err, ErrEmbeddingUnavailable) hold.
func (e *EmbeddingExhausted) Unwrap() error {
	return ErrEmbeddingUnavailable
}
