package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingExhausted(t *testing.T) {
	t.Run("unwraps to ErrEmbeddingUnavailable", func(t *testing.T) {
		err := &EmbeddingExhausted{
			Vectors: [][]float32{{1}, nil},
			Cause:   errors.New("rate limited"),
		}

		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})

	t.Run("message counts embedded texts", func(t *testing.T) {
		err := &EmbeddingExhausted{
			Vectors: [][]float32{{1}, {2}, nil},
			Cause:   errors.New("boom"),
		}

		assert.Contains(t, err.Error(), "2/3")
		assert.Contains(t, err.Error(), "boom")
	})
}
