package driven

import "context"

// GenerationService produces a grounded answer from a bounded prompt.
// The synthesizer makes exactly one Complete call per attempt; there is
// no hidden multi-step agentic loop behind this interface.
//
// Implementations may include:
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//   - Ollama (local models)
type GenerationService interface {
	// Complete generates a reply to the conversation. The returned text
	// may embed citation markers in the fixed [n] syntax, referencing the
	// n-th evidence item of the prompt by position.
	Complete(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// GenerateOptions configures generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
