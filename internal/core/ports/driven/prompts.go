package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a
	// sensible default or an error, depending on whether the prompt is
	// required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next
	// access. Useful when prompts have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswerSystem is the system prompt for grounded answering.
	// It instructs the model to answer only from the supplied context and
	// to cite sources with [n] markers. No format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptFallbackAnswer is the fixed answer returned when no evidence
	// cleared the similarity floor. No format placeholders.
	PromptFallbackAnswer = "fallback_answer"

	// PromptRetryAnswer is the fixed answer returned when the generation
	// provider stayed unavailable after retries. No format placeholders.
	PromptRetryAnswer = "retry_answer"
)
