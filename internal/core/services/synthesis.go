package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
	"github.com/benefitsflow/benefits-rag/internal/logger"
)

// Default synthesis tuning.
const (
	// DefaultContextLimit bounds the assembled prompt in characters.
	DefaultContextLimit = 24000

	// DefaultSynthesisHistoryTurns is how many recent turns join the
	// prompt.
	DefaultSynthesisHistoryTurns = 6

	// DefaultGenerationAttempts bounds retries against a flapping
	// generation provider before degrading to the retry answer.
	DefaultGenerationAttempts = 2

	// DefaultMaxTokens caps the generated answer length.
	DefaultMaxTokens = 600
)

// Embedded default prompts, overridable through the prompt store.
const (
	defaultAnswerSystem = `You are BenefitsFlow, an assistant for California public benefits programs.
Answer ONLY from the numbered context passages provided. Cite every claim
with the passage number in square brackets, like [1] or [2]. If the context
does not contain the answer, say you could not find it in the available
sources. Never invent programs, amounts, phone numbers or deadlines.`

	defaultFallbackAnswer = `I couldn't find grounded information about that in the benefits documents I have. Could you rephrase the question, or ask about a specific program such as CalFresh, Medi-Cal or Unemployment Insurance?`

	defaultRetryAnswer = `I'm having trouble reaching the answer service right now. Please try again in a moment.`
)

// citationMarker matches positional citation markers like [3].
var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// SynthesisService assembles a bounded prompt from evidence and history,
// invokes the generation provider once per attempt, and validates every
// citation against the evidence actually supplied. It is stateless and
// safe to share across sessions.
type SynthesisService struct {
	llm     driven.GenerationService
	prompts driven.PromptStore
	lexicon *domain.Lexicon

	contextLimit int
	historyTurns int
	maxAttempts  int
	maxTokens    int
	temperature  float64
}

// SynthesisOption configures the synthesis service.
type SynthesisOption func(*SynthesisService)

// WithContextLimit caps the assembled prompt size in characters.
func WithContextLimit(n int) SynthesisOption {
	return func(s *SynthesisService) {
		if n > 0 {
			s.contextLimit = n
		}
	}
}

// WithSynthesisHistoryTurns sets how many recent turns join the prompt.
func WithSynthesisHistoryTurns(n int) SynthesisOption {
	return func(s *SynthesisService) {
		if n >= 0 {
			s.historyTurns = n
		}
	}
}

// WithGenerationAttempts bounds generation retries.
func WithGenerationAttempts(n int) SynthesisOption {
	return func(s *SynthesisService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithMaxTokens caps the generated answer length.
func WithMaxTokens(n int) SynthesisOption {
	return func(s *SynthesisService) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float64) SynthesisOption {
	return func(s *SynthesisService) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// NewSynthesisService creates a synthesis service. The prompt store and
// lexicon may be nil; embedded defaults and an empty lexicon apply.
func NewSynthesisService(
	llm driven.GenerationService,
	prompts driven.PromptStore,
	lexicon *domain.Lexicon,
	opts ...SynthesisOption,
) *SynthesisService {
	s := &SynthesisService{
		llm:          llm,
		prompts:      prompts,
		lexicon:      lexicon,
		contextLimit: DefaultContextLimit,
		historyTurns: DefaultSynthesisHistoryTurns,
		maxAttempts:  DefaultGenerationAttempts,
		maxTokens:    DefaultMaxTokens,
		temperature:  0.2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize produces a grounded answer for one conversation turn.
//
// Degraded conditions return a well-formed Answer, not an error: empty
// evidence yields the fixed fallback answer, and generation exhaustion
// yields the fixed retry answer. An error return means invalid input.
func (s *SynthesisService) Synthesize(
	ctx context.Context,
	query string,
	history []domain.ConversationTurn,
	evidence []domain.Evidence,
) (*domain.Answer, error) {
	logger.Section("Synthesis")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	if len(evidence) == 0 {
		logger.Info("No grounded evidence, returning fallback answer")
		return s.FallbackAnswer(), nil
	}

	included, messages := s.buildPrompt(query, history, evidence)
	logger.Debug("Prompt holds %d/%d evidence items", len(included), len(evidence))

	raw, err := s.generateWithRetry(ctx, messages)
	if err != nil {
		logger.Warn("Generation exhausted: %v", err)
		return s.RetryAnswer(), nil
	}

	text, citations := s.resolveCitations(raw, included)
	return &domain.Answer{
		Text:      text,
		Citations: citations,
		Programs:  s.matchPrograms(text, included),
		Grounded:  true,
	}, nil
}

// FallbackAnswer is the deterministic reply for a turn with no grounded
// evidence.
func (s *SynthesisService) FallbackAnswer() *domain.Answer {
	return &domain.Answer{
		Text:      s.prompt(driven.PromptFallbackAnswer, defaultFallbackAnswer),
		Citations: []domain.Citation{},
		Programs:  []string{},
	}
}

// RetryAnswer is the deterministic reply for a turn the generation
// provider could not serve.
func (s *SynthesisService) RetryAnswer() *domain.Answer {
	return &domain.Answer{
		Text:      s.prompt(driven.PromptRetryAnswer, defaultRetryAnswer),
		Citations: []domain.Citation{},
		Programs:  []string{},
	}
}

// buildPrompt assembles the bounded generation request: numbered evidence
// by descending score, recent turns, then the current question. When the
// whole set exceeds the context limit, the lowest-scored evidence is
// trimmed first. Returns the evidence actually included, in marker order.
func (s *SynthesisService) buildPrompt(
	query string,
	history []domain.ConversationTurn,
	evidence []domain.Evidence,
) ([]domain.Evidence, []driven.ChatMessage) {
	system := s.prompt(driven.PromptAnswerSystem, defaultAnswerSystem)

	recent := history
	if len(recent) > s.historyTurns {
		recent = recent[len(recent)-s.historyTurns:]
	}

	fixed := len(system) + len(query)
	for _, turn := range recent {
		fixed += len(turn.Text)
	}

	included := evidence
	for len(included) > 1 {
		if fixed+contextSize(included) <= s.contextLimit {
			break
		}
		// Evidence arrives ordered by descending score; drop the tail.
		included = included[:len(included)-1]
	}

	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, ev := range included {
		fmt.Fprintf(&b, "[%d] %s (%s, version %d)\n%s\n\n",
			i+1, ev.Source.Title, ev.Source.URI, ev.Source.Version, ev.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(query)

	messages := make([]driven.ChatMessage, 0, len(recent)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: system})
	for _, turn := range recent {
		messages = append(messages, driven.ChatMessage{
			Role:    string(turn.Role),
			Content: turn.Text,
		})
	}
	messages = append(messages, driven.ChatMessage{Role: "user", Content: b.String()})

	return included, messages
}

// contextSize sums the formatted evidence block lengths.
func contextSize(evidence []domain.Evidence) int {
	size := 0
	for _, ev := range evidence {
		size += len(ev.Text) + len(ev.Source.Title) + len(ev.Source.URI) + 32
	}
	return size
}

// generateWithRetry invokes the provider exactly once per attempt, with a
// short pause between attempts.
func (s *SynthesisService) generateWithRetry(
	ctx context.Context, messages []driven.ChatMessage,
) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		text, err := s.llm.Complete(ctx, messages, driven.GenerateOptions{
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
		})
		if err == nil {
			return text, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		lastErr = err
		if attempt < s.maxAttempts {
			logger.Warn("Generation attempt %d/%d failed: %v", attempt, s.maxAttempts, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, lastErr)
}

// resolveCitations enforces the citation invariant: every marker in the
// generated text must resolve to evidence supplied in this call. Markers
// outside [1, len(evidence)] are dropped from the text so a claim is
// rendered without a citation rather than attributed to a wrong source.
func (s *SynthesisService) resolveCitations(
	text string, evidence []domain.Evidence,
) (string, []domain.Citation) {
	cited := make([]int, 0, len(evidence))
	seen := make(map[int]bool)

	cleaned := citationMarker.ReplaceAllStringFunc(text, func(marker string) string {
		n, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil || n < 1 || n > len(evidence) {
			logger.Warn("Dropping unresolvable citation marker %s", marker)
			return ""
		}
		if !seen[n] {
			seen[n] = true
			cited = append(cited, n)
		}
		return marker
	})

	citations := make([]domain.Citation, 0, len(cited))
	for _, n := range cited {
		src := evidence[n-1].Source
		citations = append(citations, domain.Citation{
			ChunkID: evidence[n-1].ChunkID,
			Title:   src.Title,
			URI:     src.URI,
			Version: src.Version,
		})
	}

	return strings.TrimSpace(cleaned), citations
}

// matchPrograms derives the programme set from the answer text and the
// evidence metadata via the lexicon, never from free model output.
func (s *SynthesisService) matchPrograms(text string, evidence []domain.Evidence) []string {
	if s.lexicon == nil {
		return []string{}
	}
	texts := []string{text}
	for _, ev := range evidence {
		texts = append(texts, ev.Source.Title)
		texts = append(texts, ev.Source.Tags...)
	}
	return s.lexicon.Match(texts...)
}

// prompt loads a named prompt from the store, falling back to the
// embedded default.
func (s *SynthesisService) prompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	text, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}
