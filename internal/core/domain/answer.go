package domain

// Evidence is a retrieved chunk plus its ranking score, produced
// transiently per query to ground one answer. It is never persisted.
type Evidence struct {
	// ChunkID identifies the underlying chunk.
	ChunkID string

	// Score is the re-ranked relevance score, higher is better.
	Score float64

	// Similarity is the raw vector similarity before boosts.
	Similarity float64

	// Text is the chunk content supplied to the generation provider.
	Text string

	// Source carries the attribution metadata for citation display.
	Source RecordMetadata
}

// Citation resolves one citation marker in an answer to its source.
// Every citation refers to a chunk that was actually supplied as evidence
// for the generation call that produced the answer.
type Citation struct {
	ChunkID string
	Title   string
	URI     string
	Version int
}

// Answer is the synthesizer's output for one conversation turn.
type Answer struct {
	// Text is the answer body with citation markers resolved.
	Text string

	// Citations lists the cited evidence in order of first appearance.
	Citations []Citation

	// Programs names the known benefits programmes mentioned by the
	// answer or its evidence, matched against the lexicon.
	Programs []string

	// Grounded is false for the fixed fallback answers returned when no
	// evidence cleared the similarity floor or generation failed.
	Grounded bool
}
