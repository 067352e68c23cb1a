package domain

import (
	"sort"
	"strings"
)

// Lexicon maps benefit programme names and their common aliases to
// canonical programme names. Answers derive their Programs set by matching
// against this lexicon, never by free LLM inference.
type Lexicon struct {
	// aliases maps a lowercased surface form to its canonical name.
	aliases map[string]string
}

// NewLexicon creates an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{aliases: make(map[string]string)}
}

// DefaultLexicon returns the built-in California benefits programmes.
func DefaultLexicon() *Lexicon {
	l := NewLexicon()
	l.Add("CalFresh", "food stamps", "snap", "ebt")
	l.Add("Medi-Cal", "medical coverage", "medicaid")
	l.Add("Covered California")
	l.Add("CalWORKs")
	l.Add("Unemployment Insurance", "unemployment benefits", "ui claim")
	l.Add("Section 8", "housing choice voucher")
	l.Add("General Relief", "general assistance")
	l.Add("SSI", "supplemental security income")
	l.Add("SSDI", "social security disability")
	l.Add("LIHEAP", "energy assistance")
	l.Add("WIC")
	return l
}

// Add registers a programme and optional aliases. The canonical name
// itself always matches.
func (l *Lexicon) Add(name string, aliases ...string) {
	l.aliases[strings.ToLower(name)] = name
	for _, a := range aliases {
		l.aliases[strings.ToLower(a)] = name
	}
}

// Match returns the canonical names of all programmes mentioned in the
// given texts. Matching is case-insensitive substring search; the result
// is sorted and de-duplicated for deterministic output.
func (l *Lexicon) Match(texts ...string) []string {
	found := make(map[string]bool)
	for _, text := range texts {
		lower := strings.ToLower(text)
		for surface, canonical := range l.aliases {
			if strings.Contains(lower, surface) {
				found[canonical] = true
			}
		}
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
