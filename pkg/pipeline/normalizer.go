// Package pipeline implements the query-resolution pipeline: a free-text
// question is normalized, candidate entity spans are extracted and fuzzily
// resolved against known store values, the translation capability synthesizes
// a candidate SQL query, the query is statically validated, executed, and the
// rows are shaped into a uniform envelope.
package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
)

// stopwords removed during normalization. Anchor words used by the extractor
// (at, from, in, named) are kept so the translation prompt retains the
// question's relational structure.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "of": true,
	"to": true, "and": true, "or": true, "me": true, "my": true,
	"please": true, "can": true, "could": true, "would": true, "tell": true,
	"show": true, "list": true, "find": true, "give": true,
}

// Normalizer lower-cases the question, strips punctuation and stopwords, and
// expands synonyms from a static table. Pure and deterministic for a given
// synonym table.
type Normalizer struct {
	maxLength int
	synonyms  map[string]string
}

// NewNormalizer creates a normalizer with the given length ceiling and synonym
// table. Synonym keys must be lowercase single tokens.
func NewNormalizer(maxLength int, synonyms map[string]string) *Normalizer {
	lowered := make(map[string]string, len(synonyms))
	for k, v := range synonyms {
		lowered[strings.ToLower(k)] = strings.ToLower(v)
	}
	return &Normalizer{maxLength: maxLength, synonyms: lowered}
}

// Normalize validates the raw question and returns its normalized token
// sequence. Questions longer than the ceiling fail with ErrInputTooLong;
// empty questions fail with ErrEmptyQuestion.
func (n *Normalizer) Normalize(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, apperrors.ErrEmptyQuestion
	}
	// The ceiling is a character count, not bytes, so multi-byte
	// questions are not penalized.
	if utf8.RuneCountInString(trimmed) > n.maxLength {
		return nil, apperrors.ErrInputTooLong
	}

	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(trimmed)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if tok == "" || stopwords[tok] {
			continue
		}
		if expanded, ok := n.synonyms[tok]; ok {
			tok = expanded
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}
