package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

// SpanCategory is the closed set of entity categories the extractor can infer.
type SpanCategory string

const (
	CategoryOrganization SpanCategory = "organization"
	CategoryPerson       SpanCategory = "person"
	CategoryRole         SpanCategory = "role"
	CategoryLocation     SpanCategory = "location"
	CategoryUnknown      SpanCategory = "unknown"
)

// CandidateSpan is a possible entity mention found in the original question.
type CandidateSpan struct {
	Raw      string
	Start    int
	End      int
	Category SpanCategory
}

var yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// anchorCategories maps the keyword preceding a span to its likely category.
// "at" and "from" introduce organizations ("worked at Stripe"), "in" a
// location, "named"/"called" a person, "as" a role.
var anchorCategories = map[string]SpanCategory{
	"at":      CategoryOrganization,
	"from":    CategoryOrganization,
	"in":      CategoryLocation,
	"named":   CategoryPerson,
	"called":  CategoryPerson,
	"as":      CategoryRole,
	"worked":  CategoryOrganization,
	"studied": CategoryOrganization,
}

// questionStarters are capitalized words that open questions and are never
// entity mentions.
var questionStarters = map[string]bool{
	"who": true, "what": true, "where": true, "when": true, "which": true,
	"how": true, "why": true, "whose": true, "whom": true, "is": true,
	"are": true, "do": true, "does": true, "did": true, "list": true,
	"show": true, "find": true, "tell": true, "give": true, "name": true,
}

// Extractor pulls candidate entity spans from the original question using
// capitalization patterns and anchor keywords. One pass per question; the
// question is consumed once.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract scans the original (non-lowercased) question and returns candidate
// spans in question order. Capitalized runs become one span; a run whose
// category cannot be inferred from a preceding anchor is emitted as unknown
// rather than dropped. Four-digit years are emitted as unknown pass-through
// spans.
func (e *Extractor) Extract(question string) []CandidateSpan {
	words := splitWithOffsets(question)
	var spans []CandidateSpan

	i := 0
	for i < len(words) {
		w := words[i]
		if !isCapitalized(w.text) || (i == 0 && questionStarters[strings.ToLower(w.text)]) {
			i++
			continue
		}
		if questionStarters[strings.ToLower(w.text)] && (i == 0 || endsSentence(words[i-1].text)) {
			i++
			continue
		}

		// Extend over the full capitalized run, allowing short connector
		// words inside organization names ("Bank of America").
		j := i
		last := i
		for j < len(words) {
			if isCapitalized(words[j].text) {
				last = j
				j++
				continue
			}
			if j > i && isNameConnector(words[j].text) && j+1 < len(words) && isCapitalized(words[j+1].text) {
				j++
				continue
			}
			break
		}

		start := words[i].start
		end := words[last].end
		raw := trimSpanPunct(question[start:end])
		if raw != "" {
			spans = append(spans, CandidateSpan{
				Raw:      raw,
				Start:    start,
				End:      start + len(raw),
				Category: categoryForSpan(words, i),
			})
		}
		i = last + 1
	}

	// Year mentions pass through for the translation prompt.
	for _, loc := range yearPattern.FindAllStringIndex(question, -1) {
		spans = append(spans, CandidateSpan{
			Raw:      question[loc[0]:loc[1]],
			Start:    loc[0],
			End:      loc[1],
			Category: CategoryUnknown,
		})
	}

	return spans
}

// categoryForSpan infers the span category from the nearest preceding anchor
// keyword, looking back up to two words ("worked at Stripe" anchors on "at").
func categoryForSpan(words []word, spanStart int) SpanCategory {
	for back := 1; back <= 2; back++ {
		idx := spanStart - back
		if idx < 0 {
			break
		}
		anchor := strings.ToLower(trimSpanPunct(words[idx].text))
		if cat, ok := anchorCategories[anchor]; ok {
			return cat
		}
	}
	return CategoryUnknown
}

type word struct {
	text  string
	start int
	end   int
}

// splitWithOffsets splits on whitespace keeping byte offsets into the
// original string.
func splitWithOffsets(s string) []word {
	var words []word
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{text: s[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{text: s[start:], start: start, end: len(s)})
	}
	return words
}

func isCapitalized(s string) bool {
	s = trimSpanPunct(s)
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return unicode.IsUpper(r)
}

func isNameConnector(s string) bool {
	switch strings.ToLower(trimSpanPunct(s)) {
	case "of", "and", "&", "de", "for":
		return true
	}
	return false
}

func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!")
}

func trimSpanPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '&'
	})
}
