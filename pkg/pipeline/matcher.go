package pipeline

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/Sumhack/community-search-api/pkg/models"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

// Matcher resolves candidate spans against the known-values snapshot using
// normalized edit-distance similarity.
type Matcher struct {
	schema        *schema.Descriptor
	threshold     float64
	ambiguityGap  float64
	abbreviations map[string]string
}

// NewMatcher creates a matcher. Threshold is the minimum similarity on [0,1]
// for a span to resolve; abbreviations map short institution forms to their
// canonical names and short-circuit fuzzy matching when hit.
func NewMatcher(d *schema.Descriptor, threshold float64, abbreviations map[string]string) *Matcher {
	lowered := make(map[string]string, len(abbreviations))
	for k, v := range abbreviations {
		lowered[strings.ToLower(k)] = v
	}
	return &Matcher{
		schema:        d,
		threshold:     threshold,
		ambiguityGap:  0.05,
		abbreviations: lowered,
	}
}

type columnMatch struct {
	column schema.IndexedColumn
	value  string
	score  float64
}

// Resolve matches one candidate span against the snapshot. A span below the
// threshold, or an unknown-category span with near-tied matches in multiple
// columns, is returned unresolved with its raw text as value: that is a
// degraded outcome, not a failure.
func (m *Matcher) Resolve(span CandidateSpan, snap *Snapshot) models.ResolvedEntity {
	entity := models.ResolvedEntity{
		Raw:      span.Raw,
		Value:    span.Raw,
		Category: string(span.Category),
	}

	target := span.Raw
	if abbr, ok := m.abbreviations[strings.ToLower(strings.TrimSpace(span.Raw))]; ok {
		target = abbr
	}
	if span.Category == CategoryRole || span.Category == CategoryUnknown {
		target = inflection.Singular(target)
	}

	columns := m.candidateColumns(span.Category)
	if len(columns) == 0 {
		return entity
	}

	matches := make([]columnMatch, 0, len(columns))
	for _, col := range columns {
		if value, score, ok := bestValue(target, snap.Values(col.Key())); ok {
			matches = append(matches, columnMatch{column: col, value: value, score: score})
		}
	}
	if len(matches) == 0 {
		return entity
	}

	best := matches[0]
	var secondScore float64
	for _, cand := range matches[1:] {
		switch {
		case cand.score > best.score:
			secondScore = best.score
			best = cand
		case cand.score == best.score:
			secondScore = cand.score
			if cand.value < best.value {
				best = cand
			}
		case cand.score > secondScore:
			secondScore = cand.score
		}
	}

	if best.score < m.threshold {
		return entity
	}
	if span.Category == CategoryUnknown && secondScore >= m.threshold &&
		best.score-secondScore < m.ambiguityGap {
		// Two columns claim the span with near-tied scores; guessing a
		// column here would silently change query semantics.
		return entity
	}

	entity.Value = best.value
	entity.Table = best.column.Table
	entity.Column = best.column.Column
	entity.Confidence = best.score
	entity.Resolved = true
	return entity
}

// candidateColumns returns the indexed columns a span of the given category
// resolves against. Unknown spans try every indexed column.
func (m *Matcher) candidateColumns(cat SpanCategory) []schema.IndexedColumn {
	if cat == CategoryUnknown {
		return m.schema.IndexedColumns()
	}
	return m.schema.ColumnsForCategory(schema.Category(cat))
}

// bestValue returns the maximum-similarity value in the list, breaking score
// ties by the lexicographically smaller value.
func bestValue(target string, values []string) (string, float64, bool) {
	var (
		bestVal   string
		bestScore float64
		found     bool
	)
	for _, v := range values {
		score := Similarity(target, v)
		if !found || score > bestScore || (score == bestScore && v < bestVal) {
			bestVal, bestScore, found = v, score, true
		}
	}
	return bestVal, bestScore, found
}

// Similarity is the normalized edit-distance similarity of two strings on
// [0,1]: 1 - distance(a,b)/max(len(a),len(b)), case-folded. Identical strings
// score 1. Adjacent transpositions count as a single edit so common typos
// ("Stirpe" for "Stripe") stay above the resolution threshold.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(osaDistance(ra, rb))/float64(maxLen)
}

// osaDistance is the optimal string alignment distance: Levenshtein with
// adjacent transpositions counted as one edit.
func osaDistance(a, b []rune) int {
	rows := len(a) + 1
	cols := len(b) + 1

	d := make([][]int, rows)
	for i := range d {
		d[i] = make([]int, cols)
		d[i][0] = i
	}
	for j := 0; j < cols; j++ {
		d[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d[i][j] = minInt(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				d[i][j] = minInt(d[i][j], d[i-2][j-2]+1) // transposition
			}
		}
	}

	return d[rows-1][cols-1]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
