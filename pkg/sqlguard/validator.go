// Package sqlguard statically validates candidate SQL before it can reach the
// store. The translation capability is untrusted input: every candidate query
// is checked for single-statement read-only shape and for references outside
// the known schema.
package sqlguard

import (
	"regexp"
	"strings"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

// StatementKind classifies the leading statement of a candidate query.
type StatementKind string

const (
	KindSelect  StatementKind = "select"
	KindUnknown StatementKind = "unknown"
)

// CandidateQuery is the validated form of a candidate query: normalized text
// plus the tables and qualified columns it references.
type CandidateQuery struct {
	Text    string
	Tables  []string
	Columns []string
	Kind    StatementKind
}

// forbiddenKeywords are statement or clause keywords that must never appear in
// a candidate query, anywhere, including inside nested sub-selections. The
// scan runs on text with string literals masked, so quoted data cannot
// produce false positives.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "truncate",
	"grant", "revoke", "merge", "call", "copy", "vacuum", "reindex",
	"comment", "execute", "prepare", "listen", "notify", "lock", "into",
}

var (
	wordPattern      = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
	tableRefPattern  = regexp.MustCompile(`(?i)\b(from|join)\s+([a-zA-Z_][a-zA-Z0-9_]*)(\s+(?:as\s+)?([a-zA-Z_][a-zA-Z0-9_]*))?`)
	qualifiedPattern = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)\b`)
	ctePattern       = regexp.MustCompile(`(?i)\b([a-zA-Z_][a-zA-Z0-9_]*)\s+as\s*\(`)
)

// sqlKeywords are words with meaning to the SQL grammar that the bare
// identifier scan must not mistake for column references. Type names and
// date-part names are included because they appear bare in CAST and EXTRACT
// expressions.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "null": true, "is": true, "in": true, "exists": true,
	"between": true, "like": true, "ilike": true, "similar": true, "to": true,
	"escape": true, "as": true, "on": true, "join": true, "left": true,
	"right": true, "inner": true, "outer": true, "full": true, "cross": true,
	"natural": true, "using": true, "group": true, "by": true, "order": true,
	"limit": true, "offset": true, "having": true, "distinct": true,
	"union": true, "all": true, "any": true, "some": true, "intersect": true,
	"except": true, "case": true, "when": true, "then": true, "else": true,
	"end": true, "asc": true, "desc": true, "nulls": true, "first": true,
	"last": true, "with": true, "true": true, "false": true, "cast": true,
	"interval": true, "at": true, "zone": true, "filter": true, "over": true,
	"partition": true, "row": true, "rows": true, "range": true,
	"fetch": true, "next": true, "only": true, "current_date": true,
	"current_timestamp": true,
	"integer": true, "int": true, "bigint": true, "smallint": true,
	"numeric": true, "decimal": true, "real": true, "double": true,
	"precision": true, "text": true, "varchar": true, "char": true,
	"boolean": true, "date": true, "time": true, "timestamp": true,
	"year": true, "month": true, "day": true, "hour": true, "minute": true,
	"second": true, "epoch": true, "quarter": true, "week": true,
}

// aliasStopWords are words that can follow a table reference but are never an
// alias.
var aliasStopWords = map[string]bool{
	"on": true, "where": true, "join": true, "left": true, "right": true,
	"inner": true, "outer": true, "full": true, "cross": true, "group": true,
	"order": true, "limit": true, "offset": true, "having": true, "union": true,
	"intersect": true, "except": true, "as": true, "and": true, "or": true,
	"using": true, "natural": true, "set": true,
}

// Validator statically inspects candidate queries against the schema.
type Validator struct {
	schema *schema.Descriptor
}

// NewValidator creates a validator bound to the given schema descriptor.
func NewValidator(d *schema.Descriptor) *Validator {
	return &Validator{schema: d}
}

// Validate checks a candidate query and returns its validated form, or an
// UnsafeQueryError describing the first violation found. The checks, in order:
//  1. non-empty single statement (no semicolons outside string literals)
//  2. the statement is a selection (SELECT or WITH ... SELECT)
//  3. no forbidden keyword anywhere, including nested sub-selections
//  4. every referenced table and column, qualified or bare, exists in the
//     schema
func (v *Validator) Validate(query string) (*CandidateQuery, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(query))
	if normalized == "" {
		return nil, apperrors.NewUnsafeQueryError("empty query")
	}

	if hasSemicolonOutsideStrings(normalized) {
		return nil, apperrors.NewUnsafeQueryError("multiple SQL statements not allowed")
	}

	masked := maskStringLiterals(normalized)

	kind := classifyStatement(masked)
	if kind != KindSelect {
		return nil, apperrors.NewUnsafeQueryError("statement is not a read-only selection")
	}

	if kw := findForbiddenKeyword(masked); kw != "" {
		return nil, apperrors.NewUnsafeQueryError("forbidden keyword: " + kw)
	}

	tables, aliases, err := v.checkTableRefs(masked)
	if err != nil {
		return nil, err
	}

	columns, err := v.checkColumnRefs(masked, aliases)
	if err != nil {
		return nil, err
	}

	if err := v.checkBareColumnRefs(masked, aliases); err != nil {
		return nil, err
	}

	return &CandidateQuery{
		Text:    normalized,
		Tables:  tables,
		Columns: columns,
		Kind:    kind,
	}, nil
}

// classifyStatement inspects the first keyword of the masked query.
// WITH is accepted because common table expressions still resolve to a
// selection; any embedded mutation is caught by the forbidden keyword scan.
func classifyStatement(masked string) StatementKind {
	first := wordPattern.FindString(masked)
	switch strings.ToLower(first) {
	case "select", "with":
		return KindSelect
	default:
		return KindUnknown
	}
}

// findForbiddenKeyword returns the first forbidden keyword present as a whole
// word, or "" if none.
func findForbiddenKeyword(masked string) string {
	words := map[string]bool{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(masked), -1) {
		words[w] = true
	}
	for _, kw := range forbiddenKeywords {
		if words[kw] {
			return kw
		}
	}
	return ""
}

// checkTableRefs verifies every FROM/JOIN target exists in the schema and
// builds the alias map used for qualified column checks. Common table
// expression names count as known tables within the query; their columns are
// not checkable against the schema and are skipped by checkColumnRefs.
func (v *Validator) checkTableRefs(masked string) ([]string, map[string]string, error) {
	aliases := make(map[string]string)
	seen := make(map[string]bool)
	var tables []string

	cteNames := make(map[string]bool)
	for _, m := range ctePattern.FindAllStringSubmatch(masked, -1) {
		cteNames[strings.ToLower(m[1])] = true
	}

	for _, m := range tableRefPattern.FindAllStringSubmatch(masked, -1) {
		table := strings.ToLower(m[2])
		if table == "select" {
			// FROM (SELECT ...) subquery; the inner query's own FROM
			// clauses are matched separately.
			continue
		}
		if cteNames[table] {
			aliases[table] = ""
			if alias := strings.ToLower(m[4]); alias != "" && !aliasStopWords[alias] {
				aliases[alias] = ""
			}
			continue
		}
		if !v.schema.HasTable(table) {
			return nil, nil, apperrors.NewUnsafeQueryError("unknown table: " + table)
		}
		if !seen[table] {
			seen[table] = true
			tables = append(tables, table)
		}
		aliases[table] = table
		if alias := strings.ToLower(m[4]); alias != "" && !aliasStopWords[alias] {
			aliases[alias] = table
		}
	}

	return tables, aliases, nil
}

// checkColumnRefs verifies every qualified column reference resolves to a
// known table (directly or through an alias) and a known column on it.
func (v *Validator) checkColumnRefs(masked string, aliases map[string]string) ([]string, error) {
	seen := make(map[string]bool)
	var columns []string

	for _, m := range qualifiedPattern.FindAllStringSubmatch(masked, -1) {
		qualifier := strings.ToLower(m[1])
		column := strings.ToLower(m[2])

		table, ok := aliases[qualifier]
		if !ok {
			return nil, apperrors.NewUnsafeQueryError("unknown table or alias: " + qualifier)
		}
		if table == "" {
			continue
		}
		if !v.schema.HasColumn(table, column) {
			return nil, apperrors.NewUnsafeQueryError("unknown column: " + qualifier + "." + column)
		}

		key := table + "." + column
		if !seen[key] {
			seen[key] = true
			columns = append(columns, key)
		}
	}

	return columns, nil
}

// checkBareColumnRefs verifies every unqualified identifier resolves to a
// column somewhere in the schema. Keywords, table names, aliases, function
// names and names the query declares itself (AS aliases, CTE heads, derived
// table aliases) are skipped.
func (v *Validator) checkBareColumnRefs(masked string, aliases map[string]string) error {
	lower := strings.ToLower(masked)
	locs := wordPattern.FindAllStringIndex(lower, -1)

	declared := make(map[string]bool)
	for _, m := range ctePattern.FindAllStringSubmatch(lower, -1) {
		declared[m[1]] = true
	}
	prev := ""
	for _, loc := range locs {
		word := lower[loc[0]:loc[1]]
		if prev == "as" {
			declared[word] = true
		}
		prev = word
	}

	prev = ""
	for _, loc := range locs {
		word := lower[loc[0]:loc[1]]
		prevWord := prev
		prev = word

		if sqlKeywords[word] || declared[word] {
			continue
		}
		// Table targets are checked by checkTableRefs.
		if prevWord == "from" || prevWord == "join" {
			continue
		}
		if _, ok := aliases[word]; ok {
			continue
		}
		// Part of a qualified reference, checked by checkColumnRefs.
		if loc[0] > 0 && lower[loc[0]-1] == '.' {
			continue
		}
		rest := strings.TrimLeft(lower[loc[1]:], " \t\n\r")
		if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "(") {
			continue
		}
		// Derived table alias: FROM (SELECT ...) sub
		if before := strings.TrimRight(lower[:loc[0]], " \t\n\r"); strings.HasSuffix(before, ")") {
			continue
		}
		if !v.schema.HasAnyColumn(word) {
			return apperrors.NewUnsafeQueryError("unknown column: " + word)
		}
	}

	return nil
}

// maskStringLiterals replaces the contents of single- and double-quoted
// regions with spaces so keyword and identifier scans cannot match quoted
// data. Backslash is a literal character inside standard-conforming Postgres
// strings, so only the quote itself terminates a region; SQL doubled quotes
// ('') read as close-then-reopen, which masks the same characters.
func maskStringLiterals(sqlQuery string) string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	out := []byte(sqlQuery)
	state := stateNormal

	for i := 0; i < len(out); i++ {
		char := out[i]
		switch state {
		case stateNormal:
			switch char {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		case stateDoubleQuote:
			if char == '"' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		}
	}

	return string(out)
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	return strings.ContainsRune(maskStringLiterals(sqlQuery), ';')
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace
// around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}
	return sqlQuery
}
