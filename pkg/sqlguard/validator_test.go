package sqlguard

import (
	"errors"
	"testing"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	return NewValidator(schema.Directory())
}

func TestValidateAcceptsSelections(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		query string
	}{
		{
			name:  "simple select",
			query: "SELECT first_name, last_name FROM members",
		},
		{
			name:  "join with aliases",
			query: "SELECT m.first_name, e.company FROM members m JOIN experiences e ON m.member_id = e.member_id WHERE e.company = 'Stripe'",
		},
		{
			name:  "explicit as alias",
			query: "SELECT x.institute FROM education AS x WHERE x.degree = 'PhD'",
		},
		{
			name:  "trailing semicolon stripped",
			query: "SELECT domain_name FROM domains;",
		},
		{
			name:  "nested subselect",
			query: "SELECT first_name FROM members WHERE member_id IN (SELECT member_id FROM experiences WHERE company = 'Stripe')",
		},
		{
			name:  "cte",
			query: "WITH recent AS (SELECT member_id FROM experiences WHERE to_date IS NULL) SELECT first_name FROM members WHERE member_id IN (SELECT member_id FROM recent)",
		},
		{
			name:  "semicolon inside string literal",
			query: "SELECT first_name FROM members WHERE bio = 'a;b'",
		},
		{
			name:  "keyword inside string literal",
			query: "SELECT first_name FROM members WHERE bio = 'how to drop a table'",
		},
		{
			name:  "aggregate with declared alias",
			query: "SELECT company, count(*) AS headcount FROM experiences GROUP BY company ORDER BY headcount DESC",
		},
		{
			name:  "function call with bare column argument",
			query: "SELECT first_name FROM members WHERE length(bio) > 10 AND title IS NOT NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Validate(tt.query); err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tt.query, err)
			}
		})
	}
}

func TestValidateRejectsUnsafeQueries(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		query string
	}{
		{
			name:  "empty",
			query: "   ",
		},
		{
			name:  "stacked statements",
			query: "DROP TABLE members; SELECT * FROM members",
		},
		{
			name:  "stacked selects",
			query: "SELECT 1; SELECT 2",
		},
		{
			name:  "delete statement",
			query: "DELETE FROM members WHERE member_id = 1",
		},
		{
			name:  "update statement",
			query: "UPDATE members SET first_name = 'x'",
		},
		{
			name:  "mutation inside subselect",
			query: "SELECT first_name FROM members WHERE member_id IN (DELETE FROM experiences RETURNING member_id)",
		},
		{
			name:  "truncate keyword anywhere",
			query: "SELECT first_name FROM members WHERE bio = concat('x', truncate)",
		},
		{
			name:  "select into",
			query: "SELECT first_name INTO stolen FROM members",
		},
		{
			name:  "unknown table",
			query: "SELECT secret FROM credentials",
		},
		{
			name:  "unknown unqualified column",
			query: "SELECT password FROM members",
		},
		{
			name:  "unknown unqualified column in where clause",
			query: "SELECT first_name FROM members WHERE salary > 100",
		},
		{
			name:  "backslash does not escape a closing quote",
			query: `SELECT first_name FROM members WHERE bio = 'a\' ; DELETE FROM members --'`,
		},
		{
			name:  "unknown column on known table",
			query: "SELECT m.password FROM members m",
		},
		{
			name:  "unknown alias qualifier",
			query: "SELECT z.first_name FROM members m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.query)
			if err == nil {
				t.Fatalf("Validate(%q) = nil, want unsafe query error", tt.query)
			}
			var unsafeErr *apperrors.UnsafeQueryError
			if !errors.As(err, &unsafeErr) {
				t.Errorf("Validate(%q) error type = %T, want *apperrors.UnsafeQueryError", tt.query, err)
			}
		})
	}
}

func TestValidateCollectsReferences(t *testing.T) {
	v := testValidator(t)

	result, err := v.Validate("SELECT m.first_name, e.company FROM members m JOIN experiences e ON m.member_id = e.member_id")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	wantTables := []string{"members", "experiences"}
	if len(result.Tables) != len(wantTables) {
		t.Fatalf("Tables = %v, want %v", result.Tables, wantTables)
	}
	for i, table := range wantTables {
		if result.Tables[i] != table {
			t.Errorf("Tables[%d] = %q, want %q", i, result.Tables[i], table)
		}
	}

	wantColumns := map[string]bool{
		"members.first_name":    true,
		"experiences.company":   true,
		"members.member_id":     true,
		"experiences.member_id": true,
	}
	for _, col := range result.Columns {
		if !wantColumns[col] {
			t.Errorf("unexpected column reference %q", col)
		}
	}
	if len(result.Columns) != len(wantColumns) {
		t.Errorf("Columns = %v, want %d references", result.Columns, len(wantColumns))
	}
}

func TestMaskStringLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"bio = 'abc'", "bio = '   '"},
		{"bio = 'a''b'", "bio = ' '' '"},
		{`bio = 'a\'`, "bio = '  '"},
		{`col = "na;me"`, `col = "     "`},
	}
	for _, tt := range tests {
		if got := maskStringLiterals(tt.input); got != tt.want {
			t.Errorf("maskStringLiterals(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStripTrailingSemicolon(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SELECT 1;", "SELECT 1"},
		{"SELECT 1 ;  ", "SELECT 1"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		if got := stripTrailingSemicolon(tt.input); got != tt.want {
			t.Errorf("stripTrailingSemicolon(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestScreenValue(t *testing.T) {
	if err := ScreenValue("Stripe"); err != nil {
		t.Errorf("ScreenValue(benign) = %v, want nil", err)
	}
	if err := ScreenValue("O'Brien & Associates"); err != nil {
		t.Errorf("ScreenValue(apostrophe name) = %v, want nil", err)
	}
	if err := ScreenValue("' OR '1'='1"); err == nil {
		t.Error("ScreenValue(injection) = nil, want unsafe query error")
	}
}
