// Package schema holds the static model of the directory schema: tables,
// columns, semantic types, and the rendering used as LLM context.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// SemanticType classifies a column for prompt rendering and validation.
type SemanticType string

const (
	TypeText        SemanticType = "text"
	TypeNumber      SemanticType = "number"
	TypeDate        SemanticType = "date"
	TypeCategorical SemanticType = "categorical"
)

// Category is the closed set of entity categories a candidate span can carry.
// Extraction assigns one per span; resolution rules differ per category.
type Category string

const (
	CategoryOrganization Category = "organization"
	CategoryPerson       Category = "person"
	CategoryRole         Category = "role"
	CategoryLocation     Category = "location"
	CategoryUnknown      Category = "unknown"
)

// Column describes one column of the directory schema. Immutable after boot.
type Column struct {
	Table    string
	Name     string
	Type     SemanticType
	Nullable bool
	// Comment is a short description rendered into the LLM schema context.
	Comment string
}

// IndexedColumn is a column whose distinct values are cached for fuzzy
// matching, together with the span category it resolves.
type IndexedColumn struct {
	Table    string
	Column   string
	Category Category
}

// Key returns the "table.column" identifier for the indexed column.
func (ic IndexedColumn) Key() string {
	return ic.Table + "." + ic.Column
}

// Descriptor is the process-wide, read-only schema model.
type Descriptor struct {
	tables  map[string][]Column
	indexed []IndexedColumn
}

// Directory returns the descriptor for the community directory schema.
func Directory() *Descriptor {
	cols := []Column{
		{Table: "members", Name: "member_id", Type: TypeText, Comment: "Unique identifier"},
		{Table: "members", Name: "uri", Type: TypeText, Comment: "URI identifier"},
		{Table: "members", Name: "first_name", Type: TypeText, Comment: "Member's first name"},
		{Table: "members", Name: "last_name", Type: TypeText, Comment: "Member's last name"},
		{Table: "members", Name: "bio", Type: TypeText, Nullable: true, Comment: "Short bio/description"},
		{Table: "members", Name: "title", Type: TypeText, Nullable: true, Comment: "Current or primary title"},

		{Table: "experiences", Name: "member_id", Type: TypeText, Comment: "References members"},
		{Table: "experiences", Name: "company", Type: TypeCategorical, Comment: "Company name"},
		{Table: "experiences", Name: "role", Type: TypeCategorical, Nullable: true, Comment: "Job title"},
		{Table: "experiences", Name: "industry", Type: TypeCategorical, Nullable: true, Comment: "Industry classification"},
		{Table: "experiences", Name: "city", Type: TypeCategorical, Nullable: true, Comment: "City of work location"},
		{Table: "experiences", Name: "state", Type: TypeCategorical, Nullable: true, Comment: "State/Province"},
		{Table: "experiences", Name: "country", Type: TypeCategorical, Nullable: true, Comment: "Country"},
		{Table: "experiences", Name: "from_date", Type: TypeDate, Nullable: true, Comment: "Employment start date"},
		{Table: "experiences", Name: "to_date", Type: TypeDate, Nullable: true, Comment: "Employment end date (NULL if current)"},
		{Table: "experiences", Name: "is_current", Type: TypeCategorical, Nullable: true, Comment: "Current role indicator"},
		{Table: "experiences", Name: "description", Type: TypeText, Nullable: true, Comment: "Role description"},

		{Table: "education", Name: "member_id", Type: TypeText, Comment: "References members"},
		{Table: "education", Name: "degree", Type: TypeCategorical, Nullable: true, Comment: "Degree type"},
		{Table: "education", Name: "institute", Type: TypeCategorical, Comment: "University/college name"},
		{Table: "education", Name: "course", Type: TypeText, Nullable: true, Comment: "Field of study"},
		{Table: "education", Name: "from_date", Type: TypeDate, Nullable: true, Comment: "Start date"},
		{Table: "education", Name: "to_date", Type: TypeDate, Nullable: true, Comment: "End date"},

		{Table: "domains", Name: "member_id", Type: TypeText, Comment: "References members"},
		{Table: "domains", Name: "domain_name", Type: TypeCategorical, Comment: "Domain/area of interest"},

		{Table: "content", Name: "member_id", Type: TypeText, Comment: "References members"},
		{Table: "content", Name: "content_text", Type: TypeText, Nullable: true, Comment: "Member's bio/introduction"},
	}

	indexed := []IndexedColumn{
		{Table: "experiences", Column: "company", Category: CategoryOrganization},
		{Table: "education", Column: "institute", Category: CategoryOrganization},
		{Table: "experiences", Column: "role", Category: CategoryRole},
		{Table: "experiences", Column: "city", Category: CategoryLocation},
		{Table: "experiences", Column: "state", Category: CategoryLocation},
		{Table: "experiences", Column: "country", Category: CategoryLocation},
		{Table: "members", Column: "first_name", Category: CategoryPerson},
		{Table: "members", Column: "last_name", Category: CategoryPerson},
		{Table: "domains", Column: "domain_name", Category: CategoryUnknown},
	}

	return New(cols, indexed)
}

// New builds a descriptor from a column list. Exposed for tests that need a
// smaller schema.
func New(cols []Column, indexed []IndexedColumn) *Descriptor {
	tables := make(map[string][]Column)
	for _, c := range cols {
		tables[c.Table] = append(tables[c.Table], c)
	}
	return &Descriptor{tables: tables, indexed: indexed}
}

// HasTable reports whether the schema contains the named table.
// Lookup is case-insensitive, matching SQL identifier semantics.
func (d *Descriptor) HasTable(name string) bool {
	_, ok := d.tables[strings.ToLower(name)]
	return ok
}

// HasColumn reports whether table.column exists in the schema.
func (d *Descriptor) HasColumn(table, column string) bool {
	cols, ok := d.tables[strings.ToLower(table)]
	if !ok {
		return false
	}
	column = strings.ToLower(column)
	for _, c := range cols {
		if c.Name == column {
			return true
		}
	}
	return false
}

// HasAnyColumn reports whether any table contains the named column.
// Used when a column reference is not table-qualified.
func (d *Descriptor) HasAnyColumn(column string) bool {
	column = strings.ToLower(column)
	for _, cols := range d.tables {
		for _, c := range cols {
			if c.Name == column {
				return true
			}
		}
	}
	return false
}

// Tables returns the sorted table names.
func (d *Descriptor) Tables() []string {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexedColumns returns the columns whose distinct values are cached for
// fuzzy matching.
func (d *Descriptor) IndexedColumns() []IndexedColumn {
	return d.indexed
}

// ColumnsForCategory returns the indexed columns resolving the given category.
func (d *Descriptor) ColumnsForCategory(cat Category) []IndexedColumn {
	var out []IndexedColumn
	for _, ic := range d.indexed {
		if ic.Category == cat {
			out = append(out, ic)
		}
	}
	return out
}

// Describe renders the schema as compact text for the translation capability.
func (d *Descriptor) Describe() string {
	var b strings.Builder
	b.WriteString("# DATABASE SCHEMA\n")

	for _, table := range d.Tables() {
		fmt.Fprintf(&b, "\n## Table: %s\n", table)
		for _, c := range d.tables[table] {
			nullable := "NOT NULL"
			if c.Nullable {
				nullable = "NULLABLE"
			}
			fmt.Fprintf(&b, "- %s (%s, %s): %s\n", c.Name, strings.ToUpper(string(c.Type)), nullable, c.Comment)
		}
	}

	b.WriteString(`
# RULES FOR SQL GENERATION
1. Always use DISTINCT to avoid duplicate members
2. Use LEFT JOIN for experiences/education/domains (some members may not have all)
3. Use exact match for resolved entity values: column = 'exact value'
4. Use LIKE only for free-text fields with unresolved values
5. Order results by first_name, last_name
6. Write a single valid PostgreSQL SELECT statement
7. Do NOT include explanations or markdown
`)
	return b.String()
}
