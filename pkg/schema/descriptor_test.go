package schema

import (
	"strings"
	"testing"
)

func TestDirectoryLookups(t *testing.T) {
	d := Directory()

	tests := []struct {
		name   string
		check  func() bool
		expect bool
	}{
		{"has members table", func() bool { return d.HasTable("members") }, true},
		{"table lookup is case-insensitive", func() bool { return d.HasTable("MEMBERS") }, true},
		{"no such table", func() bool { return d.HasTable("users") }, false},
		{"has experiences.company", func() bool { return d.HasColumn("experiences", "company") }, true},
		{"column lookup is case-insensitive", func() bool { return d.HasColumn("Experiences", "Company") }, true},
		{"no such column", func() bool { return d.HasColumn("members", "salary") }, false},
		{"column on wrong table", func() bool { return d.HasColumn("members", "company") }, false},
		{"unqualified column anywhere", func() bool { return d.HasAnyColumn("institute") }, true},
		{"unqualified column nowhere", func() bool { return d.HasAnyColumn("password") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(); got != tt.expect {
				t.Errorf("got %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestDirectoryTablesSorted(t *testing.T) {
	d := Directory()
	tables := d.Tables()

	want := []string{"content", "domains", "education", "experiences", "members"}
	if len(tables) != len(want) {
		t.Fatalf("expected %d tables, got %d: %v", len(want), len(tables), tables)
	}
	for i, name := range want {
		if tables[i] != name {
			t.Errorf("tables[%d] = %q, want %q", i, tables[i], name)
		}
	}
}

func TestColumnsForCategory(t *testing.T) {
	d := Directory()

	orgs := d.ColumnsForCategory(CategoryOrganization)
	if len(orgs) != 2 {
		t.Fatalf("expected 2 organization columns, got %d", len(orgs))
	}

	keys := map[string]bool{}
	for _, ic := range orgs {
		keys[ic.Key()] = true
	}
	if !keys["experiences.company"] || !keys["education.institute"] {
		t.Errorf("unexpected organization columns: %v", keys)
	}

	if got := d.ColumnsForCategory(CategoryPerson); len(got) != 2 {
		t.Errorf("expected 2 person columns, got %d", len(got))
	}
}

func TestDescribe(t *testing.T) {
	text := Directory().Describe()

	for _, want := range []string{
		"## Table: members",
		"## Table: experiences",
		"company (CATEGORICAL, NOT NULL)",
		"to_date (DATE, NULLABLE)",
		"single valid PostgreSQL SELECT",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("schema description missing %q", want)
		}
	}
}

func TestDescribeDeterministic(t *testing.T) {
	a := Directory().Describe()
	b := Directory().Describe()
	if a != b {
		t.Error("schema description must be deterministic")
	}
}
