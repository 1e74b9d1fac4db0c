package pipeline

import (
	"testing"

	"github.com/Sumhack/community-search-api/pkg/schema"
)

func testSnapshot() *Snapshot {
	return NewStaticSnapshot(map[string][]string{
		"experiences.company": {"Google", "Razorpay", "Stripe"},
		"education.institute": {"IIT Bombay", "Stanford University"},
		"experiences.role":    {"Founder", "Software Engineer"},
		"experiences.city":    {"Bangalore", "Mumbai"},
		"experiences.state":   {"Karnataka", "Maharashtra"},
		"experiences.country": {"India", "USA"},
		"members.first_name":  {"Anita", "Priya"},
		"members.last_name":   {"Sharma", "Verma"},
		"domains.domain_name": {"Fintech", "Healthcare"},
	})
}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	return NewMatcher(schema.Directory(), 0.75, map[string]string{
		"IIT B": "IIT Bombay",
	})
}

func TestResolveMisspelledCompany(t *testing.T) {
	m := newTestMatcher(t)
	snap := testSnapshot()

	entity := m.Resolve(CandidateSpan{Raw: "Stirpe", Category: CategoryOrganization}, snap)
	if !entity.Resolved {
		t.Fatalf("Resolve(Stirpe) unresolved: %+v", entity)
	}
	if entity.Value != "Stripe" {
		t.Errorf("Value = %q, want Stripe", entity.Value)
	}
	if entity.Confidence <= 0.75 {
		t.Errorf("Confidence = %v, want > 0.75", entity.Confidence)
	}
	if entity.Table != "experiences" || entity.Column != "company" {
		t.Errorf("source column = %s.%s, want experiences.company", entity.Table, entity.Column)
	}
}

func TestResolveExactValueScoresOne(t *testing.T) {
	m := newTestMatcher(t)

	entity := m.Resolve(CandidateSpan{Raw: "Stripe", Category: CategoryOrganization}, testSnapshot())
	if !entity.Resolved || entity.Confidence != 1.0 {
		t.Errorf("Resolve(exact) = %+v, want resolved with confidence 1.0", entity)
	}
	if entity.Value != "Stripe" {
		t.Errorf("Value = %q, want unchanged canonical", entity.Value)
	}
}

func TestResolveTieBreaksLexicographically(t *testing.T) {
	m := newTestMatcher(t)
	snap := NewStaticSnapshot(map[string][]string{
		"experiences.company": {"Datum", "Datun"},
	})

	// Both known values are distance 1 from the span.
	for i := 0; i < 5; i++ {
		entity := m.Resolve(CandidateSpan{Raw: "Datux", Category: CategoryOrganization}, snap)
		if !entity.Resolved {
			t.Fatalf("Resolve(tie) unresolved: %+v", entity)
		}
		if entity.Value != "Datum" {
			t.Fatalf("Value = %q, want lexicographically smaller Datum", entity.Value)
		}
	}
}

func TestResolveBelowThresholdPassesThrough(t *testing.T) {
	m := newTestMatcher(t)

	entity := m.Resolve(CandidateSpan{Raw: "Quixotic Ventures", Category: CategoryOrganization}, testSnapshot())
	if entity.Resolved {
		t.Fatalf("Resolve(no close match) resolved: %+v", entity)
	}
	if entity.Value != "Quixotic Ventures" {
		t.Errorf("Value = %q, want raw span passed through", entity.Value)
	}
	if entity.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", entity.Confidence)
	}
}

func TestResolveAbbreviationShortCircuit(t *testing.T) {
	m := newTestMatcher(t)

	entity := m.Resolve(CandidateSpan{Raw: "IIT B", Category: CategoryOrganization}, testSnapshot())
	if !entity.Resolved || entity.Value != "IIT Bombay" {
		t.Fatalf("Resolve(IIT B) = %+v, want IIT Bombay", entity)
	}
	if entity.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", entity.Confidence)
	}
}

func TestResolveRoleSingularized(t *testing.T) {
	m := newTestMatcher(t)

	entity := m.Resolve(CandidateSpan{Raw: "Founders", Category: CategoryRole}, testSnapshot())
	if !entity.Resolved || entity.Value != "Founder" {
		t.Fatalf("Resolve(Founders) = %+v, want Founder", entity)
	}
}

func TestResolveUnknownSpanAmbiguity(t *testing.T) {
	m := newTestMatcher(t)
	snap := NewStaticSnapshot(map[string][]string{
		"experiences.company": {"Meridian"},
		"domains.domain_name": {"Meridian"},
	})

	entity := m.Resolve(CandidateSpan{Raw: "Meridian", Category: CategoryUnknown}, snap)
	if entity.Resolved {
		t.Errorf("Resolve(ambiguous unknown span) resolved to %s.%s, want unresolved", entity.Table, entity.Column)
	}
}

func TestResolveUnknownSpanSingleColumn(t *testing.T) {
	m := newTestMatcher(t)

	entity := m.Resolve(CandidateSpan{Raw: "Fintech", Category: CategoryUnknown}, testSnapshot())
	if !entity.Resolved {
		t.Fatalf("Resolve(Fintech) unresolved: %+v", entity)
	}
	if entity.Table != "domains" || entity.Column != "domain_name" {
		t.Errorf("source column = %s.%s, want domains.domain_name", entity.Table, entity.Column)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"stripe", "stripe", 1},
		{"Stripe", "stripe", 1},
		{"", "", 1},
		{"abcd", "abce", 0.75},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
