package pipeline

import (
	"testing"
)

func findSpan(spans []CandidateSpan, raw string) *CandidateSpan {
	for i := range spans {
		if spans[i].Raw == raw {
			return &spans[i]
		}
	}
	return nil
}

func TestExtractAnchoredSpans(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name     string
		question string
		raw      string
		category SpanCategory
	}{
		{
			name:     "organization after at",
			question: "Who worked at Stirpe?",
			raw:      "Stirpe",
			category: CategoryOrganization,
		},
		{
			name:     "organization after studied at",
			question: "Who studied at Stanford?",
			raw:      "Stanford",
			category: CategoryOrganization,
		},
		{
			name:     "location after in",
			question: "Who lives in Bangalore?",
			raw:      "Bangalore",
			category: CategoryLocation,
		},
		{
			name:     "person after named",
			question: "Is there anyone named Priya?",
			raw:      "Priya",
			category: CategoryPerson,
		},
		{
			name:     "unanchored capitalized span is unknown",
			question: "Does anyone know Figma?",
			raw:      "Figma",
			category: CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := e.Extract(tt.question)
			span := findSpan(spans, tt.raw)
			if span == nil {
				t.Fatalf("Extract(%q) missing span %q, got %+v", tt.question, tt.raw, spans)
			}
			if span.Category != tt.category {
				t.Errorf("span %q category = %q, want %q", tt.raw, span.Category, tt.category)
			}
		})
	}
}

func TestExtractMultiTokenSpan(t *testing.T) {
	e := NewExtractor()

	spans := e.Extract("Who worked at Bank of America before 2015?")
	span := findSpan(spans, "Bank of America")
	if span == nil {
		t.Fatalf("Extract() missing multi-token span, got %+v", spans)
	}
	if span.Category != CategoryOrganization {
		t.Errorf("category = %q, want organization", span.Category)
	}

	year := findSpan(spans, "2015")
	if year == nil {
		t.Fatal("Extract() missing year span")
	}
	if year.Category != CategoryUnknown {
		t.Errorf("year category = %q, want unknown", year.Category)
	}
}

func TestExtractSkipsQuestionStarters(t *testing.T) {
	e := NewExtractor()

	spans := e.Extract("Who worked at Stripe?")
	if findSpan(spans, "Who") != nil {
		t.Errorf("Extract() emitted question starter as span: %+v", spans)
	}
}

func TestExtractNoEntities(t *testing.T) {
	e := NewExtractor()

	if spans := e.Extract("how many people are registered?"); len(spans) != 0 {
		t.Errorf("Extract(no entities) = %+v, want none", spans)
	}
}
