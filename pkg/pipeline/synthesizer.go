package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
	"github.com/Sumhack/community-search-api/pkg/llm"
	"github.com/Sumhack/community-search-api/pkg/models"
	"github.com/Sumhack/community-search-api/pkg/retry"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

const synthesisSystemMessage = `You are a PostgreSQL query generator for a community member directory. ` +
	`Given a question and the database schema, respond with exactly one read-only SELECT statement and nothing else. ` +
	`Never generate INSERT, UPDATE, DELETE, DROP, ALTER or any other mutating statement. ` +
	`Use ILIKE for text comparisons unless an exact canonical value is provided. ` +
	`Do not wrap the query in markdown fences or add commentary.`

const synthesisTemperature = 0.0

var sqlFencePattern = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// Synthesizer asks the translation capability for a candidate query and
// substitutes resolved canonical values for the user's noisy spans.
type Synthesizer struct {
	client  llm.Client
	schema  *schema.Descriptor
	timeout time.Duration
	logger  *zap.Logger
}

// NewSynthesizer creates a synthesizer on top of a translation client.
// Timeout bounds a single capability call; zero disables the bound.
func NewSynthesizer(client llm.Client, d *schema.Descriptor, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{client: client, schema: d, timeout: timeout, logger: logger.Named("synthesizer")}
}

// Synthesize builds the translation prompt from the normalized question and
// the resolved entities, calls the capability with a single retry on
// retryable failures, and returns the cleaned candidate SQL. Failures
// surface as SynthesisError.
func (s *Synthesizer) Synthesize(ctx context.Context, tokens []string, entities []models.ResolvedEntity) (string, error) {
	prompt := s.buildPrompt(tokens, entities)

	raw, err := retry.DoIfRetryable(ctx, retry.SynthesisConfig(), func() (string, error) {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return s.client.GenerateResponse(callCtx, prompt, synthesisSystemMessage, synthesisTemperature)
	})
	if err != nil {
		return "", apperrors.NewSynthesisError("translation capability failed", err)
	}

	candidate := cleanCandidate(raw)
	if candidate == "" {
		return "", apperrors.NewSynthesisError("translation capability returned no query", nil)
	}

	candidate = substituteCanonicalValues(candidate, entities)

	s.logger.Debug("candidate query synthesized",
		zap.String("model", s.client.GetModel()),
		zap.Int("prompt_chars", len(prompt)))
	return candidate, nil
}

// buildPrompt renders the schema description, the resolved entity values, and
// the normalized question into one request.
func (s *Synthesizer) buildPrompt(tokens []string, entities []models.ResolvedEntity) string {
	var b strings.Builder
	b.WriteString("Database schema:\n")
	b.WriteString(s.schema.Describe())
	b.WriteString("\n")

	resolved := make([]models.ResolvedEntity, 0, len(entities))
	for _, e := range entities {
		if e.Resolved {
			resolved = append(resolved, e)
		}
	}
	if len(resolved) > 0 {
		b.WriteString("\nResolved entity values (use these exact values in equality filters):\n")
		for _, e := range resolved {
			fmt.Fprintf(&b, "- %q refers to %s.%s = %q\n", e.Raw, e.Table, e.Column, e.Value)
		}
	}

	unresolvedNoted := false
	for _, e := range entities {
		if !e.Resolved {
			if !unresolvedNoted {
				b.WriteString("\nUnmatched terms (filter with ILIKE '%term%' on the most plausible column):\n")
				unresolvedNoted = true
			}
			fmt.Fprintf(&b, "- %q\n", e.Raw)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", strings.Join(tokens, " "))
	return b.String()
}

// cleanCandidate strips markdown fences and stray prefixes from the
// capability's free-form response.
func cleanCandidate(raw string) string {
	text := strings.TrimSpace(raw)
	if m := sqlFencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "sql\n")
	return strings.TrimSpace(text)
}

// substituteCanonicalValues replaces each resolved span's raw text with its
// canonical value inside the candidate query, so typos never reach the store
// even when the capability echoes the user's spelling.
func substituteCanonicalValues(candidate string, entities []models.ResolvedEntity) string {
	for _, e := range entities {
		if !e.Resolved || e.Raw == e.Value || strings.TrimSpace(e.Raw) == "" {
			continue
		}
		// Whole-token match only, so a span never rewrites part of a
		// longer identifier or literal.
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(e.Raw) + `\b`)
		if err != nil {
			continue
		}
		replacement := strings.ReplaceAll(e.Value, "'", "''")
		candidate = pattern.ReplaceAllLiteralString(candidate, replacement)
	}
	return candidate
}
