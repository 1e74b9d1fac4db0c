package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
	"github.com/Sumhack/community-search-api/pkg/llm"
	"github.com/Sumhack/community-search-api/pkg/models"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

func TestSynthesizeStripsMarkdownFences(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "```sql\nSELECT first_name FROM members\n```", nil
	}
	s := NewSynthesizer(client, schema.Directory(), 0, zap.NewNop())

	candidate, err := s.Synthesize(context.Background(), []string{"who"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT first_name FROM members", candidate)
}

func TestSynthesizePromptCarriesResolvedEntities(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "SELECT 1", nil
	}
	s := NewSynthesizer(client, schema.Directory(), 0, zap.NewNop())

	entities := []models.ResolvedEntity{
		{Raw: "Stirpe", Value: "Stripe", Table: "experiences", Column: "company", Resolved: true},
		{Raw: "Zebulon", Value: "Zebulon"},
	}
	_, err := s.Synthesize(context.Background(), []string{"who", "worked", "at", "stirpe"}, entities)
	require.NoError(t, err)

	require.Len(t, client.Prompts, 1)
	prompt := client.Prompts[0]
	assert.Contains(t, prompt, `experiences.company = "Stripe"`)
	assert.Contains(t, prompt, "Zebulon")
	assert.Contains(t, prompt, "members")
}

func TestSynthesizeRetriesRetryableFailureOnce(t *testing.T) {
	client := llm.NewMockClient()
	calls := 0
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		calls++
		if calls == 1 {
			return "", &llm.Error{Type: llm.ErrorTypeEndpoint, Message: "timeout", Retryable: true}
		}
		return "SELECT first_name FROM members", nil
	}
	s := NewSynthesizer(client, schema.Directory(), 0, zap.NewNop())

	candidate, err := s.Synthesize(context.Background(), []string{"who"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT first_name FROM members", candidate)
	assert.Equal(t, 2, calls)
}

func TestSynthesizeDoesNotRetryPermanentFailure(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "", &llm.Error{Type: llm.ErrorTypeAuth, Message: "bad key", Retryable: false}
	}
	s := NewSynthesizer(client, schema.Directory(), 0, zap.NewNop())

	_, err := s.Synthesize(context.Background(), []string{"who"}, nil)
	var synthErr *apperrors.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, 1, client.GenerateResponseCalls)
}

func TestSynthesizeEmptyResponse(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "   ", nil
	}
	s := NewSynthesizer(client, schema.Directory(), 0, zap.NewNop())

	_, err := s.Synthesize(context.Background(), []string{"who"}, nil)
	var synthErr *apperrors.SynthesisError
	require.ErrorAs(t, err, &synthErr)
}

func TestSubstituteCanonicalValues(t *testing.T) {
	entities := []models.ResolvedEntity{
		{Raw: "Stirpe", Value: "Stripe", Resolved: true},
	}
	got := substituteCanonicalValues("SELECT * FROM experiences WHERE company = 'stirpe'", entities)
	assert.Equal(t, "SELECT * FROM experiences WHERE company = 'Stripe'", got)
}

func TestSubstituteLeavesLongerTokensAlone(t *testing.T) {
	entities := []models.ResolvedEntity{
		{Raw: "Meta", Value: "Meta Platforms", Resolved: true},
	}
	got := substituteCanonicalValues("SELECT metadata FROM experiences WHERE company = 'Meta'", entities)
	assert.Equal(t, "SELECT metadata FROM experiences WHERE company = 'Meta Platforms'", got)
}

func TestSubstituteEscapesQuotes(t *testing.T) {
	entities := []models.ResolvedEntity{
		{Raw: "OBrien", Value: "O'Brien & Co", Resolved: true},
	}
	got := substituteCanonicalValues("SELECT * FROM experiences WHERE company = 'OBrien'", entities)
	assert.Equal(t, "SELECT * FROM experiences WHERE company = 'O''Brien & Co'", got)
}
