package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/llm"
	"github.com/Sumhack/community-search-api/pkg/repositories"
	"github.com/Sumhack/community-search-api/pkg/schema"
	"github.com/Sumhack/community-search-api/pkg/sqlguard"
)

type fakeValuesRepo struct {
	values map[string][]string
}

func (f *fakeValuesRepo) DistinctValues(_ context.Context, col schema.IndexedColumn) ([]string, error) {
	return f.values[col.Key()], nil
}

type fakeExecutor struct {
	columns  []string
	rows     []map[string]any
	err      error
	executed []string
}

func (f *fakeExecutor) Execute(_ context.Context, sqlQuery string, _ int) ([]string, []map[string]any, error) {
	f.executed = append(f.executed, sqlQuery)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.columns, f.rows, nil
}

func newTestPipeline(t *testing.T, client llm.Client, executor repositories.QueryExecutor) *Pipeline {
	t.Helper()
	logger := zap.NewNop()
	d := schema.Directory()

	cache := NewValuesCache(&fakeValuesRepo{values: map[string][]string{
		"experiences.company": {"Google", "Razorpay", "Stripe"},
		"education.institute": {"IIT Bombay", "Stanford University"},
		"experiences.role":    {"Founder", "Software Engineer"},
		"members.first_name":  {"Anita", "Priya"},
	}}, d, logger)
	require.NoError(t, cache.Refresh(context.Background()))

	return New(
		NewNormalizer(500, map[string]string{"firm": "company"}),
		NewExtractor(),
		NewMatcher(d, 0.75, nil),
		cache,
		NewSynthesizer(client, d, 0, logger),
		sqlguard.NewValidator(d),
		NewShaper(executor, 200, 5*time.Second),
		nil,
		logger,
	)
}

func TestResolveMisspelledQuestionEndToEnd(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		// The capability echoes the user's misspelling.
		return "SELECT m.first_name, m.last_name FROM members m JOIN experiences e ON m.member_id = e.member_id WHERE e.company = 'Stirpe'", nil
	}
	executor := &fakeExecutor{
		columns: []string{"first_name", "last_name"},
		rows:    []map[string]any{{"first_name": "Priya", "last_name": "Sharma"}},
	}
	p := newTestPipeline(t, client, executor)

	envelope := p.Resolve(context.Background(), "Who worked at Stirpe?")

	require.True(t, envelope.Success, "envelope error: %s", envelope.Error)
	assert.Contains(t, envelope.SQL, "'Stripe'", "canonical value substituted into final query")
	assert.NotContains(t, envelope.SQL, "Stirpe")
	assert.Equal(t, 1, envelope.RowCount)
	assert.False(t, envelope.Truncated)

	require.Len(t, envelope.Entities, 1)
	entity := envelope.Entities[0]
	assert.True(t, entity.Resolved)
	assert.Equal(t, "Stirpe", entity.Raw)
	assert.Equal(t, "Stripe", entity.Value)
	assert.Greater(t, entity.Confidence, 0.75)
}

func TestResolveRejectsUnsafeCandidate(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "DROP TABLE members; SELECT * FROM members", nil
	}
	executor := &fakeExecutor{}
	p := newTestPipeline(t, client, executor)

	envelope := p.Resolve(context.Background(), "Who worked at Stripe?")

	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Error, "unsafe query")
	assert.Empty(t, executor.executed, "store must never see a rejected query")
}

func TestResolveZeroEntityQuestion(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "```sql\nSELECT count(*) AS total FROM members\n```", nil
	}
	executor := &fakeExecutor{
		columns: []string{"total"},
		rows:    []map[string]any{{"total": int64(42)}},
	}
	p := newTestPipeline(t, client, executor)

	envelope := p.Resolve(context.Background(), "how many people are registered?")

	require.True(t, envelope.Success, "envelope error: %s", envelope.Error)
	assert.Empty(t, envelope.Entities)
	assert.Equal(t, "SELECT count(*) AS total FROM members", envelope.SQL)
	assert.Equal(t, 1, envelope.RowCount)
}

func TestResolveUnresolvablePersonStillSucceeds(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "SELECT m.first_name FROM members m JOIN experiences e ON m.member_id = e.member_id WHERE e.company = 'Stripe' AND m.first_name ILIKE '%Zebulon%'", nil
	}
	executor := &fakeExecutor{columns: []string{"first_name"}, rows: []map[string]any{}}
	p := newTestPipeline(t, client, executor)

	envelope := p.Resolve(context.Background(), "Who named Zebulon worked at Stripe?")

	require.True(t, envelope.Success, "envelope error: %s", envelope.Error)

	var zebulon, stripe bool
	for _, e := range envelope.Entities {
		switch e.Raw {
		case "Zebulon":
			zebulon = true
			assert.False(t, e.Resolved, "no close known value for Zebulon")
		case "Stripe":
			stripe = true
			assert.True(t, e.Resolved)
		}
	}
	assert.True(t, zebulon, "Zebulon span extracted")
	assert.True(t, stripe, "Stripe span extracted")
}

func TestResolveIdempotentAgainstSameSnapshot(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "SELECT first_name FROM members", nil
	}
	executor := &fakeExecutor{
		columns: []string{"first_name"},
		rows:    []map[string]any{{"first_name": "Priya"}},
	}
	p := newTestPipeline(t, client, executor)

	first := p.Resolve(context.Background(), "Who worked at Stirpe?")
	second := p.Resolve(context.Background(), "Who worked at Stirpe?")

	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.RowCount, second.RowCount)
}

func TestResolveInputTooLong(t *testing.T) {
	client := llm.NewMockClient()
	executor := &fakeExecutor{}
	p := newTestPipeline(t, client, executor)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	envelope := p.Resolve(context.Background(), string(long))

	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Error, "maximum length")
	assert.Zero(t, client.GenerateResponseCalls)
}

func TestResolveTruncation(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (string, error) {
		return "SELECT first_name FROM members", nil
	}
	rows := make([]map[string]any, 201)
	for i := range rows {
		rows[i] = map[string]any{"first_name": "x"}
	}
	executor := &fakeExecutor{columns: []string{"first_name"}, rows: rows}
	p := newTestPipeline(t, client, executor)

	envelope := p.Resolve(context.Background(), "list everyone")

	require.True(t, envelope.Success, "envelope error: %s", envelope.Error)
	assert.True(t, envelope.Truncated)
	assert.Equal(t, 200, envelope.RowCount)
}
