package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/logging"
	"github.com/Sumhack/community-search-api/pkg/models"
	"github.com/Sumhack/community-search-api/pkg/repositories"
	"github.com/Sumhack/community-search-api/pkg/sqlguard"
)

// Pipeline is the query-resolution pipeline. Resolve is safe for concurrent
// use; the only shared state is the known-values cache, read through
// immutable snapshots.
type Pipeline struct {
	normalizer  *Normalizer
	extractor   *Extractor
	matcher     *Matcher
	cache       *ValuesCache
	synthesizer *Synthesizer
	validator   *sqlguard.Validator
	shaper      *Shaper
	history     repositories.QueryHistoryRepository
	logger      *zap.Logger
}

// New assembles a pipeline. History may be nil to disable query-history
// logging.
func New(
	normalizer *Normalizer,
	extractor *Extractor,
	matcher *Matcher,
	cache *ValuesCache,
	synthesizer *Synthesizer,
	validator *sqlguard.Validator,
	shaper *Shaper,
	history repositories.QueryHistoryRepository,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		normalizer:  normalizer,
		extractor:   extractor,
		matcher:     matcher,
		cache:       cache,
		synthesizer: synthesizer,
		validator:   validator,
		shaper:      shaper,
		history:     history,
		logger:      logger.Named("pipeline"),
	}
}

// Cache exposes the known-values cache for refresh and invalidation.
func (p *Pipeline) Cache() *ValuesCache {
	return p.cache
}

// Resolve answers one free-text question. It always returns an envelope; on
// failure Success is false and Error carries the typed error's message. No
// state is shared across calls except the cache snapshot taken at entry.
func (p *Pipeline) Resolve(ctx context.Context, question string) *models.Envelope {
	started := time.Now()
	envelope := &models.Envelope{
		RequestID: uuid.NewString(),
		Question:  question,
		Results:   []map[string]any{},
	}
	logger := p.logger.With(zap.String("request_id", envelope.RequestID))

	tokens, err := p.normalizer.Normalize(question)
	if err != nil {
		return p.fail(ctx, logger, envelope, started, err)
	}

	snapshot := p.cache.Current()
	spans := p.extractor.Extract(question)
	entities := make([]models.ResolvedEntity, 0, len(spans))
	canonical := make([]string, 0, len(spans))
	for _, span := range spans {
		entity := p.matcher.Resolve(span, snapshot)
		entities = append(entities, entity)
		if entity.Resolved {
			canonical = append(canonical, entity.Value)
		}
	}
	envelope.Entities = entities

	// Canonical values come from the store but flow into query text, so
	// they are screened like any other untrusted literal.
	if err := sqlguard.ScreenValues(canonical); err != nil {
		return p.fail(ctx, logger, envelope, started, err)
	}

	candidate, err := p.synthesizer.Synthesize(ctx, tokens, entities)
	if err != nil {
		return p.fail(ctx, logger, envelope, started, err)
	}

	validated, err := p.validator.Validate(candidate)
	if err != nil {
		envelope.SQL = candidate
		return p.fail(ctx, logger, envelope, started, err)
	}
	envelope.SQL = validated.Text

	result, err := p.shaper.Execute(ctx, validated.Text)
	if err != nil {
		return p.fail(ctx, logger, envelope, started, err)
	}

	envelope.Success = true
	envelope.RowCount = result.RowCount
	envelope.Truncated = result.Truncated
	envelope.Results = result.Rows
	envelope.ElapsedMs = time.Since(started).Milliseconds()

	logger.Info("question resolved",
		zap.String("question", logging.TruncateString(question, logging.MaxQuestionLogLength)),
		zap.Int("entities", len(entities)),
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Int64("elapsed_ms", envelope.ElapsedMs))

	p.record(ctx, envelope)
	return envelope
}

// fail finalizes the envelope for a terminal error.
func (p *Pipeline) fail(ctx context.Context, logger *zap.Logger, envelope *models.Envelope, started time.Time, err error) *models.Envelope {
	envelope.Success = false
	envelope.Error = err.Error()
	envelope.Err = err
	envelope.ElapsedMs = time.Since(started).Milliseconds()

	logger.Warn("question failed",
		zap.String("question", logging.TruncateString(envelope.Question, logging.MaxQuestionLogLength)),
		zap.String("error", logging.SanitizeError(err)))

	p.record(ctx, envelope)
	return envelope
}

// record logs the request to the query history. Best effort: a history
// failure never fails the request.
func (p *Pipeline) record(ctx context.Context, envelope *models.Envelope) {
	if p.history == nil {
		return
	}

	requestID, err := uuid.Parse(envelope.RequestID)
	if err != nil {
		requestID = uuid.New()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	entry := &models.SearchQuery{
		RequestID:    requestID,
		Question:     envelope.Question,
		GeneratedSQL: envelope.SQL,
		RowCount:     envelope.RowCount,
		DurationMs:   envelope.ElapsedMs,
		ErrorMessage: envelope.Error,
	}
	if err := p.history.Record(recordCtx, entry); err != nil {
		p.logger.Warn("failed to record query history",
			zap.String("request_id", envelope.RequestID),
			zap.String("error", logging.SanitizeError(err)))
	}
}
