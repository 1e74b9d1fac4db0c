package repositories

import (
	"context"
	"fmt"

	"github.com/Sumhack/community-search-api/pkg/database"
	"github.com/Sumhack/community-search-api/pkg/models"
)

// QueryHistoryRepository records processed questions for later analysis.
type QueryHistoryRepository interface {
	Record(ctx context.Context, entry *models.SearchQuery) error
	Recent(ctx context.Context, limit int) ([]models.SearchQuery, error)
}

type queryHistoryRepository struct {
	db *database.DB
}

// NewQueryHistoryRepository creates a query-history repository backed by
// PostgreSQL.
func NewQueryHistoryRepository(db *database.DB) QueryHistoryRepository {
	return &queryHistoryRepository{db: db}
}

// Record inserts one history row.
func (r *queryHistoryRepository) Record(ctx context.Context, entry *models.SearchQuery) error {
	query := `
		INSERT INTO search_queries (request_id, original_query, generated_sql, results_count, execution_time_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`

	_, err := r.db.Exec(ctx, query,
		entry.RequestID,
		entry.Question,
		entry.GeneratedSQL,
		entry.RowCount,
		entry.DurationMs,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record search query: %w", err)
	}
	return nil
}

// Recent returns the most recent history rows, newest first.
func (r *queryHistoryRepository) Recent(ctx context.Context, limit int) ([]models.SearchQuery, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT query_id, request_id, original_query, COALESCE(generated_sql, ''), COALESCE(results_count, 0),
		       COALESCE(execution_time_ms, 0), COALESCE(error_message, ''), created_at
		FROM search_queries
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read search query history: %w", err)
	}
	defer rows.Close()

	var entries []models.SearchQuery
	for rows.Next() {
		var e models.SearchQuery
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Question, &e.GeneratedSQL,
			&e.RowCount, &e.DurationMs, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search query row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search query history: %w", err)
	}

	return entries, nil
}
