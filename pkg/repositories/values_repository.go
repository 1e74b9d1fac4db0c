package repositories

import (
	"context"
	"fmt"

	"github.com/Sumhack/community-search-api/pkg/database"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

// ValuesRepository reads the distinct known values for indexed columns. The
// fuzzy-match cache is built from these reads.
type ValuesRepository interface {
	DistinctValues(ctx context.Context, col schema.IndexedColumn) ([]string, error)
}

type valuesRepository struct {
	db *database.DB
}

// NewValuesRepository creates a values repository backed by PostgreSQL.
func NewValuesRepository(db *database.DB) ValuesRepository {
	return &valuesRepository{db: db}
}

// DistinctValues returns the non-empty distinct values of an indexed column,
// ordered for deterministic snapshots. Table and column names come from the
// static schema descriptor, never from user input.
func (r *valuesRepository) DistinctValues(ctx context.Context, col schema.IndexedColumn) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s <> '' ORDER BY %s`,
		col.Column, col.Table, col.Column, col.Column, col.Column)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read distinct values for %s: %w", col.Key(), err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value for %s: %w", col.Key(), err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating values for %s: %w", col.Key(), err)
	}

	return values, nil
}
