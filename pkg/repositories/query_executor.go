package repositories

import (
	"context"
	"fmt"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
	"github.com/Sumhack/community-search-api/pkg/database"
)

// QueryExecutor runs validated read-only queries against the store.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlQuery string, maxRows int) (columns []string, rows []map[string]any, err error)
}

type queryExecutor struct {
	db *database.DB
}

// NewQueryExecutor creates a query executor backed by PostgreSQL.
func NewQueryExecutor(db *database.DB) QueryExecutor {
	return &queryExecutor{db: db}
}

// Execute runs the query, bounded to maxRows rows when maxRows > 0. Rows are
// keyed by column name from the result's own field descriptions. Store
// failures and timeouts surface as ExecutionError.
func (e *queryExecutor) Execute(ctx context.Context, sqlQuery string, maxRows int) ([]string, []map[string]any, error) {
	queryToRun := sqlQuery
	if maxRows > 0 {
		queryToRun = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, maxRows)
	}

	rows, err := e.db.Query(ctx, queryToRun)
	if err != nil {
		return nil, nil, apperrors.NewExecutionError(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, apperrors.NewExecutionError(err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewExecutionError(err)
	}

	return columns, resultRows, nil
}
