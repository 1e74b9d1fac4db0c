package pipeline

import (
	"context"
	"time"

	"github.com/Sumhack/community-search-api/pkg/models"
	"github.com/Sumhack/community-search-api/pkg/repositories"
)

// Shaper executes a validated query and converts the rows into the uniform
// result shape, enforcing the row ceiling.
type Shaper struct {
	executor repositories.QueryExecutor
	rowLimit int
	timeout  time.Duration
}

// NewShaper creates a shaper with the given row ceiling and per-query
// execution timeout.
func NewShaper(executor repositories.QueryExecutor, rowLimit int, timeout time.Duration) *Shaper {
	return &Shaper{executor: executor, rowLimit: rowLimit, timeout: timeout}
}

// Execute runs the validated query. It fetches one row past the ceiling to
// detect truncation; the extra row is dropped and reported via Truncated
// rather than returned.
func (s *Shaper) Execute(ctx context.Context, validatedSQL string) (*models.QueryResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	columns, rows, err := s.executor.Execute(execCtx, validatedSQL, s.rowLimit+1)
	if err != nil {
		return nil, err
	}

	truncated := false
	if len(rows) > s.rowLimit {
		rows = rows[:s.rowLimit]
		truncated = true
	}

	return &models.QueryResult{
		Columns:   columns,
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: truncated,
		ElapsedMs: time.Since(started).Milliseconds(),
	}, nil
}
