// Package services holds the application services that sit between the HTTP
// handlers and the repositories: bulk CSV ingestion and the known-values
// cache refresh lifecycle.
package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/database"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

// IngestionService bulk-loads directory data from CSV exports. After a
// successful load the caller is expected to invalidate the known-values
// cache; ingestion itself does not touch pipeline state.
type IngestionService struct {
	db     *database.DB
	schema *schema.Descriptor
	logger *zap.Logger
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(db *database.DB, d *schema.Descriptor, logger *zap.Logger) *IngestionService {
	return &IngestionService{db: db, schema: d, logger: logger.Named("ingestion")}
}

// IngestCSV loads rows from a CSV export into one directory table. The first
// record must be a header naming columns of the target table; empty cells
// load as NULL. Returns the number of rows written. The whole load runs as
// one CopyFrom, so a malformed row aborts the load without partial writes
// surviving the failed copy.
func (s *IngestionService) IngestCSV(ctx context.Context, table string, r io.Reader) (int64, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if !s.schema.HasTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if !s.schema.HasColumn(table, col) {
			return 0, fmt.Errorf("unknown column %q for table %q", col, table)
		}
		columns[i] = col
	}

	copied, err := s.db.CopyFrom(ctx, pgx.Identifier{table}, columns, &csvCopySource{reader: reader, width: len(columns)})
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows into %s: %w", table, err)
	}

	s.logger.Info("CSV ingested",
		zap.String("table", table),
		zap.Int64("rows", copied))
	return copied, nil
}

// csvCopySource adapts a csv.Reader to pgx.CopyFromSource, streaming records
// without buffering the whole file.
type csvCopySource struct {
	reader *csv.Reader
	width  int
	record []string
	err    error
}

func (s *csvCopySource) Next() bool {
	record, err := s.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		s.err = err
		return false
	}
	if len(record) != s.width {
		s.err = fmt.Errorf("row has %d fields, header has %d", len(record), s.width)
		return false
	}
	s.record = record
	return true
}

func (s *csvCopySource) Values() ([]any, error) {
	values := make([]any, len(s.record))
	for i, cell := range s.record {
		if cell == "" {
			values[i] = nil
			continue
		}
		values[i] = cell
	}
	return values, nil
}

func (s *csvCopySource) Err() error {
	return s.err
}
