package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/repositories"
	"github.com/Sumhack/community-search-api/pkg/schema"
)

// Snapshot is an immutable view of the known distinct values per indexed
// column, keyed by "table.column". Concurrent requests each hold a reference
// to one snapshot for their lifetime; a refresh swaps in a replacement
// atomically and never mutates an existing snapshot.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	values   map[string][]string
}

// Values returns the known values for an indexed column key, or nil.
func (s *Snapshot) Values(key string) []string {
	return s.values[key]
}

// ValuesCache holds the current known-values snapshot for the fuzzy matcher.
type ValuesCache struct {
	repo    repositories.ValuesRepository
	schema  *schema.Descriptor
	logger  *zap.Logger
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

// NewValuesCache creates an empty cache. Call Refresh before serving requests.
func NewValuesCache(repo repositories.ValuesRepository, d *schema.Descriptor, logger *zap.Logger) *ValuesCache {
	c := &ValuesCache{repo: repo, schema: d, logger: logger}
	c.current.Store(&Snapshot{values: map[string][]string{}})
	return c
}

// Current returns the active snapshot. Never nil, never blocks.
func (c *ValuesCache) Current() *Snapshot {
	return c.current.Load()
}

// Refresh loads a fresh snapshot from the store and swaps it in. On failure
// the previous snapshot stays active.
func (c *ValuesCache) Refresh(ctx context.Context) error {
	values := make(map[string][]string)
	total := 0
	for _, col := range c.schema.IndexedColumns() {
		vals, err := c.repo.DistinctValues(ctx, col)
		if err != nil {
			return fmt.Errorf("failed to refresh known values for %s: %w", col.Key(), err)
		}
		values[col.Key()] = vals
		total += len(vals)
	}

	snapshot := &Snapshot{
		Version:  c.version.Add(1),
		LoadedAt: time.Now(),
		values:   values,
	}
	c.current.Store(snapshot)

	c.logger.Info("known-values cache refreshed",
		zap.Int64("version", snapshot.Version),
		zap.Int("columns", len(values)),
		zap.Int("values", total))
	return nil
}

// NewStaticSnapshot builds a snapshot from fixed values, for tests.
func NewStaticSnapshot(values map[string][]string) *Snapshot {
	return &Snapshot{Version: 1, LoadedAt: time.Now(), values: values}
}
