package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/pipeline"
)

// CacheRefresher keeps the known-values cache fresh: a timed interval refresh
// plus an explicit invalidation signal raised after ingestion.
type CacheRefresher struct {
	cache      *pipeline.ValuesCache
	interval   time.Duration
	logger     *zap.Logger
	invalidate chan struct{}
	done       chan struct{}
}

// NewCacheRefresher creates a refresher. Start must be called to begin the
// refresh loop.
func NewCacheRefresher(cache *pipeline.ValuesCache, interval time.Duration, logger *zap.Logger) *CacheRefresher {
	return &CacheRefresher{
		cache:      cache,
		interval:   interval,
		logger:     logger.Named("cache-refresher"),
		invalidate: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start runs the refresh loop until ctx is cancelled. A failed refresh keeps
// the previous snapshot and is retried on the next tick or invalidation.
func (r *CacheRefresher) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-r.invalidate:
			}
			if err := r.cache.Refresh(ctx); err != nil {
				r.logger.Warn("cache refresh failed", zap.Error(err))
			}
		}
	}()
}

// Invalidate requests an immediate refresh. Non-blocking; a pending request
// coalesces with the next one.
func (r *CacheRefresher) Invalidate() {
	select {
	case r.invalidate <- struct{}{}:
	default:
	}
}

// Wait blocks until the refresh loop has exited after context cancellation.
func (r *CacheRefresher) Wait() {
	<-r.done
}
