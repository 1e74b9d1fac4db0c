package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/repositories"
	"github.com/Sumhack/community-search-api/pkg/services"
)

// AdminHandler exposes the operational endpoints: CSV ingestion, cache
// refresh, and the query-history log. All routes require the admin key in
// the X-Admin-Key header.
type AdminHandler struct {
	ingestion *services.IngestionService
	refresher *services.CacheRefresher
	history   repositories.QueryHistoryRepository
	adminKey  string
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	ingestion *services.IngestionService,
	refresher *services.CacheRefresher,
	history repositories.QueryHistoryRepository,
	adminKey string,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		ingestion: ingestion,
		refresher: refresher,
		history:   history,
		adminKey:  adminKey,
		logger:    logger,
	}
}

// RegisterRoutes registers the admin routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/ingest", h.requireKey(h.Ingest))
	mux.HandleFunc("POST /admin/refresh-cache", h.requireKey(h.RefreshCache))
	mux.HandleFunc("GET /admin/history", h.requireKey(h.History))
}

// requireKey guards a route with a constant-time admin key comparison.
func (h *AdminHandler) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminKey == "" {
			_ = ErrorResponse(w, http.StatusForbidden, "admin_disabled", "admin endpoints are not configured")
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "invalid admin key")
			return
		}
		next(w, r)
	}
}

// Ingest handles POST /admin/ingest?table=<name>. The request body is the
// CSV export for that table. A successful load invalidates the known-values
// cache so new entities become matchable.
func (h *AdminHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_table", "table query parameter is required")
		return
	}

	rows, err := h.ingestion.IngestCSV(r.Context(), table, r.Body)
	if err != nil {
		h.logger.Warn("ingestion failed",
			zap.String("table", table),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadRequest, "ingestion_failed", err.Error())
		return
	}

	h.refresher.Invalidate()
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"table": table,
		"rows":  rows,
	})
}

// RefreshCache handles POST /admin/refresh-cache.
func (h *AdminHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	h.refresher.Invalidate()
	_ = WriteJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

// History handles GET /admin/history?limit=N.
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read query history", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "history_unavailable", "failed to read query history")
		return
	}

	type historyEntry struct {
		RequestID    string `json:"request_id"`
		Question     string `json:"question"`
		GeneratedSQL string `json:"generated_sql,omitempty"`
		RowCount     int    `json:"row_count"`
		DurationMs   int64  `json:"duration_ms"`
		Error        string `json:"error,omitempty"`
		CreatedAt    string `json:"created_at"`
	}
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			RequestID:    e.RequestID.String(),
			Question:     e.Question,
			GeneratedSQL: e.GeneratedSQL,
			RowCount:     e.RowCount,
			DurationMs:   e.DurationMs,
			Error:        e.ErrorMessage,
			CreatedAt:    e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	_ = WriteJSON(w, http.StatusOK, out)
}
