package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
	"github.com/Sumhack/community-search-api/pkg/models"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QuestionResolver answers one free-text question with a uniform envelope.
type QuestionResolver interface {
	Resolve(ctx context.Context, question string) *models.Envelope
}

// QueryHandler exposes the query-resolution pipeline over HTTP.
type QueryHandler struct {
	pipeline QuestionResolver
	logger   *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(p QuestionResolver, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{pipeline: p, logger: logger}
}

// RegisterRoutes registers the query route on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.Query)
}

// Query handles POST /query. The envelope always carries the outcome; the
// HTTP status distinguishes malformed input (400), upstream synthesis
// failures (502), and store errors (500).
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field")
		return
	}

	envelope := h.pipeline.Resolve(r.Context(), req.Question)
	if envelope.Success {
		if err := WriteJSON(w, http.StatusOK, envelope); err != nil {
			h.logger.Error("failed to write query response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, statusForFailure(envelope.Err), envelope); err != nil {
		h.logger.Error("failed to write query response", zap.Error(err))
	}
}

// statusForFailure maps a pipeline error to an HTTP status: malformed or
// unsafe input is the caller's fault, translation failures are an upstream
// problem, everything else is internal.
func statusForFailure(err error) int {
	var synthErr *apperrors.SynthesisError
	switch {
	case apperrors.IsUserError(err):
		return http.StatusBadRequest
	case errors.As(err, &synthErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
