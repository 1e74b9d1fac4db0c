// Package models holds the shared data shapes exchanged between the pipeline,
// the HTTP handlers, and the repositories.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ResolvedEntity is a candidate span matched to a canonical value from the
// store. An unresolved span keeps its raw text as Value with Resolved false.
type ResolvedEntity struct {
	Raw        string  `json:"raw"`
	Value      string  `json:"value"`
	Table      string  `json:"table,omitempty"`
	Column     string  `json:"column,omitempty"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Resolved   bool    `json:"resolved"`
}

// QueryResult carries the executed rows. Rows are keyed by column name using
// the result set's own metadata, never positional order.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// Envelope is the uniform response returned for every question, success or
// failure. Error is set only when Success is false.
type Envelope struct {
	RequestID string           `json:"request_id"`
	Success   bool             `json:"success"`
	Question  string           `json:"question"`
	SQL       string           `json:"sql,omitempty"`
	Entities  []ResolvedEntity `json:"entities,omitempty"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	Results   []map[string]any `json:"results"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Error     string           `json:"error,omitempty"`

	// Err is the typed error behind Error, for status mapping. Never
	// serialized.
	Err error `json:"-"`
}

// SearchQuery is one row of the query-history log. A row with an empty
// ErrorMessage records a successful resolution.
type SearchQuery struct {
	ID           int64
	RequestID    uuid.UUID
	Question     string
	GeneratedSQL string
	RowCount     int
	DurationMs   int64
	ErrorMessage string
	CreatedAt    time.Time
}
