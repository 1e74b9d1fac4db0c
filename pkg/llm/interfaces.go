// Package llm provides clients for the external SQL translation capability.
package llm

import (
	"context"
)

// Client defines the interface for the translation capability: given a prompt
// and a system message, produce a completion. Use this interface for
// dependency injection to enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure implementations satisfy Client at compile time.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
