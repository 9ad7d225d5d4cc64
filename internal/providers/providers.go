package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ReasoningEffort controls how much the model thinks before answering
type ReasoningEffort string

const (
	EffortMinimal ReasoningEffort = "minimal"
	EffortLow     ReasoningEffort = "low"
	EffortMedium  ReasoningEffort = "medium"
	EffortHigh    ReasoningEffort = "high"
)

// ParseReasoningEffort validates an effort string. An empty string means
// the provider default.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	switch e := ReasoningEffort(s); e {
	case "", EffortMinimal, EffortLow, EffortMedium, EffortHigh:
		return e, nil
	default:
		return "", fmt.Errorf("invalid reasoning effort %q (must be minimal, low, medium or high)", s)
	}
}

// Request represents a single structured-output call to an LLM provider
type Request struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	ReasoningEffort ReasoningEffort
	Temperature     *float64
	MaxOutputTokens int

	// SchemaName and ResponseSchema request JSON output matching the schema
	// when the provider supports it.
	SchemaName     string
	ResponseSchema map[string]any
}

// Provider defines the interface for an LLM provider
type Provider interface {
	GenerateText(ctx context.Context, req Request) (string, error)
}

// ErrMissingAPIKey is returned when a provider's API key is not configured.
var ErrMissingAPIKey = errors.New("API key not set")

// APIError is a non-200 response from a provider API
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
