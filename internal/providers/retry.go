package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxAttempts is how many times a request is sent before giving up.
const DefaultMaxAttempts = 3

// Retrying retries transient provider failures with exponential backoff.
type Retrying struct {
	Provider    Provider
	MaxAttempts int
	// NewBackOff builds the delay policy for one call. Nil uses an
	// exponential backoff starting at one second.
	NewBackOff func() backoff.BackOff
}

// WithRetry wraps p so each call is attempted up to DefaultMaxAttempts times.
func WithRetry(p Provider) *Retrying {
	return &Retrying{Provider: p, MaxAttempts: DefaultMaxAttempts}
}

func (r *Retrying) GenerateText(ctx context.Context, req Request) (string, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff
	if r.NewBackOff != nil {
		b = r.NewBackOff()
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = time.Second
		exp.MaxElapsedTime = 2 * time.Minute
		b = exp
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	attempt := 0
	op := func() (string, error) {
		attempt++
		text, err := r.Provider.GenerateText(ctx, req)
		if err == nil {
			return text, nil
		}
		if !IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("LLM request failed, retrying", "attempt", attempt, "max_attempts", attempts, "wait", wait, "err", err)
	}

	return backoff.RetryNotifyWithData(op, b, notify)
}

// IsRetryable reports whether err is worth another attempt. Missing
// credentials, cancelled contexts and client errors other than 429 are not.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
