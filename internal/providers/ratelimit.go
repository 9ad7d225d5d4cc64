package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a provider using a token bucket.
type RateLimited struct {
	Provider Provider
	limiter  *rate.Limiter
}

// WithRateLimit allows requestsPerSecond calls on average with bursts of up to burst.
// A non-positive rate disables limiting.
func WithRateLimit(p Provider, requestsPerSecond float64, burst int) *RateLimited {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

func (r *RateLimited) GenerateText(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.Provider.GenerateText(ctx, req)
}
