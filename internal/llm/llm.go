// Package llm selects and configures the LLM provider used for extraction.
package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/docintel/internal/gemini"
	"github.com/lehigh-university-libraries/docintel/internal/ollama"
	"github.com/lehigh-university-libraries/docintel/internal/openai"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
)

const (
	OpenAI = "openai"
	Gemini = "gemini"
	Ollama = "ollama"

	// DefaultModel is used for OpenAI when no model is configured.
	DefaultModel = "gpt-5-mini"
)

var (
	mu     sync.Mutex
	shared = map[string]providers.Provider{}
)

// DefaultProvider returns DOCINTEL_PROVIDER, or openai.
func DefaultProvider() string {
	if p := os.Getenv("DOCINTEL_PROVIDER"); p != "" {
		return strings.ToLower(p)
	}
	return OpenAI
}

// DefaultModelFor returns the model used when none is configured.
func DefaultModelFor(provider string) string {
	if m := os.Getenv("DOCINTEL_MODEL"); m != "" {
		return m
	}
	switch provider {
	case Gemini:
		if m := os.Getenv("GEMINI_MODEL"); m != "" {
			return m
		}
		return "gemini-2.5-flash"
	case Ollama:
		if m := os.Getenv("OLLAMA_MODEL"); m != "" {
			return m
		}
		return "mistral-small3.2:24b"
	default:
		if m := os.Getenv("OPENAI_MODEL"); m != "" {
			return m
		}
		return DefaultModel
	}
}

// NewProvider returns the named provider wrapped with retries and a rate
// limiter. Providers are shared per process so concurrent callers draw from
// the same rate limit. An empty name selects DefaultProvider.
func NewProvider(name string) (providers.Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultProvider()
	}

	mu.Lock()
	defer mu.Unlock()
	if p, ok := shared[name]; ok {
		return p, nil
	}

	var base providers.Provider
	switch name {
	case OpenAI:
		base = openai.New()
	case Gemini:
		base = gemini.New()
	case Ollama:
		base = ollama.New()
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: openai, gemini, ollama)", name)
	}

	rps, burst := rateLimit()
	p := providers.WithRetry(providers.WithRateLimit(base, rps, burst))
	shared[name] = p
	slog.Debug("LLM provider ready", "provider", name, "requests_per_second", rps, "burst", burst)
	return p, nil
}

// rateLimit reads LLM_REQUESTS_PER_SECOND and LLM_BURST. Zero disables limiting.
func rateLimit() (float64, int) {
	rps := 2.0
	if v := os.Getenv("LLM_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rps = f
		} else {
			slog.Warn("Ignoring invalid LLM_REQUESTS_PER_SECOND", "value", v)
		}
	}
	burst := 4
	if v := os.Getenv("LLM_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			burst = n
		} else {
			slog.Warn("Ignoring invalid LLM_BURST", "value", v)
		}
	}
	return rps, burst
}
