package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/providers"
)

// Ollama is a provider for Ollama
type Ollama struct {
	HTTPClient *http.Client
}

// New returns a new Ollama provider
func New() *Ollama {
	return &Ollama{HTTPClient: &http.Client{}}
}

// BaseURL resolves the Ollama endpoint from OLLAMA_URL or OLLAMA_HOST.
func BaseURL() string {
	for _, key := range []string{"OLLAMA_URL", "OLLAMA_HOST"} {
		if v := os.Getenv(key); v != "" {
			if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
				v = "http://" + v
			}
			return strings.TrimSuffix(v, "/")
		}
	}
	return "http://localhost:11434"
}

// GenerateText sends the prompts to /api/generate. A response schema is
// passed as the structured output format.
func (o *Ollama) GenerateText(ctx context.Context, req providers.Request) (string, error) {
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxOutputTokens > 0 {
		options["num_predict"] = req.MaxOutputTokens
	}

	body := map[string]any{
		"model":   req.Model,
		"prompt":  req.UserPrompt,
		"stream":  false,
		"options": options,
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	if req.ResponseSchema != nil {
		body["format"] = req.ResponseSchema
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, BaseURL()+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return "", &providers.APIError{Provider: "ollama", StatusCode: resp.StatusCode, Body: string(b)}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
