package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/docintel/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAI is a provider for the OpenAI Responses API
type OpenAI struct {
	HTTPClient *http.Client
}

// New returns a new OpenAI provider
func New() *OpenAI {
	return &OpenAI{
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type textFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`
	Strict bool           `json:"strict,omitempty"`
}

type responsesRequest struct {
	Model           string    `json:"model"`
	Instructions    string    `json:"instructions,omitempty"`
	Input           string    `json:"input"`
	Temperature     *float64  `json:"temperature,omitempty"`
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
	Reasoning       *struct {
		Effort string `json:"effort"`
	} `json:"reasoning,omitempty"`
	Text *struct {
		Format textFormat `json:"format"`
	} `json:"text,omitempty"`
}

type responsesResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Refusal string `json:"refusal"`
		} `json:"content"`
	} `json:"output"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

// GenerateText sends the prompts to the Responses API and returns the output text.
func (o *OpenAI) GenerateText(ctx context.Context, req providers.Request) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable: %w", providers.ErrMissingAPIKey)
	}

	baseURL := strings.TrimSuffix(os.Getenv("OPENAI_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	body := responsesRequest{
		Model:           req.Model,
		Instructions:    req.SystemPrompt,
		Input:           req.UserPrompt,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.ReasoningEffort != "" {
		body.Reasoning = &struct {
			Effort string `json:"effort"`
		}{Effort: string(req.ReasoningEffort)}
	}
	if req.ResponseSchema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		body.Text = &struct {
			Format textFormat `json:"format"`
		}{Format: textFormat{Type: "json_schema", Name: name, Schema: req.ResponseSchema, Strict: strictCompatible(req.ResponseSchema)}}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/responses", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

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
		return "", &providers.APIError{Provider: "openai", StatusCode: resp.StatusCode, Body: string(b)}
	}

	var response responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	var text strings.Builder
	for _, item := range response.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				text.WriteString(c.Text)
			case "refusal":
				return "", fmt.Errorf("model refused the request: %s", c.Refusal)
			}
		}
	}

	if text.Len() == 0 {
		if response.IncompleteDetails != nil {
			return "", fmt.Errorf("response incomplete: %s", response.IncompleteDetails.Reason)
		}
		return "", fmt.Errorf("no output text returned from OpenAI (status %q)", response.Status)
	}

	return text.String(), nil
}

// strictCompatible reports whether every object in schema declares its
// properties. Strict mode rejects free-form objects such as a "dict" field.
func strictCompatible(schema map[string]any) bool {
	if isObjectType(schema["type"]) {
		props, ok := schema["properties"].(map[string]any)
		if !ok {
			return false
		}
		for _, p := range props {
			child, ok := p.(map[string]any)
			if ok && !strictCompatible(child) {
				return false
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		return strictCompatible(items)
	}
	return true
}

func isObjectType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "object"
	case []any:
		for _, s := range v {
			if s == "object" {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == "object" {
				return true
			}
		}
	}
	return false
}
