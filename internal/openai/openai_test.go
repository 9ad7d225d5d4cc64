package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateText(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "completed",
			"output": [
				{"type": "reasoning", "content": []},
				{"type": "message", "content": [{"type": "output_text", "text": "{\"license_name\":"}, {"type": "output_text", "text": "\"MIT\"}"}]}
			]
		}`))
	}))
	defer server.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", server.URL+"/")

	schema := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"license_name": map[string]any{"type": "string"}},
		"additionalProperties": false,
	}
	text, err := New().GenerateText(context.Background(), providers.Request{
		Model:           "gpt-5-mini",
		SystemPrompt:    "system",
		UserPrompt:      "user",
		ReasoningEffort: providers.EffortLow,
		SchemaName:      "license",
		ResponseSchema:  schema,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"license_name":"MIT"}`, text)

	assert.Equal(t, "gpt-5-mini", captured["model"])
	assert.Equal(t, "system", captured["instructions"])
	assert.Equal(t, "user", captured["input"])
	assert.Equal(t, map[string]any{"effort": "low"}, captured["reasoning"])
	assert.NotContains(t, captured, "temperature")

	format := captured["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "license", format["name"])
	assert.Equal(t, true, format["strict"])
	assert.Equal(t, schema, format["schema"])
}

func TestStrictCompatible(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		want   bool
	}{
		{"flat object", `{"type": "object", "properties": {"a": {"type": ["string", "null"]}}}`, true},
		{"nested object", `{"type": "object", "properties": {"a": {"type": "object", "properties": {"b": {"type": "integer"}}}}}`, true},
		{"open object field", `{"type": "object", "properties": {"extra": {"type": ["object", "null"]}}}`, false},
		{"open object in wrapper", `{"type": "object", "properties": {"extra": {"type": "object", "properties": {"value": {"type": ["object", "null"]}}}}}`, false},
		{"list of open objects", `{"type": "object", "properties": {"rows": {"type": ["array", "null"], "items": {"type": "object"}}}}`, false},
		{"root without properties", `{"type": "object"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var schema map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.schema), &schema))
			assert.Equal(t, tt.want, strictCompatible(schema))
		})
	}
}

func TestGenerateTextOpenObjectNotStrict(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"status": "completed", "output": [{"type": "message", "content": [{"type": "output_text", "text": "{}"}]}]}`))
	}))
	defer server.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	_, err := New().GenerateText(context.Background(), providers.Request{
		Model:          "gpt-5-mini",
		UserPrompt:     "user",
		ResponseSchema: map[string]any{"type": "object", "properties": map[string]any{"extra": map[string]any{"type": []any{"object", "null"}}}},
	})
	require.NoError(t, err)

	format := captured["text"].(map[string]any)["format"].(map[string]any)
	assert.NotContains(t, format, "strict")
	assert.Equal(t, "response", format["name"])
}

func TestGenerateTextErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantAPI bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, true},
		{"refusal", http.StatusOK, `{"output":[{"type":"message","content":[{"type":"refusal","refusal":"no"}]}]}`, false},
		{"incomplete", http.StatusOK, `{"status":"incomplete","incomplete_details":{"reason":"max_output_tokens"},"output":[]}`, false},
		{"bad json", http.StatusOK, `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			t.Setenv("OPENAI_API_KEY", "test-key")
			t.Setenv("OPENAI_BASE_URL", server.URL)

			_, err := New().GenerateText(context.Background(), providers.Request{Model: "gpt-5-mini"})
			require.Error(t, err)

			var apiErr *providers.APIError
			assert.Equal(t, tt.wantAPI, errors.As(err, &apiErr))
		})
	}
}

func TestGenerateTextMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New().GenerateText(context.Background(), providers.Request{})
	assert.ErrorIs(t, err, providers.ErrMissingAPIKey)
}
