package gemini

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct{}

// New returns a new Gemini provider
func New() *Gemini {
	return &Gemini{}
}

// GenerateText sends the prompts to Gemini, requesting JSON output when a schema is set.
func (g *Gemini) GenerateText(ctx context.Context, req providers.Request) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable: %w", providers.ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.ResponseSchema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = ConvertSchema(req.ResponseSchema)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini (finish reason %s)", candidate.FinishReason)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}

	return text.String(), nil
}

// ConvertSchema translates a JSON Schema document into Gemini's schema type.
// Gemini has no "additionalProperties" and expresses null through Nullable.
func ConvertSchema(js map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}

	typeName, nullable := schemaType(js["type"])
	s.Nullable = nullable

	switch typeName {
	case "object":
		props, _ := js["properties"].(map[string]any)
		if len(props) == 0 {
			// Gemini rejects objects without properties
			s.Type = genai.TypeString
			return s
		}
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, raw := range props {
			names = append(names, name)
			if child, ok := raw.(map[string]any); ok {
				s.Properties[name] = ConvertSchema(child)
			}
		}
		s.Required = requiredList(js["required"])
		if len(s.Required) == 0 {
			sort.Strings(names)
			s.Required = names
		}
	case "array":
		s.Type = genai.TypeArray
		if items, ok := js["items"].(map[string]any); ok {
			s.Items = ConvertSchema(items)
		} else {
			s.Items = &genai.Schema{Type: genai.TypeString}
		}
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}
	return s
}

// schemaType handles both "type": "string" and "type": ["string", "null"].
func schemaType(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, false
	case []any:
		name, nullable := "", false
		for _, item := range t {
			s, _ := item.(string)
			if s == "null" {
				nullable = true
			} else if name == "" {
				name = s
			}
		}
		return name, nullable
	case []string:
		return schemaType(toAny(t))
	default:
		return "", false
	}
}

func requiredList(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
