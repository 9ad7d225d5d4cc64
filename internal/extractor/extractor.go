package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/docintel/internal/citation"
	"github.com/lehigh-university-libraries/docintel/internal/config"
	"github.com/lehigh-university-libraries/docintel/internal/document"
	"github.com/lehigh-university-libraries/docintel/internal/formatter"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/lehigh-university-libraries/docintel/internal/schema"
)

// ErrInvalidResponse is returned when the model reply is not a JSON object.
var ErrInvalidResponse = errors.New("invalid LLM response")

// Result is the output of an extraction
type Result struct {
	ExtractedData map[string]any                    `json:"extracted_data" yaml:"extracted_data"`
	Metadata      map[string]document.FieldMetadata `json:"metadata" yaml:"metadata"`
}

// Extractor runs the LLM over a parsed document
type Extractor interface {
	Extract(ctx context.Context, doc *document.Document, llmCfg config.LLMConfig, exCfg config.ExtractionConfig, f formatter.Formatter, s *schema.Schema) (*Result, error)
}

// DigitalPDFExtractor extracts structured data from digital PDFs, resolving
// line citations into bounding boxes.
type DigitalPDFExtractor struct {
	Provider providers.Provider
}

// NewDigitalPDFExtractor returns an extractor that calls p
func NewDigitalPDFExtractor(p providers.Provider) *DigitalPDFExtractor {
	return &DigitalPDFExtractor{Provider: p}
}

// Extract formats doc, prompts the model and splits the reply into
// extracted data and, when citations are on, per-field metadata. The
// formatted input, raw response and metadata are recorded on doc.
func (e *DigitalPDFExtractor) Extract(ctx context.Context, doc *document.Document, llmCfg config.LLMConfig, exCfg config.ExtractionConfig, f formatter.Formatter, s *schema.Schema) (*Result, error) {
	if doc.ExtractionMode == document.MultiPass {
		return nil, document.ErrMultiPassNotImplemented
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	content, err := f.Format(doc, exCfg.PageNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}
	doc.LLMInput = content

	jsonSchema := s.JSONSchema(doc.IncludeCitations)
	prompt, err := userPrompt(llmCfg.UserPrompt, content, jsonSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	req := providers.Request{
		Model:           llmCfg.Model,
		SystemPrompt:    systemPrompt(llmCfg.SystemPrompt, doc.IncludeCitations),
		UserPrompt:      prompt,
		ReasoningEffort: llmCfg.Reasoning.Effort,
		Temperature:     llmCfg.Temperature,
		MaxOutputTokens: llmCfg.MaxOutputTokens,
		SchemaName:      schemaName(s),
		ResponseSchema:  jsonSchema,
	}

	slog.Info("Extracting document", "uri", doc.URI, "model", req.Model, "effort", req.ReasoningEffort, "citations", doc.IncludeCitations, "fields", len(s.Fields))
	start := time.Now()
	raw, err := e.Provider.GenerateText(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	slog.Debug("LLM response received", "uri", doc.URI, "duration", time.Since(start), "length", len(raw))

	response, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	doc.Response = response

	result, err := buildResult(response, doc, exCfg.PageNumbers, s)
	if err != nil {
		return nil, err
	}
	doc.ResponseMetadata = result.Metadata
	return result, nil
}

func buildResult(response map[string]any, doc *document.Document, pageNumbers []int, s *schema.Schema) (*Result, error) {
	if !doc.IncludeCitations {
		data, err := s.Coerce(response)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return &Result{ExtractedData: data}, nil
	}

	enriched, err := citation.Enrich(response, doc.Content)
	if err != nil {
		return nil, err
	}
	enrichedMap, ok := enriched.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidResponse)
	}

	data, err := s.Coerce(citation.StripFields(enrichedMap))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	meta := citation.BuildMetadata(enrichedMap)
	meta = citation.RestrictPages(meta, formatter.SelectPages(pageNumbers, len(doc.Content.Pages)))

	metadata := make(map[string]document.FieldMetadata, len(s.Fields))
	for _, name := range s.FieldNames() {
		fm, ok := meta[name]
		if !ok {
			fm = document.FieldMetadata{Citations: []document.Citation{}}
		}
		// report the coerced value so metadata and extracted_data agree
		fm.Value = data[name]
		metadata[name] = fm
	}

	if err := citation.Validate(metadata); err != nil {
		return nil, err
	}
	return &Result{ExtractedData: data, Metadata: metadata}, nil
}

// ParseResponse decodes the model reply into a JSON object. Markdown code
// fences and prose around the object are tolerated.
func ParseResponse(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil && out != nil {
			return out, nil
		}
	}

	preview := text
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return nil, fmt.Errorf("%w: expected a JSON object, got %q", ErrInvalidResponse, preview)
}

func schemaName(s *schema.Schema) string {
	if s.Name == "" {
		return "response"
	}
	return s.Name
}
