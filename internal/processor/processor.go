package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/docintel/internal/config"
	"github.com/lehigh-university-libraries/docintel/internal/document"
	"github.com/lehigh-university-libraries/docintel/internal/extractor"
	"github.com/lehigh-university-libraries/docintel/internal/formatter"
	"github.com/lehigh-university-libraries/docintel/internal/parser"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
)

// DocumentProcessor runs parse, format and extract for a single document.
// It is not safe for concurrent use.
type DocumentProcessor struct {
	Parser    parser.Parser
	Formatter formatter.Formatter
	Extractor extractor.Extractor
	Document  *document.Document
}

// FromDigitalPDF wires a processor for the digital PDF at uri.
func FromDigitalPDF(uri string, p providers.Provider) *DocumentProcessor {
	return &DocumentProcessor{
		Parser:    parser.NewDigitalPDFParser(),
		Formatter: formatter.NewDigitalPDFFormatter(),
		Extractor: extractor.NewDigitalPDFExtractor(p),
		Document:  document.New(uri),
	}
}

// Parse reads the document and stores its content.
func (dp *DocumentProcessor) Parse(ctx context.Context) (*document.Document, error) {
	content, err := dp.Parser.Parse(ctx, dp.Document.URI)
	if err != nil {
		return nil, err
	}
	dp.Document.Content = content
	slog.Info("Document parsed successfully", "uri", dp.Document.URI, "pages", len(content.Pages))
	return dp.Document, nil
}

// FormatForLLM renders the parsed document as it will be sent to the model.
func (dp *DocumentProcessor) FormatForLLM(pageNumbers []int) (string, error) {
	if dp.Document.Content == nil {
		return "", document.ErrContentMissing
	}
	text, err := dp.Formatter.Format(dp.Document, pageNumbers)
	if err != nil {
		return "", err
	}
	dp.Document.LLMInput = text
	return text, nil
}

// Extract validates cfg, applies its extraction options to the document,
// parses the document if it has no content yet and runs the extractor.
func (dp *DocumentProcessor) Extract(ctx context.Context, cfg *config.Config) (*extractor.Result, error) {
	if cfg == nil {
		return nil, config.ErrMissingResponseFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	llmCfg := cfg.LLM
	if llmCfg.Model == "" {
		c := *cfg
		c.ApplyDefaults()
		llmCfg = c.LLM
	}

	dp.Document.IncludeCitations = cfg.Extraction.Citations()
	dp.Document.ExtractionMode = cfg.Extraction.Mode()
	if dp.Document.ExtractionMode == document.MultiPass {
		return nil, document.ErrMultiPassNotImplemented
	}

	if dp.Document.Content == nil {
		if _, err := dp.Parse(ctx); err != nil {
			return nil, err
		}
	}

	result, err := dp.Extractor.Extract(ctx, dp.Document, llmCfg, cfg.Extraction, dp.Formatter, cfg.ResponseFormat.Schema)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Extraction cancelled", "uri", dp.Document.URI)
		}
		return nil, err
	}
	slog.Info("Extraction complete", "uri", dp.Document.URI, "fields", len(result.ExtractedData))
	return result, nil
}
