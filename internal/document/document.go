package document

import (
	"errors"
	"fmt"
)

var (
	// ErrContentMissing is returned when an operation needs parsed content
	// and the document has not been parsed yet.
	ErrContentMissing = errors.New("document content is nil; parse the document first")

	// ErrMultiPassNotImplemented is returned for the multi_pass extraction mode.
	ErrMultiPassNotImplemented = errors.New("multi-pass extraction is not implemented")
)

// BoundingBox locates text on a page. Parsed documents carry fractional
// coordinates with the origin at the top-left corner.
type BoundingBox struct {
	X0     float64 `json:"x0" yaml:"x0"`
	Top    float64 `json:"top" yaml:"top"`
	X1     float64 `json:"x1" yaml:"x1"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// Valid reports whether the box is fractional and ordered.
func (b BoundingBox) Valid() bool {
	return 0 <= b.X0 && b.X0 <= b.X1 && b.X1 <= 1 &&
		0 <= b.Top && b.Top <= b.Bottom && b.Bottom <= 1
}

// Clamp clips every coordinate into [0,1].
func (b BoundingBox) Clamp() BoundingBox {
	return BoundingBox{
		X0:     clamp01(b.X0),
		Top:    clamp01(b.Top),
		X1:     clamp01(b.X1),
		Bottom: clamp01(b.Bottom),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// NormalizeBoundingBox converts a box in page units into page fractions.
func NormalizeBoundingBox(b BoundingBox, pageWidth, pageHeight float64) BoundingBox {
	return BoundingBox{
		X0:     b.X0 / pageWidth,
		Top:    b.Top / pageHeight,
		X1:     b.X1 / pageWidth,
		Bottom: b.Bottom / pageHeight,
	}
}

// DenormalizeBoundingBox converts a fractional box back into page units.
func DenormalizeBoundingBox(b BoundingBox, pageWidth, pageHeight float64) BoundingBox {
	return BoundingBox{
		X0:     b.X0 * pageWidth,
		Top:    b.Top * pageHeight,
		X1:     b.X1 * pageWidth,
		Bottom: b.Bottom * pageHeight,
	}
}

// Line is a single line of text on a page
type Line struct {
	Text        string      `json:"text" yaml:"text"`
	BoundingBox BoundingBox `json:"bounding_box" yaml:"bounding_box"`
}

// Page holds the lines of one page, top to bottom. Width and Height are in PDF points.
type Page struct {
	Lines  []Line  `json:"lines" yaml:"lines"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// PDF is the parsed content of a digital PDF
type PDF struct {
	Pages []Page `json:"pages" yaml:"pages"`
}

// LineCount returns the total number of lines across all pages.
func (p *PDF) LineCount() int {
	n := 0
	for _, page := range p.Pages {
		n += len(page.Lines)
	}
	return n
}

// ExtractionMode selects how the document is presented to the LLM
type ExtractionMode string

const (
	SinglePass ExtractionMode = "single_pass"
	MultiPass  ExtractionMode = "multi_pass"
)

// ParseExtractionMode validates a mode string. An empty string selects SinglePass.
func ParseExtractionMode(s string) (ExtractionMode, error) {
	switch ExtractionMode(s) {
	case "", SinglePass:
		return SinglePass, nil
	case MultiPass:
		return MultiPass, nil
	default:
		return "", fmt.Errorf("invalid extraction mode %q (must be %q or %q)", s, SinglePass, MultiPass)
	}
}

// Citation locates an extracted value in the source document.
// Page is zero-based.
type Citation struct {
	Page   int           `json:"page" yaml:"page"`
	Lines  []int         `json:"lines,omitempty" yaml:"lines,omitempty"`
	BBoxes []BoundingBox `json:"bboxes" yaml:"bboxes"`
}

// FieldMetadata pairs an extracted value with its citations
type FieldMetadata struct {
	Value     any        `json:"value" yaml:"value"`
	Citations []Citation `json:"citations" yaml:"citations"`
}

// Document is the state carried through parse, format and extract.
type Document struct {
	URI              string                   `json:"uri"`
	Content          *PDF                     `json:"content,omitempty"`
	IncludeCitations bool                     `json:"include_citations"`
	ExtractionMode   ExtractionMode           `json:"extraction_mode"`
	LLMInput         string                   `json:"llm_input,omitempty"`
	Response         map[string]any           `json:"response,omitempty"`
	ResponseMetadata map[string]FieldMetadata `json:"response_metadata,omitempty"`
}

// New returns a document for uri with citations on and single-pass extraction.
func New(uri string) *Document {
	return &Document{
		URI:              uri,
		IncludeCitations: true,
		ExtractionMode:   SinglePass,
	}
}
