package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
	"github.com/lehigh-university-libraries/docintel/internal/document"
	"github.com/lehigh-university-libraries/docintel/internal/fetcher"
)

// Parser turns a document URI into parsed content
type Parser interface {
	Parse(ctx context.Context, uri string) (*document.PDF, error)
}

// DigitalPDFParser reads the text layer of a digital PDF
type DigitalPDFParser struct {
	Fetcher *fetcher.Fetcher
}

// NewDigitalPDFParser returns a parser that loads local paths and http(s) URLs
func NewDigitalPDFParser() *DigitalPDFParser {
	return &DigitalPDFParser{Fetcher: fetcher.New()}
}

// Parse loads the PDF at uri and returns its lines with fractional bounding boxes.
func (p *DigitalPDFParser) Parse(ctx context.Context, uri string) (*document.PDF, error) {
	f := p.Fetcher
	if f == nil {
		f = fetcher.New()
	}

	data, err := f.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}

	content, err := ParseBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", uri, err)
	}

	slog.Info("Parsed PDF", "uri", uri, "pages", len(content.Pages), "lines", content.LineCount())
	return content, nil
}

// ParseBytes parses an in-memory PDF.
func ParseBytes(ctx context.Context, data []byte) (*document.PDF, error) {
	reader, err := openReader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	numPages := reader.NumPage()
	content := &document.PDF{Pages: make([]document.Page, 0, numPages)}

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := readPage(reader.Page(i))
		if err != nil {
			// keep the page so later page indices stay aligned
			slog.Warn("Failed to extract text from page", "page", i-1, "error", err)
		}
		content.Pages = append(content.Pages, page)
	}

	return content, nil
}

// openReader guards against the reader panicking on malformed input.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func readPage(p pdf.Page) (page document.Page, err error) {
	box := mediaBox(p.V)
	page = document.Page{Width: box.width(), Height: box.height(), Lines: []document.Line{}}

	if p.V.IsNull() {
		return page, fmt.Errorf("page object is missing")
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed content stream: %v", rec)
		}
	}()

	page.Lines = groupLines(p.Content().Text, box)
	return page, nil
}

// rect is a PDF rectangle in points, lower-left origin.
type rect struct {
	llx, lly, urx, ury float64
}

func (r rect) width() float64  { return r.urx - r.llx }
func (r rect) height() float64 { return r.ury - r.lly }

// letter is used when a page has no usable MediaBox.
var letter = rect{0, 0, 612, 792}

// mediaBox reads the page MediaBox, following the Parent chain when it is inherited.
func mediaBox(v pdf.Value) rect {
	for depth := 0; depth < 32 && v.Kind() == pdf.Dict; depth++ {
		mb := v.Key("MediaBox")
		if mb.Kind() == pdf.Array && mb.Len() == 4 {
			return rectFrom(mb.Index(0).Float64(), mb.Index(1).Float64(), mb.Index(2).Float64(), mb.Index(3).Float64())
		}
		v = v.Key("Parent")
	}
	return letter
}

func rectFrom(x0, y0, x1, y1 float64) rect {
	r := rect{llx: min(x0, x1), lly: min(y0, y1), urx: max(x0, x1), ury: max(y0, y1)}
	if r.width() <= 0 || r.height() <= 0 {
		return letter
	}
	return r
}
