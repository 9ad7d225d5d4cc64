package formatter

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/document"
)

// ErrNoPages is returned when there are no pages to format.
var ErrNoPages = errors.New("document pages are not set")

// Formatter renders a parsed document as LLM input
type Formatter interface {
	Format(doc *document.Document, pageNumbers []int) (string, error)
}

// DigitalPDFFormatter renders each page as a <page number=N> block. With
// citations on, every line is prefixed with its zero-based line number so
// the model can cite it.
type DigitalPDFFormatter struct{}

// NewDigitalPDFFormatter returns a formatter for parsed digital PDFs
func NewDigitalPDFFormatter() *DigitalPDFFormatter {
	return &DigitalPDFFormatter{}
}

// Format renders the pages listed in pageNumbers, or every page when the
// list is empty. Page numbers are zero-based; duplicates and indices past
// the last page are ignored.
func (f *DigitalPDFFormatter) Format(doc *document.Document, pageNumbers []int) (string, error) {
	if doc.Content == nil {
		return "", document.ErrContentMissing
	}
	if len(doc.Content.Pages) == 0 {
		return "", ErrNoPages
	}
	if doc.ExtractionMode == document.MultiPass {
		return "", document.ErrMultiPassNotImplemented
	}

	pages := SelectPages(pageNumbers, len(doc.Content.Pages))
	if len(pages) == 0 {
		return "", fmt.Errorf("none of pages %v exist in a %d page document: %w", pageNumbers, len(doc.Content.Pages), ErrNoPages)
	}

	blocks := make([]string, 0, len(pages))
	for _, n := range pages {
		blocks = append(blocks, formatPage(n, doc.Content.Pages[n], doc.IncludeCitations))
	}

	slog.Debug("Formatted document", "uri", doc.URI, "pages", len(blocks), "citations", doc.IncludeCitations)
	return strings.Join(blocks, "\n\n"), nil
}

func formatPage(number int, page document.Page, lineNumbers bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<page number=%d>\n", number)
	for i, line := range page.Lines {
		if lineNumbers {
			fmt.Fprintf(&b, "%d: %s\n", i, line.Text)
		} else {
			b.WriteString(line.Text)
			b.WriteByte('\n')
		}
	}
	b.WriteString("</page>")
	return b.String()
}

// SelectPages de-duplicates and sorts the requested page numbers, dropping
// any outside [0, total). An empty request selects every page.
func SelectPages(requested []int, total int) []int {
	if len(requested) == 0 {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}

	seen := make(map[int]bool, len(requested))
	pages := make([]int, 0, len(requested))
	for _, n := range requested {
		if n < 0 || n >= total {
			slog.Warn("Ignoring page number outside document", "page", n, "pages", total)
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}
