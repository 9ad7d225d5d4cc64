package formatter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/docintel/internal/document"
)

func testDocument() *document.Document {
	doc := document.New("sample.pdf")
	doc.Content = &document.PDF{Pages: []document.Page{
		{Lines: []document.Line{{Text: "Invoice #123"}, {Text: "ACME Corp"}}},
		{Lines: []document.Line{{Text: "Total: 42.00"}}},
		{Lines: []document.Line{}},
	}}
	return doc
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name        string
		citations   bool
		pageNumbers []int
		expected    string
	}{
		{
			name:      "all pages with line numbers",
			citations: true,
			expected:  "<page number=0>\n0: Invoice #123\n1: ACME Corp\n</page>\n\n<page number=1>\n0: Total: 42.00\n</page>\n\n<page number=2>\n</page>",
		},
		{
			name:      "all pages without line numbers",
			citations: false,
			expected:  "<page number=0>\nInvoice #123\nACME Corp\n</page>\n\n<page number=1>\nTotal: 42.00\n</page>\n\n<page number=2>\n</page>",
		},
		{
			name:        "selected pages are sorted and de-duplicated",
			citations:   true,
			pageNumbers: []int{1, 0, 1},
			expected:    "<page number=0>\n0: Invoice #123\n1: ACME Corp\n</page>\n\n<page number=1>\n0: Total: 42.00\n</page>",
		},
		{
			name:        "out of range pages are ignored",
			citations:   true,
			pageNumbers: []int{1, 7, -2},
			expected:    "<page number=1>\n0: Total: 42.00\n</page>",
		},
	}

	f := NewDigitalPDFFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument()
			doc.IncludeCitations = tt.citations

			result, err := f.Format(doc, tt.pageNumbers)
			if err != nil {
				t.Fatalf("Format failed: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected:\n%q\nGot:\n%q", tt.expected, result)
			}
		})
	}
}

func TestFormatErrors(t *testing.T) {
	f := NewDigitalPDFFormatter()

	t.Run("content missing", func(t *testing.T) {
		_, err := f.Format(document.New("x.pdf"), nil)
		if !errors.Is(err, document.ErrContentMissing) {
			t.Errorf("Expected ErrContentMissing, got %v", err)
		}
	})

	t.Run("no pages", func(t *testing.T) {
		doc := document.New("x.pdf")
		doc.Content = &document.PDF{}
		_, err := f.Format(doc, nil)
		if !errors.Is(err, ErrNoPages) {
			t.Errorf("Expected ErrNoPages, got %v", err)
		}
	})

	t.Run("no requested page exists", func(t *testing.T) {
		_, err := f.Format(testDocument(), []int{10})
		if !errors.Is(err, ErrNoPages) {
			t.Errorf("Expected ErrNoPages, got %v", err)
		}
	})

	t.Run("multi pass", func(t *testing.T) {
		doc := testDocument()
		doc.ExtractionMode = document.MultiPass
		_, err := f.Format(doc, nil)
		if !errors.Is(err, document.ErrMultiPassNotImplemented) {
			t.Errorf("Expected ErrMultiPassNotImplemented, got %v", err)
		}
	})
}

func TestSelectPages(t *testing.T) {
	tests := []struct {
		name      string
		requested []int
		total     int
		expected  []int
	}{
		{"empty selects all", nil, 3, []int{0, 1, 2}},
		{"sorted unique", []int{2, 0, 2}, 3, []int{0, 2}},
		{"drops out of range", []int{-1, 3, 1}, 3, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectPages(tt.requested, tt.total)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
