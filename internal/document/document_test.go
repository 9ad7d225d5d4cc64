package document

import (
	"errors"
	"testing"
)

func TestNormalizeBoundingBox(t *testing.T) {
	b := BoundingBox{X0: 61.2, Top: 79.2, X1: 306, Bottom: 396}
	got := NormalizeBoundingBox(b, 612, 792)
	want := BoundingBox{X0: 0.1, Top: 0.1, X1: 0.5, Bottom: 0.5}

	if !approx(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	back := DenormalizeBoundingBox(got, 612, 792)
	if !approx(back, b) {
		t.Errorf("Expected round trip %+v, got %+v", b, back)
	}
}

func TestBoundingBoxValid(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"fractional ordered", BoundingBox{0.1, 0.2, 0.3, 0.4}, true},
		{"full page", BoundingBox{0, 0, 1, 1}, true},
		{"degenerate", BoundingBox{0.5, 0.5, 0.5, 0.5}, true},
		{"x reversed", BoundingBox{0.3, 0.2, 0.1, 0.4}, false},
		{"y reversed", BoundingBox{0.1, 0.4, 0.3, 0.2}, false},
		{"negative", BoundingBox{-0.1, 0.2, 0.3, 0.4}, false},
		{"beyond page", BoundingBox{0.1, 0.2, 1.3, 0.4}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBoxClamp(t *testing.T) {
	got := BoundingBox{X0: -0.2, Top: 0.5, X1: 1.4, Bottom: 2}.Clamp()
	want := BoundingBox{X0: 0, Top: 0.5, X1: 1, Bottom: 1}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if !got.Valid() {
		t.Error("Expected clamped box to be valid")
	}
}

func TestParseExtractionMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ExtractionMode
		wantErr bool
	}{
		{"", SinglePass, false},
		{"single_pass", SinglePass, false},
		{"multi_pass", MultiPass, false},
		{"two_pass", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExtractionMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExtractionMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseExtractionMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	doc := New("invoice.pdf")
	if doc.URI != "invoice.pdf" {
		t.Errorf("Expected URI invoice.pdf, got %s", doc.URI)
	}
	if !doc.IncludeCitations {
		t.Error("Expected citations to default on")
	}
	if doc.ExtractionMode != SinglePass {
		t.Errorf("Expected single_pass, got %s", doc.ExtractionMode)
	}
	if doc.Content != nil {
		t.Error("Expected no content before parsing")
	}
}

func TestLineCount(t *testing.T) {
	pdf := &PDF{Pages: []Page{
		{Lines: []Line{{Text: "a"}, {Text: "b"}}},
		{},
		{Lines: []Line{{Text: "c"}}},
	}}
	if got := pdf.LineCount(); got != 3 {
		t.Errorf("Expected 3 lines, got %d", got)
	}
}

func TestSentinelErrors(t *testing.T) {
	if errors.Is(ErrContentMissing, ErrMultiPassNotImplemented) {
		t.Error("Sentinel errors must be distinct")
	}
}

func approx(a, b BoundingBox) bool {
	const eps = 1e-9
	return abs(a.X0-b.X0) < eps && abs(a.Top-b.Top) < eps && abs(a.X1-b.X1) < eps && abs(a.Bottom-b.Bottom) < eps
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
