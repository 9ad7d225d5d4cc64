package parser

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/lehigh-university-libraries/docintel/internal/document"
)

const (
	// baselineTolerance is the fraction of the font size two runs' baselines
	// may differ by and still share a line.
	baselineTolerance = 0.5
	// wordGap is the fraction of the font size a horizontal gap must exceed
	// before a space is inserted.
	wordGap = 0.15
	// defaultFontSize applies when the content stream reports none.
	defaultFontSize = 10.0
)

type cluster struct {
	baseline float64
	size     float64
	runs     []pdf.Text
}

// groupLines assembles positioned text runs into lines ordered top to
// bottom. Bounding boxes are converted to top-left origin, normalised by
// the page size and clamped to [0,1].
func groupLines(texts []pdf.Text, page rect) []document.Line {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if t.FontSize <= 0 {
			t.FontSize = defaultFontSize
		}
		runs = append(runs, t)
	}
	if len(runs) == 0 {
		return []document.Line{}
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Y != runs[j].Y {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var clusters []*cluster
	for _, r := range runs {
		if n := len(clusters); n > 0 {
			c := clusters[n-1]
			tol := baselineTolerance * max(c.size, r.FontSize)
			if c.baseline-r.Y <= tol {
				c.runs = append(c.runs, r)
				c.size = max(c.size, r.FontSize)
				continue
			}
		}
		clusters = append(clusters, &cluster{baseline: r.Y, size: r.FontSize, runs: []pdf.Text{r}})
	}

	lines := make([]document.Line, 0, len(clusters))
	for _, c := range clusters {
		if line, ok := buildLine(c.runs, page); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func buildLine(runs []pdf.Text, page rect) (document.Line, bool) {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var b strings.Builder
	box := document.BoundingBox{X0: runs[0].X, X1: runs[0].X, Top: runs[0].Y + runs[0].FontSize, Bottom: runs[0].Y}
	prevEnd := runs[0].X
	for i, r := range runs {
		if i > 0 && r.X-prevEnd > wordGap*r.FontSize && !endsWithSpace(b.String()) && !startsWithSpace(r.S) {
			b.WriteByte(' ')
		}
		b.WriteString(r.S)

		prevEnd = max(prevEnd, r.X+r.W)
		box.X0 = min(box.X0, r.X)
		box.X1 = max(box.X1, r.X+r.W)
		box.Top = max(box.Top, r.Y+r.FontSize)
		box.Bottom = min(box.Bottom, r.Y)
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if text == "" {
		return document.Line{}, false
	}

	// flip to a top-left origin: box.Top/Bottom currently hold PDF y values
	w, h := page.width(), page.height()
	pts := document.BoundingBox{
		X0:     box.X0 - page.llx,
		Top:    page.ury - box.Top,
		X1:     box.X1 - page.llx,
		Bottom: page.ury - box.Bottom,
	}
	return document.Line{
		Text:        text,
		BoundingBox: document.NormalizeBoundingBox(pts, w, h).Clamp(),
	}, true
}

func endsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[len(s)-1]))
}

func startsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[0]))
}
