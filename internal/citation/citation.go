// Package citation resolves the page and line references returned by the
// LLM into bounding boxes and separates them from the extracted values.
package citation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/lehigh-university-libraries/docintel/internal/document"
)

// ErrInvalidBoundingBox is returned by Validate when a bbox is not fractional and ordered.
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

const (
	keyPage      = "page"
	keyLines     = "lines"
	keyBBoxes    = "bboxes"
	keyValue     = "value"
	keyCitations = "citations"
)

// Enrich walks a decoded JSON response and replaces the "lines" of every
// citation ({"page": n, "lines": [...]}) with the bounding boxes of those
// lines. Other keys on the citation are preserved. Citations whose page is
// outside the document are returned unchanged and line indices outside the
// page are skipped.
func Enrich(response any, pdf *document.PDF) (any, error) {
	if pdf == nil {
		return nil, document.ErrContentMissing
	}
	return enrich(response, pdf), nil
}

func enrich(v any, pdf *document.PDF) any {
	switch t := v.(type) {
	case map[string]any:
		if isCitation(t) {
			return resolve(t, pdf)
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = enrich(child, pdf)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = enrich(child, pdf)
		}
		return out
	default:
		return v
	}
}

// isCitation reports whether m has an integer page and a list of lines.
// Objects that merely have fields named page and lines are walked like any
// other object.
func isCitation(m map[string]any) bool {
	if _, ok := toIndex(m[keyPage]); !ok {
		return false
	}
	_, ok := m[keyLines].([]any)
	return ok
}

func resolve(c map[string]any, pdf *document.PDF) map[string]any {
	page, ok := toIndex(c[keyPage])
	if !ok || page < 0 || page >= len(pdf.Pages) {
		slog.Debug("Citation page out of range", "page", c[keyPage], "pages", len(pdf.Pages))
		return c
	}

	lines := pdf.Pages[page].Lines
	raw, _ := c[keyLines].([]any)
	bboxes := make([]document.BoundingBox, 0, len(raw))
	for _, l := range raw {
		idx, ok := toIndex(l)
		if !ok || idx < 0 || idx >= len(lines) {
			slog.Debug("Skipping citation line out of range", "page", page, "line", l, "lines", len(lines))
			continue
		}
		bboxes = append(bboxes, lines[idx].BoundingBox)
	}

	out := make(map[string]any, len(c))
	for k, v := range c {
		if k == keyLines {
			continue
		}
		out[k] = v
	}
	out[keyPage] = page
	out[keyBBoxes] = bboxes
	return out
}

// toIndex accepts the integer forms a JSON decoder or a caller may produce.
func toIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// Strip unwraps every {"value": v, "citations": [...]} object to v, recursively.
// Only objects with exactly those two keys, citations being a list, are unwrapped.
func Strip(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if isWrapper(t) {
			return Strip(t[keyValue])
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Strip(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Strip(child)
		}
		return out
	default:
		return v
	}
}

func isWrapper(m map[string]any) bool {
	if len(m) != 2 {
		return false
	}
	_, hasValue := m[keyValue]
	_, hasCitations := m[keyCitations].([]any)
	return hasValue && hasCitations
}

// StripFields strips each top-level field of response separately, so a
// response whose own fields are named value and citations stays an object.
func StripFields(response map[string]any) map[string]any {
	out := make(map[string]any, len(response))
	for k, v := range response {
		out[k] = Strip(v)
	}
	return out
}

// BuildMetadata produces the value and citations of every top-level field of
// an enriched response. Objects and lists carry the union of the citations
// found beneath them. Citations that could not be resolved to a page of the
// document are dropped.
func BuildMetadata(response map[string]any) map[string]document.FieldMetadata {
	meta := make(map[string]document.FieldMetadata, len(response))
	for name, v := range response {
		meta[name] = document.FieldMetadata{
			Value:     Strip(v),
			Citations: collect(v),
		}
	}
	return meta
}

func collect(v any) []document.Citation {
	out := []document.Citation{}
	switch t := v.(type) {
	case map[string]any:
		if isWrapper(t) {
			list, _ := t[keyCitations].([]any)
			for _, raw := range list {
				if c, ok := toCitation(raw); ok {
					out = append(out, c)
				}
			}
			return append(out, collect(t[keyValue])...)
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, collect(t[k])...)
		}
	case []any:
		for _, child := range t {
			out = append(out, collect(child)...)
		}
	}
	return out
}

func toCitation(raw any) (document.Citation, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return document.Citation{}, false
	}
	bboxes, ok := m[keyBBoxes].([]document.BoundingBox)
	if !ok {
		slog.Debug("Dropping unresolved citation", "citation", m)
		return document.Citation{}, false
	}
	page, _ := toIndex(m[keyPage])
	return document.Citation{Page: page, BBoxes: bboxes}, true
}

// RestrictPages drops citations whose page is not in allowed. An empty
// allowed list keeps everything.
func RestrictPages(meta map[string]document.FieldMetadata, allowed []int) map[string]document.FieldMetadata {
	if len(allowed) == 0 {
		return meta
	}
	keep := make(map[int]bool, len(allowed))
	for _, p := range allowed {
		keep[p] = true
	}

	out := make(map[string]document.FieldMetadata, len(meta))
	for name, fm := range meta {
		filtered := make([]document.Citation, 0, len(fm.Citations))
		for _, c := range fm.Citations {
			if keep[c.Page] {
				filtered = append(filtered, c)
			} else {
				slog.Debug("Dropping citation outside requested pages", "field", name, "page", c.Page)
			}
		}
		out[name] = document.FieldMetadata{Value: fm.Value, Citations: filtered}
	}
	return out
}

// Validate checks that every bounding box in meta is fractional and ordered.
func Validate(meta map[string]document.FieldMetadata) error {
	for name, fm := range meta {
		for _, c := range fm.Citations {
			for _, b := range c.BBoxes {
				if !b.Valid() {
					return fmt.Errorf("field %q page %d: %+v: %w", name, c.Page, b, ErrInvalidBoundingBox)
				}
			}
		}
	}
	return nil
}
