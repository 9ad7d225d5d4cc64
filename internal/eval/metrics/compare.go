package metrics

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/document"
)

// CaseComparison holds the field-by-field comparison of one extraction
// against its ground truth
type CaseComparison struct {
	Fields           map[string]FieldMatch
	OverallScore     float64
	FieldsMatched    int
	FieldsMissing    int
	FieldsIncorrect  int
	LevenshteinTotal int // Total Levenshtein distance across all fields

	// Citation checks. CitationValidity is 1 when nothing was cited.
	CitationsChecked int
	CitationsValid   int
	CitationValidity float64
}

// FieldMatch represents the comparison result for a single field
type FieldMatch struct {
	Expected string
	Actual   string
	Score    float64 // 0.0 to 1.0
	Method   string  // "exact", "substring", "fuzzy_high", "fuzzy_medium", "no_match", "*_missing"
	Notes    string
}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// CompareCase compares extracted data against the expected values. Only
// fields with ground truth are scored. meta may be nil when citations were
// not requested; pageCount bounds the cited pages.
func CompareCase(expected, actual map[string]any, meta map[string]document.FieldMetadata, pageCount int) *CaseComparison {
	comparison := &CaseComparison{
		Fields:           make(map[string]FieldMatch, len(expected)),
		CitationValidity: 1.0,
	}

	totalScore := 0.0
	for field, exp := range expected {
		match := compareField(stringify(exp), stringify(actual[field]))
		comparison.Fields[field] = match
		totalScore += match.Score
		comparison.LevenshteinTotal += levenshteinDistance(
			normalizeForComparison(match.Expected),
			normalizeForComparison(match.Actual))

		switch {
		case match.Method == "actual_missing":
			comparison.FieldsMissing++
		case match.Score >= 0.8:
			comparison.FieldsMatched++
		default:
			comparison.FieldsIncorrect++
		}
	}

	if len(expected) > 0 {
		comparison.OverallScore = totalScore / float64(len(expected))
	}

	for _, fm := range meta {
		for _, c := range fm.Citations {
			comparison.CitationsChecked++
			if citationValid(c, pageCount) {
				comparison.CitationsValid++
			}
		}
	}
	if comparison.CitationsChecked > 0 {
		comparison.CitationValidity = float64(comparison.CitationsValid) / float64(comparison.CitationsChecked)
	}

	return comparison
}

func citationValid(c document.Citation, pageCount int) bool {
	if c.Page < 0 || c.Page >= pageCount || len(c.BBoxes) == 0 {
		return false
	}
	for _, b := range c.BBoxes {
		if !b.Valid() {
			return false
		}
	}
	return true
}

// compareField performs detailed field comparison with fuzzy matching
func compareField(expected, actual string) FieldMatch {
	match := FieldMatch{
		Expected: expected,
		Actual:   actual,
	}

	// Normalize for comparison
	expNorm := normalizeForComparison(expected)
	actNorm := normalizeForComparison(actual)

	// Handle missing fields
	if expected == "" && actual == "" {
		match.Score = 1.0
		match.Method = "both_missing"
		match.Notes = "Both values are empty"
		return match
	}

	if expected == "" {
		match.Score = 0.0
		match.Method = "expected_missing"
		match.Notes = "Value extracted where none was expected"
		return match
	}

	if actual == "" {
		match.Score = 0.0
		match.Method = "actual_missing"
		match.Notes = "Field missing from extraction"
		return match
	}

	// Exact match
	if expNorm == actNorm {
		match.Score = 1.0
		match.Method = "exact"
		match.Notes = "Exact match"
		return match
	}

	// Fuzzy match - check for substring containment
	if expNorm != "" && actNorm != "" && (strings.Contains(actNorm, expNorm) || strings.Contains(expNorm, actNorm)) {
		match.Score = 0.8
		match.Method = "substring"
		match.Notes = "Partial match (substring found)"
		return match
	}

	// Levenshtein-based similarity
	similarity := calculateSimilarity(expNorm, actNorm)
	match.Score = similarity
	if similarity > 0.7 {
		match.Method = "fuzzy_high"
		match.Notes = fmt.Sprintf("High similarity (%.2f)", similarity)
	} else if similarity > 0.4 {
		match.Method = "fuzzy_medium"
		match.Notes = fmt.Sprintf("Medium similarity (%.2f)", similarity)
	} else {
		match.Method = "no_match"
		match.Notes = fmt.Sprintf("Low similarity (%.2f)", similarity)
	}

	return match
}

// stringify renders an extracted or expected value for text comparison.
// Lists are joined with "; " and objects are compared as canonical JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+stringify(t[k]))
		}
		return strings.Join(parts, "; ")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// normalizeForComparison normalizes text for comparison
func normalizeForComparison(text string) string {
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// calculateSimilarity calculates similarity ratio (0.0 to 1.0) using Levenshtein distance
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	return 1.0 - (float64(distance) / float64(max(len(r1), len(r2))))
}

// levenshteinDistance calculates the Levenshtein distance between two strings
func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
