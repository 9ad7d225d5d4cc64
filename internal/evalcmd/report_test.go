package evalcmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/docintel/internal/eval/metrics"
	"github.com/lehigh-university-libraries/docintel/internal/eval/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, dir, timestamp string) string {
	t.Helper()
	path, err := results.SaveToYAML(dir, results.EvalConfig{
		Provider:    "openai",
		Model:       "gpt-5-mini",
		DatasetPath: "cases.jsonl",
		Timestamp:   timestamp,
	}, []metrics.EvaluationResult{
		{
			CaseID:    "mit",
			URI:       "mit.pdf",
			Extracted: map[string]any{"license_name": "MIT", "copyright_holder": "Someone Else"},
			Comparison: &metrics.CaseComparison{
				Fields: map[string]metrics.FieldMatch{
					"license_name":     {Score: 1.0},
					"copyright_holder": {Score: 0.5},
				},
				OverallScore:     0.75,
				FieldsMatched:    1,
				FieldsIncorrect:  1,
				CitationValidity: 1.0,
			},
		},
		{
			CaseID:    "bsd",
			URI:       "bsd.pdf",
			Extracted: map[string]any{"license_name": "BSD"},
			Comparison: &metrics.CaseComparison{
				Fields:           map[string]metrics.FieldMatch{"license_name": {Score: 1.0}},
				OverallScore:     1.0,
				FieldsMatched:    1,
				CitationValidity: 0.5,
			},
		},
		{CaseID: "broken", URI: "broken.pdf", Error: "extraction failed: not a PDF"},
	})
	require.NoError(t, err)
	return path
}

func TestCalculateSummary(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), "2025-01-01_00-00-00")
	spec, err := results.LoadYAML(path)
	require.NoError(t, err)

	s := calculateSummary(spec)
	assert.Equal(t, 3, s.TotalRecords)
	assert.Equal(t, 2, s.SuccessfulEvals)
	assert.Equal(t, 1, s.FailedEvals)
	assert.InDelta(t, 0.875, s.AverageScore, 1e-9)
	assert.InDelta(t, 0.875, s.MedianScore, 1e-9)
	assert.Equal(t, 0.75, s.MinScore)
	assert.Equal(t, 1.0, s.MaxScore)
	assert.InDelta(t, 0.75, s.CitationValidity, 1e-9)
	assert.Equal(t, 1.0, s.FieldAccuracies["license_name"])
	assert.Equal(t, 0.5, s.FieldAccuracies["copyright_holder"])
}

func TestExecuteReportText(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), "2025-01-01_00-00-00")

	var buf bytes.Buffer
	require.NoError(t, executeReport(&buf, path, "text"))

	out := buf.String()
	assert.Contains(t, out, "Document Extraction Evaluation Report")
	assert.Contains(t, out, "Model:    gpt-5-mini")
	assert.Contains(t, out, "Average Score:      87.50%")
	assert.Contains(t, out, "(extracted: Someone Else)")
	assert.Contains(t, out, "Error: extraction failed: not a PDF")
}

func TestExecuteReportJSON(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), "2025-01-01_00-00-00")

	var buf bytes.Buffer
	require.NoError(t, executeReport(&buf, path, "json"))

	var decoded struct {
		Summary summary `json:"summary"`
		Results []any   `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Summary.TotalRecords)
	assert.Len(t, decoded.Results, 3)
}

func TestExecuteReportCSV(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), "2025-01-01_00-00-00")

	var buf bytes.Buffer
	require.NoError(t, executeReport(&buf, path, "csv"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{
		"ID", "URI", "Overall Score", "Fields Matched", "Fields Missing", "Fields Incorrect",
		"Citation Validity", "Error", "Field_copyright_holder", "Field_license_name",
	}, rows[0])
	assert.Equal(t, "0.7500", rows[1][2])
	assert.Equal(t, "extraction failed: not a PDF", rows[3][7])
}

func TestExecuteReportDirectoryPicksNewest(t *testing.T) {
	dir := t.TempDir()
	older := writeSnapshot(t, dir, "2025-01-01_00-00-00")
	newer := writeSnapshot(t, dir, "2025-02-01_00-00-00")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	resolved, err := resolveResultsPath(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, resolved)

	var buf bytes.Buffer
	require.NoError(t, executeReport(&buf, dir, "text"))
	assert.Contains(t, buf.String(), "Run:      2025-02-01_00-00-00")
}

func TestExecuteReportErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, executeReport(&bytes.Buffer{}, filepath.Join(dir, "missing.yaml"), "text"))
	assert.ErrorContains(t, executeReport(&bytes.Buffer{}, dir, "text"), "no .yaml results")

	path := writeSnapshot(t, dir, "2025-01-01_00-00-00")
	assert.ErrorContains(t, executeReport(&bytes.Buffer{}, path, "xml"), "unsupported format")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
