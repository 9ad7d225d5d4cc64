package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/eval/results"
)

// summary holds the statistics shown at the top of a report
type summary struct {
	TotalRecords     int                `json:"total_records"`
	SuccessfulEvals  int                `json:"successful_evals"`
	FailedEvals      int                `json:"failed_evals"`
	AverageScore     float64            `json:"average_score"`
	MedianScore      float64            `json:"median_score"`
	MinScore         float64            `json:"min_score"`
	MaxScore         float64            `json:"max_score"`
	CitationValidity float64            `json:"citation_validity"`
	FieldAccuracies  map[string]float64 `json:"field_accuracies"`
}

func executeReport(w io.Writer, path, format string) error {
	path, err := resolveResultsPath(path)
	if err != nil {
		return err
	}

	spec, err := results.LoadYAML(path)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}

	switch format {
	case "text":
		return printTextReport(w, spec)
	case "json":
		return printJSONReport(w, spec)
	case "csv":
		return printCSVReport(w, spec)
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, csv)", format)
	}
}

// resolveResultsPath returns path, or the newest YAML snapshot when path is a directory.
func resolveResultsPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("results not found: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to read results directory: %w", err)
	}

	var newest string
	var newestInfo os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if newestInfo == nil || fi.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = e.Name(), fi
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no .yaml results in %s", path)
	}
	return filepath.Join(path, newest), nil
}

func calculateSummary(spec *results.EvalSpec) summary {
	s := summary{
		TotalRecords:    len(spec.Results),
		FieldAccuracies: make(map[string]float64),
	}

	var scores []float64
	var citationTotal float64
	fieldScores := make(map[string][]float64)

	for _, result := range spec.Results {
		if result.Error != "" {
			s.FailedEvals++
			continue
		}

		s.SuccessfulEvals++
		scores = append(scores, result.OverallScore)
		citationTotal += result.CitationValidity

		for field, score := range result.FieldScores {
			fieldScores[field] = append(fieldScores[field], score)
		}
	}

	if len(scores) == 0 {
		return s
	}

	var total float64
	for _, score := range scores {
		total += score
	}
	s.AverageScore = total / float64(len(scores))
	s.CitationValidity = citationTotal / float64(len(scores))

	sort.Float64s(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 0 {
		s.MedianScore = (scores[mid-1] + scores[mid]) / 2
	} else {
		s.MedianScore = scores[mid]
	}
	s.MinScore = scores[0]
	s.MaxScore = scores[len(scores)-1]

	for field, fs := range fieldScores {
		var total float64
		for _, score := range fs {
			total += score
		}
		s.FieldAccuracies[field] = total / float64(len(fs))
	}

	return s
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Evaluation Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Total Cases:        %d\n", s.TotalRecords)
	fmt.Fprintf(w, "Successful Evals:   %d\n", s.SuccessfulEvals)
	fmt.Fprintf(w, "Failed Evals:       %d\n", s.FailedEvals)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average Score:      %.2f%%\n", s.AverageScore*100)
	fmt.Fprintf(w, "Median Score:       %.2f%%\n", s.MedianScore*100)
	fmt.Fprintf(w, "Min Score:          %.2f%%\n", s.MinScore*100)
	fmt.Fprintf(w, "Max Score:          %.2f%%\n", s.MaxScore*100)
	fmt.Fprintf(w, "Citation Validity:  %.2f%%\n", s.CitationValidity*100)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Field Accuracies:")

	for _, field := range sortedKeys(s.FieldAccuracies) {
		fmt.Fprintf(w, "  %s: %.2f%%\n", field, s.FieldAccuracies[field]*100)
	}
	fmt.Fprintln(w, "========================================")
}

func printTextReport(w io.Writer, spec *results.EvalSpec) error {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Document Extraction Evaluation Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Provider: %s\n", spec.Config.Provider)
	fmt.Fprintf(w, "Model:    %s\n", spec.Config.Model)
	fmt.Fprintf(w, "Dataset:  %s\n", spec.Config.DatasetPath)
	fmt.Fprintf(w, "Run:      %s\n", spec.Config.Timestamp)

	printSummary(w, calculateSummary(spec))

	fmt.Fprintln(w, "\nDetailed Results:")
	fmt.Fprintln(w, "========================================")

	for i, result := range spec.Results {
		fmt.Fprintf(w, "\n[%d] Case ID: %s\n", i+1, result.Identifier)

		if result.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", result.Error)
			continue
		}

		fmt.Fprintf(w, "  Overall Score: %.2f%%\n", result.OverallScore*100)
		fmt.Fprintf(w, "  Matched/Missing/Incorrect: %d/%d/%d\n", result.FieldsMatched, result.FieldsMissing, result.FieldsIncorrect)
		fmt.Fprintf(w, "  Citation Validity: %.2f%%\n", result.CitationValidity*100)

		fmt.Fprintln(w, "  Field Scores:")
		for _, field := range sortedKeys(result.FieldScores) {
			score := result.FieldScores[field]
			fmt.Fprintf(w, "    %s: %.2f%%", field, score*100)
			if score < 0.8 {
				fmt.Fprintf(w, "  (extracted: %s)", truncate(fmt.Sprint(result.ExtractedData[field]), 60))
			}
			fmt.Fprintln(w)
		}
	}

	return nil
}

func printJSONReport(w io.Writer, spec *results.EvalSpec) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Config  results.EvalConfig   `json:"config"`
		Summary summary              `json:"summary"`
		Results []results.EvalResult `json:"results"`
	}{spec.Config, calculateSummary(spec), spec.Results})
}

func printCSVReport(w io.Writer, spec *results.EvalSpec) error {
	writer := csv.NewWriter(w)

	fieldSet := make(map[string]float64)
	for _, r := range spec.Results {
		for field := range r.FieldScores {
			fieldSet[field] = 0
		}
	}
	fields := sortedKeys(fieldSet)

	header := []string{"ID", "URI", "Overall Score", "Fields Matched", "Fields Missing", "Fields Incorrect", "Citation Validity", "Error"}
	for _, field := range fields {
		header = append(header, "Field_"+field)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range spec.Results {
		row := []string{
			r.Identifier,
			r.URI,
			fmt.Sprintf("%.4f", r.OverallScore),
			strconv.Itoa(r.FieldsMatched),
			strconv.Itoa(r.FieldsMissing),
			strconv.Itoa(r.FieldsIncorrect),
			fmt.Sprintf("%.4f", r.CitationValidity),
			r.Error,
		}
		for _, field := range fields {
			row = append(row, fmt.Sprintf("%.4f", r.FieldScores[field]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
