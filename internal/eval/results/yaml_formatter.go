package results

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/docintel/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Effort      string `yaml:"effort,omitempty"`
	Citations   bool   `yaml:"citations"`
	DatasetPath string `yaml:"datasetpath"`
	SampleSize  int    `yaml:"samplesize"`
	Concurrency int    `yaml:"concurrency"`
	Timestamp   string `yaml:"timestamp"`
}

// EvalResult represents a single evaluation result
type EvalResult struct {
	Identifier       string             `yaml:"identifier"`
	URI              string             `yaml:"uri"`
	ExtractedData    map[string]any     `yaml:"extracteddata,omitempty"`
	OverallScore     float64            `yaml:"overallscore"`
	LevenshteinTotal int                `yaml:"levenshteintotal"`
	FieldsMatched    int                `yaml:"fieldsmatched"`
	FieldsMissing    int                `yaml:"fieldsmissing"`
	FieldsIncorrect  int                `yaml:"fieldsincorrect"`
	CitationValidity float64            `yaml:"citationvalidity"`
	FieldScores      map[string]float64 `yaml:"fieldscores,omitempty"`
	DurationSeconds  float64            `yaml:"durationseconds"`
	Error            string             `yaml:"error,omitempty"`
}

// EvalSpec represents the complete evaluation snapshot
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Results []EvalResult `yaml:"results"`
}

// SaveToYAML writes the results to dir/<model>-<timestamp>.yaml and returns
// the file path. Failed cases are kept with their error.
func SaveToYAML(dir string, cfg EvalConfig, results []metrics.EvaluationResult) (string, error) {
	if dir == "" {
		dir = "evals"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create evals directory: %w", err)
	}

	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	spec := EvalSpec{
		Config:  cfg,
		Results: make([]EvalResult, 0, len(results)),
	}

	for _, r := range results {
		evalResult := EvalResult{
			Identifier:      r.CaseID,
			URI:             r.URI,
			ExtractedData:   r.Extracted,
			DurationSeconds: r.ProcessingTime.Seconds(),
			Error:           r.Error,
		}

		if r.Comparison != nil {
			evalResult.OverallScore = r.Comparison.OverallScore
			evalResult.LevenshteinTotal = r.Comparison.LevenshteinTotal
			evalResult.FieldsMatched = r.Comparison.FieldsMatched
			evalResult.FieldsMissing = r.Comparison.FieldsMissing
			evalResult.FieldsIncorrect = r.Comparison.FieldsIncorrect
			evalResult.CitationValidity = r.Comparison.CitationValidity

			evalResult.FieldScores = make(map[string]float64, len(r.Comparison.Fields))
			for field, match := range r.Comparison.Fields {
				evalResult.FieldScores[field] = match.Score
			}
		}

		spec.Results = append(spec.Results, evalResult)
	}

	// Model names like "mistral-small3.2:24b" or "org/model" are not path safe
	name := strings.NewReplacer("/", "_", ":", "_").Replace(cfg.Model)
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", name, cfg.Timestamp))

	data, err := yaml.Marshal(&spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	slog.Info("Evaluation results saved", "path", filename)
	return filename, nil
}

// LoadYAML reads a snapshot written by SaveToYAML
func LoadYAML(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse results YAML: %w", err)
	}
	return &spec, nil
}
