package evalcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command that evaluates extraction against a labelled dataset
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate extraction accuracy against a labelled dataset",
		Long: `Runs extraction over every case in a dataset and compares the extracted
values with the expected ones.

A dataset is a .jsonl or .parquet file of cases. Each case names a document
(local path or URL), a preset or inline schema, and the expected values:

  {"id": "mit", "uri": "docs/mit.pdf", "preset": "license", "expected": {"license_name": "MIT"}}

Relative document paths are resolved against the dataset's directory.`,
		Example: `  # Evaluate 10 cases with Ollama
  docintel eval run --dataset cases.jsonl --sample 10 --provider ollama

  # Evaluate a Parquet dataset with OpenAI, 8 documents at a time
  docintel eval run --dataset cases.parquet --provider openai --model gpt-5-mini --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.DatasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", opts.DatasetPath)
			}

			r := newRunner()
			r.out = cmd.OutOrStdout()
			_, err := r.executeRun(cmd.Context(), opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "", "Path to a .jsonl or .parquet dataset (required)")
	cmd.Flags().IntVar(&opts.SampleSize, "sample", -1, "Number of cases to evaluate (-1 for all)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "LLM provider (openai, gemini or ollama)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model name (defaults to provider's default)")
	cmd.Flags().StringVar(&opts.Effort, "effort", "", "Reasoning effort (minimal, low, medium, high)")
	cmd.Flags().BoolVar(&opts.Citations, "citations", true, "Request and check citations")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Number of documents to process at once")
	cmd.Flags().StringVar(&opts.OutputJSON, "output-json", "eval_results.json", "Path to output JSON results file (empty to skip)")
	cmd.Flags().StringVar(&opts.OutputReport, "output-report", "eval_report.txt", "Path to output detailed report file (empty to skip)")
	cmd.Flags().StringVar(&opts.ResultsDir, "results-dir", "evals", "Directory for YAML result snapshots")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// NewReportCmd creates the report command for saved evaluation results
func NewReportCmd() *cobra.Command {
	var resultsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a report for saved evaluation results",
		Long: `Prints a report for a YAML results snapshot written by "eval run".
When --results is a directory the newest snapshot in it is used.`,
		Example: `  # Report on the latest run
  docintel eval report

  # CSV for a specific run
  docintel eval report --results evals/gpt-5-mini-2025-01-02_03-04-05.yaml --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(cmd.OutOrStdout(), resultsPath, format)
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "evals", "Results YAML file or directory")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, csv)")

	return cmd
}
