package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/lehigh-university-libraries/docintel/internal/config"
	"github.com/lehigh-university-libraries/docintel/internal/eval/dataset"
	"github.com/lehigh-university-libraries/docintel/internal/eval/metrics"
	"github.com/lehigh-university-libraries/docintel/internal/eval/results"
	"github.com/lehigh-university-libraries/docintel/internal/llm"
	"github.com/lehigh-university-libraries/docintel/internal/processor"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	DatasetPath  string
	SampleSize   int
	Provider     string
	Model        string
	Effort       string
	Citations    bool
	Concurrency  int
	OutputJSON   string
	OutputReport string
	ResultsDir   string
}

// runner holds what an evaluation run needs from the outside world.
type runner struct {
	newProvider  func(name string) (providers.Provider, error)
	newProcessor func(uri string, p providers.Provider) *processor.DocumentProcessor
	out          io.Writer
}

func newRunner() *runner {
	return &runner{
		newProvider:  llm.NewProvider,
		newProcessor: processor.FromDigitalPDF,
		out:          os.Stdout,
	}
}

func (r *runner) executeRun(ctx context.Context, opts runOptions) (*metrics.AggregateResults, error) {
	if opts.Provider == "" {
		opts.Provider = llm.DefaultProvider()
	}
	if opts.Model == "" {
		opts.Model = llm.DefaultModelFor(opts.Provider)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	effort, err := providers.ParseReasoningEffort(opts.Effort)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting evaluation run",
		"dataset", opts.DatasetPath,
		"sample_size", opts.SampleSize,
		"provider", opts.Provider,
		"model", opts.Model,
		"concurrency", opts.Concurrency)

	cases, err := dataset.NewLoader(opts.DatasetPath).LoadSample(opts.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("dataset %s has no cases", opts.DatasetPath)
	}
	slog.Info("Dataset loaded", "cases", len(cases))

	provider, err := r.newProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	evalResults := make([]metrics.EvaluationResult, len(cases))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, c := range cases {
		g.Go(func() error {
			res := r.evaluateCase(gctx, c, provider, opts, effort)
			evalResults[i] = res
			slog.Info("Case evaluated",
				"id", c.ID,
				"progress", fmt.Sprintf("%d/%d", done.Add(1), len(cases)),
				"duration", res.ProcessingTime,
				"error", res.Error)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("Aggregating results")
	aggregated := metrics.AggregateEvaluationResults(evalResults, opts.Provider, opts.Model)
	aggregated.PrintSummary(r.out)

	if opts.OutputJSON != "" {
		if err := aggregated.SaveToJSON(opts.OutputJSON); err != nil {
			slog.Warn("Failed to save JSON results", "path", opts.OutputJSON, "err", err)
		} else {
			fmt.Fprintf(r.out, "\nResults saved to: %s\n", opts.OutputJSON)
		}
	}

	if opts.OutputReport != "" {
		if err := aggregated.SaveDetailedReport(opts.OutputReport); err != nil {
			slog.Warn("Failed to save detailed report", "path", opts.OutputReport, "err", err)
		} else {
			fmt.Fprintf(r.out, "Detailed report saved to: %s\n", opts.OutputReport)
		}
	}

	path, err := results.SaveToYAML(opts.ResultsDir, results.EvalConfig{
		Provider:    opts.Provider,
		Model:       opts.Model,
		Effort:      string(effort),
		Citations:   opts.Citations,
		DatasetPath: opts.DatasetPath,
		SampleSize:  len(cases),
		Concurrency: opts.Concurrency,
	}, evalResults)
	if err != nil {
		slog.Warn("Failed to save YAML results", "err", err)
	} else {
		fmt.Fprintf(r.out, "\nGenerate a report with:\n  docintel eval report --results %s\n", path)
	}

	slog.Info("Evaluation complete")
	return aggregated, nil
}

// evaluateCase extracts one case and compares it with its expected values.
// Failures are recorded on the result rather than returned.
func (r *runner) evaluateCase(ctx context.Context, c dataset.Case, p providers.Provider, opts runOptions, effort providers.ReasoningEffort) metrics.EvaluationResult {
	start := time.Now()
	result := metrics.EvaluationResult{
		CaseID: c.ID,
		URI:    c.URI,
	}

	s, err := c.ResolveSchema()
	if err != nil {
		result.Error = fmt.Sprintf("invalid schema: %v", err)
		return result
	}

	citations := opts.Citations
	cfg := config.New(s)
	cfg.LLM.Provider = opts.Provider
	cfg.LLM.Model = opts.Model
	cfg.LLM.Reasoning.Effort = effort
	cfg.Extraction.IncludeCitations = &citations
	cfg.Extraction.PageNumbers = c.PageNumbers

	dp := r.newProcessor(c.URI, p)
	extracted, err := dp.Extract(ctx, cfg)
	result.ProcessingTime = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("extraction failed: %v", err)
		return result
	}
	result.Extracted = extracted.ExtractedData

	pages := 0
	if dp.Document.Content != nil {
		pages = len(dp.Document.Content.Pages)
	}
	result.Comparison = metrics.CompareCase(c.Expected, extracted.ExtractedData, extracted.Metadata, pages)

	slog.Debug("Comparison complete",
		"id", c.ID,
		"overall_score", result.Comparison.OverallScore,
		"levenshtein_total", result.Comparison.LevenshteinTotal,
		"fields_matched", result.Comparison.FieldsMatched,
		"fields_missing", result.Comparison.FieldsMissing)

	return result
}
