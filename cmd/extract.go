package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/config"
	"github.com/lehigh-university-libraries/docintel/internal/llm"
	"github.com/lehigh-university-libraries/docintel/internal/processor"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/lehigh-university-libraries/docintel/internal/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type extractOptions struct {
	ConfigPath string
	Schema     string
	Preset     string
	Provider   string
	Model      string
	Effort     string
	Citations  bool
	Pages      string
	Output     string
	Format     string
}

func newExtractCmd() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract <path-or-url>",
		Short: "Extract structured data from a PDF",
		Long: `Extracts the fields of a schema from a digital PDF.

The schema comes from --schema (a file, or inline JSON), --preset, or the
response_format of a --config file. Flags override the config file.`,
		Example: `  # Extract license details from a local file
  docintel extract LICENSE.pdf --preset license

  # Inline schema, first and third page only, YAML output
  docintel extract https://example.com/invoice.pdf --schema '{"invoice_number": "str", "total": "float"}' --pages 0,2 --format yaml

  # Config file with a different model and no citations
  docintel extract report.pdf --config extract.yaml --model gpt-5 --citations=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "json" && opts.Format != "yaml" {
				return fmt.Errorf("unsupported format: %s (supported: json, yaml)", opts.Format)
			}

			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}

			provider, err := llm.NewProvider(cfg.LLM.Provider)
			if err != nil {
				return err
			}

			slog.Info("Extracting", "uri", args[0], "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
			result, err := processor.FromDigitalPDF(args[0], provider).Extract(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Output != "" {
				f, err := os.Create(opts.Output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeResult(out, result, opts.Format); err != nil {
				return err
			}
			if opts.Output != "" {
				slog.Info("Result saved", "path", opts.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML or JSON config file")
	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "Schema file, or inline JSON schema")
	cmd.Flags().StringVar(&opts.Preset, "preset", "", "Built-in schema name (see: docintel presets)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "LLM provider (openai, gemini or ollama)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model name (defaults to provider's default)")
	cmd.Flags().StringVar(&opts.Effort, "effort", "", "Reasoning effort (minimal, low, medium, high)")
	cmd.Flags().BoolVar(&opts.Citations, "citations", true, "Include citations in the result")
	cmd.Flags().StringVar(&opts.Pages, "pages", "", "Comma separated 0-based pages to send, e.g. 0,2")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "Output format (json, yaml)")

	cmd.MarkFlagsMutuallyExclusive("schema", "preset")

	return cmd
}

// buildConfig merges the config file with the flags that were set.
func buildConfig(cmd *cobra.Command, opts extractOptions) (*config.Config, error) {
	cfg := config.New(nil)
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	switch {
	case opts.Schema != "":
		s, err := loadSchema(opts.Schema)
		if err != nil {
			return nil, err
		}
		cfg.ResponseFormat.Schema = s
	case opts.Preset != "":
		s, ok := schema.Preset(opts.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", opts.Preset, schema.PresetNames())
		}
		cfg.ResponseFormat.Schema = s
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.LLM.Provider = strings.ToLower(opts.Provider)
	}
	if flags.Changed("model") {
		cfg.LLM.Model = opts.Model
	}
	if flags.Changed("effort") {
		cfg.LLM.Reasoning.Effort = providers.ReasoningEffort(strings.ToLower(opts.Effort))
	}
	if flags.Changed("citations") {
		citations := opts.Citations
		cfg.Extraction.IncludeCitations = &citations
	}
	if flags.Changed("pages") {
		pages, err := parsePages(opts.Pages)
		if err != nil {
			return nil, err
		}
		cfg.Extraction.PageNumbers = pages
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSchema reads an inline JSON schema, a preset name or a schema file.
func loadSchema(ref string) (*schema.Schema, error) {
	if strings.HasPrefix(strings.TrimSpace(ref), "{") {
		return schema.Parse([]byte(ref))
	}
	return config.ResolveSchema(ref, "")
}

func parsePages(value string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page number %q", part)
		}
		pages = append(pages, n)
	}
	return pages, nil
}

func writeResult(w io.Writer, result any, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
