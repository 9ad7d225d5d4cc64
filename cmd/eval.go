package cmd

import (
	"github.com/lehigh-university-libraries/docintel/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Extraction accuracy evaluation tools",
		Long: `Evaluation tools for measuring how accurately documents are extracted.

Runs extraction over a labelled dataset, scores every field against its
expected value, checks citations, and generates comparison reports.`,
	}

	cmd.AddCommand(evalcmd.NewRunCmd())
	cmd.AddCommand(evalcmd.NewReportCmd())

	return cmd
}
