package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/lehigh-university-libraries/docintel/internal/schema"
	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [name]",
		Short: "List built-in schemas or print one",
		Example: `  # List presets
  docintel presets

  # Print the invoice schema
  docintel presets invoice`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range schema.PresetNames() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			s, ok := schema.Preset(args[0])
			if !ok {
				return fmt.Errorf("unknown preset %q (available: %v)", args[0], schema.PresetNames())
			}
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
}
