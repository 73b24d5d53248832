package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapstar/internal/cli/output"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "seed <csv>",
		Short: "Load a CSV file into the target",
		Long: `Bulk-load a CSV file into a target table, replacing it. Every column is
loaded as text. Set source.kind: table to build the star schema from it.`,
		Example: `  # Load the microdata into table microdados_ed_basica
  leapstar seed microdados_ed_basica.csv

  # Choose the table name
  leapstar seed microdados_ed_basica.csv --table censo_2023`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := createEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			loaded, err := eng.Seed(ctx, args[0], table)
			if err != nil {
				return err
			}

			r := output.FromContext(ctx)
			if r.IsJSON() {
				return r.JSON(map[string]string{"table": loaded, "path": args[0]})
			}
			r.Printf("Loaded %s into %s\n", args[0], loaded)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Target table (default: file name without extension)")
	return cmd
}
