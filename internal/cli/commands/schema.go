package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapstar/internal/cli/output"
	"github.com/leapstack-labs/leapstar/pkg/star"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or apply the fact table DDL",
		Long: `Render the statements that create the fact table and its foreign keys
for the configured target. Every statement is idempotent.

With --apply the statements run in one transaction. The dimension tables
must already exist.`,
		Example: `  # Show the DDL
  leapstar schema

  # Create the fact table in the target
  leapstar schema --apply`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r := output.FromContext(ctx)

			eng, err := createEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			var fs *star.FactSchema
			if apply {
				fs, err = eng.ApplySchema(ctx)
			} else {
				fs, err = eng.FactSchema()
			}
			if err != nil {
				return err
			}
			return renderSchema(r, fs, apply)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Execute the statements against the target")
	return cmd
}

type schemaJSON struct {
	Table      string   `json:"table"`
	Statements []string `json:"statements"`
	Skipped    []string `json:"skipped_constraints,omitempty"`
	Applied    bool     `json:"applied"`
}

func renderSchema(r *output.Renderer, fs *star.FactSchema, applied bool) error {
	if r.IsJSON() {
		return r.JSON(schemaJSON{Table: fs.Table, Statements: fs.SQL(), Skipped: fs.Skipped, Applied: applied})
	}
	for _, stmt := range fs.SQL() {
		r.Printf("%s;\n", stmt)
	}
	for _, name := range fs.Skipped {
		r.Printf("-- %s: not supported by this target\n", name)
	}
	if applied {
		r.Printf("-- applied %d statement(s) to %s\n", len(fs.Statements), fs.Table)
	}
	return nil
}
