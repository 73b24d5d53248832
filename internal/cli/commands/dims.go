package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapstar/internal/cli/output"
)

// NewDimsCommand creates the dims command.
func NewDimsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "dims",
		Short:   "List the configured dimensions",
		Long:    `List every dimension, explicit and generated from flag columns, with its fields and key column.`,
		Aliases: []string{"dimensions"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			schema, err := cfg.Star.Schema()
			if err != nil {
				return err
			}

			type dimJSON struct {
				Name   string            `json:"name"`
				Key    string            `json:"key"`
				Fields map[string]string `json:"fields"`
			}
			var (
				rows [][]any
				out  []dimJSON
			)
			for _, spec := range schema.Registry().Specs() {
				fields := make([]string, len(spec.Fields))
				types := make(map[string]string, len(spec.Fields))
				for i, f := range spec.Fields {
					fields[i] = f.Name + " " + string(f.Type)
					types[f.Name] = string(f.Type)
				}
				key := schema.KeyField(spec.Name).Name
				rows = append(rows, []any{spec.Name, key, strings.Join(fields, ", ")})
				out = append(out, dimJSON{Name: spec.Name, Key: key, Fields: types})
			}
			return output.FromContext(ctx).Table([]string{"Dimension", "Key", "Fields"}, rows, out)
		},
	}
}
