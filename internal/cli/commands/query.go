package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapstar/internal/cli/output"
	"github.com/leapstack-labs/leapstar/internal/olap"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Measure string
	Agg     string
	By      []string
	Drill   []string
	Where   []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Aggregate a measure over dimension levels",
		Long: `Aggregate one fact measure grouped by dimension fields.

Levels are written DIMENSION.FIELD. --by rolls the measure up to the given
levels, --drill adds finer levels, and --where restricts a level to one or
more comma-separated values.`,
		Example: `  # Enrollments per state
  leapstar query --measure QT_MAT_BAS --by DIM_LOCAL.NO_UF

  # Drill into municipalities of one state
  leapstar query --measure QT_MAT_BAS --by DIM_LOCAL.NO_UF \
    --drill DIM_LOCAL.NO_MUNICIPIO --where DIM_LOCAL.NO_UF=Acre

  # Count schools by administrative dependency
  leapstar query --agg count --by DIM_TP_DEPENDENCIA.TP_DEPENDENCIA`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Measure, "measure", "m", olap.CountAll, "Fact measure to aggregate (* counts rows)")
	cmd.Flags().StringVar(&opts.Agg, "agg", "", "Aggregate: sum, count, avg, min, max (default sum, count for *)")
	cmd.Flags().StringSliceVar(&opts.By, "by", nil, "Levels to group by (DIMENSION.FIELD)")
	cmd.Flags().StringSliceVar(&opts.Drill, "drill", nil, "Finer levels to drill down to")
	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "Filter DIMENSION.FIELD=v1,v2 (repeatable)")
	return cmd
}

// buildQuery turns command options into an OLAP query.
func buildQuery(opts *QueryOptions) (*olap.Query, error) {
	aggName := opts.Agg
	if aggName == "" && opts.Measure == olap.CountAll {
		aggName = string(olap.AggCount)
	}
	agg, err := olap.ParseAgg(aggName)
	if err != nil {
		return nil, err
	}

	var levels []olap.Level
	for _, s := range opts.By {
		l, err := olap.ParseLevel(s)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	q := olap.RollUp(opts.Measure, agg, levels...)

	for _, s := range opts.Drill {
		l, err := olap.ParseLevel(s)
		if err != nil {
			return nil, err
		}
		q = q.DrillDown(l)
	}

	for _, w := range opts.Where {
		lhs, rhs, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q, expected DIMENSION.FIELD=value", w)
		}
		l, err := olap.ParseLevel(lhs)
		if err != nil {
			return nil, err
		}
		var values []any
		for _, v := range splitList([]string{rhs}) {
			values = append(values, v)
		}
		switch len(values) {
		case 0:
			return nil, fmt.Errorf("filter %q has no values", w)
		case 1:
			q = q.Slice(l, values[0])
		default:
			q = q.Dice(l, values...)
		}
	}
	return q, nil
}

func runQuery(cmd *cobra.Command, opts *QueryOptions) error {
	ctx := cmd.Context()

	q, err := buildQuery(opts)
	if err != nil {
		return err
	}

	eng, err := createEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	records := make([]map[string]any, len(res.Rows))
	for i, row := range res.Rows {
		rec := make(map[string]any, len(res.Columns))
		for j, col := range res.Columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return output.FromContext(ctx).Table(res.Columns, res.Rows, records)
}
