package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapstar/internal/cli/output"
	"github.com/leapstack-labs/leapstar/internal/engine"
	"github.com/leapstack-labs/leapstar/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select   []string
	Truncate bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the dimensions and load the fact table",
		Long: `Load the census source, materialize every dimension, create the fact
table and its constraints, resolve foreign keys and append the fact rows.

Use --select to rebuild only some entities. Naming the fact table loads it
against the dimensions already in the target. A failed dimension does not
stop the others, but the fact table is then skipped.`,
		Example: `  # Build everything
  leapstar run

  # Rebuild one dimension after a failure
  leapstar run --select DIM_LOCAL

  # Reload the fact table from scratch
  leapstar run --select FACT_CENSO_ESCOLAR --truncate`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Comma-separated list of dimensions and/or the fact table to build")
	cmd.Flags().BoolVar(&opts.Truncate, "truncate", false, "Empty the fact table before loading")

	return cmd
}

// entitySummary is one line of the run summary.
type entitySummary struct {
	Entity       string `json:"entity"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Rows         int64  `json:"rows"`
	CastFailures int    `json:"cast_failures"`
	Error        string `json:"error,omitempty"`
}

type runSummary struct {
	RunID      string          `json:"run_id"`
	Status     string          `json:"status"`
	Entities   []entitySummary `json:"entities"`
	Unresolved map[string]int  `json:"unresolved,omitempty"`
	Skipped    []string        `json:"skipped_constraints,omitempty"`
	TotalMS    int64           `json:"total_ms"`
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	r := output.FromContext(ctx)

	eng, err := createEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	start := time.Now()
	res, runErr := eng.Run(ctx, engine.RunOptions{Select: splitList(opts.Select), Truncate: opts.Truncate})
	if res == nil {
		return runErr
	}

	summary := summarize(res)
	summary.TotalMS = time.Since(start).Milliseconds()

	rows := make([][]any, len(summary.Entities))
	for i, e := range summary.Entities {
		rows[i] = []any{e.Entity, e.Kind, e.Status, e.Rows, e.CastFailures, e.Error}
	}
	r.Printf("Run %s: %s\n", summary.RunID, summary.Status)
	if err := r.Table([]string{"Entity", "Kind", "Status", "Rows", "Cast failures", "Error"}, rows, summary); err != nil {
		return err
	}
	for dim, n := range summary.Unresolved {
		if n > 0 {
			r.Warnf("warning: %d fact row(s) have no %s key\n", n, dim)
		}
	}
	r.Printf("Completed in %s\n", time.Since(start).Round(time.Millisecond))

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func summarize(res *engine.RunResult) runSummary {
	s := runSummary{}
	if res.Run != nil {
		s.RunID = res.Run.ID
		s.Status = string(res.Run.Status)
	}
	for _, d := range res.Dimensions {
		e := entitySummary{
			Entity:       d.Dimension,
			Kind:         string(core.EntityDimension),
			Status:       string(core.EntityRunStatusSuccess),
			Rows:         d.Rows,
			CastFailures: d.CastFailures,
		}
		if d.Err != nil {
			e.Status = string(core.EntityRunStatusFailed)
			e.Error = d.Err.Error()
		}
		s.Entities = append(s.Entities, e)
	}
	if f := res.Fact; f != nil {
		e := entitySummary{
			Entity:       f.Table,
			Kind:         string(core.EntityFact),
			Status:       string(core.EntityRunStatusSuccess),
			Rows:         f.Rows,
			CastFailures: f.CastFailures,
		}
		// Dimension failures skip the fact stages, so a failed run with a
		// fact result failed in them.
		if res.Run != nil && res.Run.Status != core.RunStatusCompleted {
			e.Status = string(core.EntityRunStatusFailed)
			e.Error = res.Run.Error
		}
		s.Entities = append(s.Entities, e)
		s.Unresolved = f.Unresolved
		s.Skipped = f.SkippedConstraints
	}
	return s
}
