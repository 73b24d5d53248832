package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapstar/internal/cli/output"
	"github.com/leapstack-labs/leapstar/pkg/core"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show run history",
		Long: `List recent runs, newest first. With --run, list the entities built by
one run with their status, row counts and errors.`,
		Example: `  # Last 10 runs
  leapstar runs

  # Entities of one run
  leapstar runs --run 3f6c...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r := output.FromContext(ctx)

			eng, err := createEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if runID != "" {
				ers, err := eng.EntityRuns(runID)
				if err != nil {
					return err
				}
				return renderEntityRuns(r, ers)
			}
			runs, err := eng.Runs(limit)
			if err != nil {
				return err
			}
			return renderRuns(r, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the entities of this run")
	return cmd
}

type runJSON struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Selection   []string   `json:"selection,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func renderRuns(r *output.Renderer, runs []*core.Run) error {
	rows := make([][]any, 0, len(runs))
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []any{
			run.ID, run.Status, run.StartedAt.Local().Format(time.DateTime), duration, run.Error,
		})
		out = append(out, runJSON{
			ID: run.ID, Target: run.Target, Selection: run.Selection, Status: string(run.Status),
			StartedAt: run.StartedAt, CompletedAt: run.CompletedAt, Error: run.Error,
		})
	}
	return r.Table([]string{"Run", "Status", "Started", "Duration", "Error"}, rows, out)
}

type entityRunJSON struct {
	Entity      string `json:"entity"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Rows        int64  `json:"rows"`
	ExecutionMS int64  `json:"execution_ms"`
	Error       string `json:"error,omitempty"`
}

func renderEntityRuns(r *output.Renderer, ers []*core.EntityRun) error {
	rows := make([][]any, 0, len(ers))
	out := make([]entityRunJSON, 0, len(ers))
	for _, er := range ers {
		rows = append(rows, []any{er.Entity, er.Kind, er.Status, er.RowsAffected, er.ExecutionMS, er.Error})
		out = append(out, entityRunJSON{
			Entity: er.Entity, Kind: string(er.Kind), Status: string(er.Status),
			Rows: er.RowsAffected, ExecutionMS: er.ExecutionMS, Error: er.Error,
		})
	}
	return r.Table([]string{"Entity", "Kind", "Status", "Rows", "ms", "Error"}, rows, out)
}
