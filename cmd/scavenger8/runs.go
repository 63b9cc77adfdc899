package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/donbonifacio/scavenger8/internal/config"
	"github.com/donbonifacio/scavenger8/internal/database"
	"github.com/donbonifacio/scavenger8/internal/report"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewRunsCmd creates the runs command.
// This command shows runs stored in the results database.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show runs stored in the results database",
		Long: `Runs lists the runs stored in the results database, most recent first.

Given a run id, it shows the totals of that run, how many pages matched
each technology and, with --results, every stored page.

Examples:
  # List all runs
  scavenger8 runs

  # Show one run
  scavenger8 runs 0b7c6f0e-3f2a-4f4e-9a57-7a1b2c3d4e5f

  # Show one run with every stored page
  scavenger8 runs --results 0b7c6f0e-3f2a-4f4e-9a57-7a1b2c3d4e5f

  # Render one run as Markdown
  scavenger8 runs --markdown 0b7c6f0e-3f2a-4f4e-9a57-7a1b2c3d4e5f`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Directory of the results database (default: XDG data directory)")
	cmd.Flags().BoolP("results", "r", false,
		"List every stored page of the run")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the run summary in Markdown format")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	showResults, err := cmd.Flags().GetBool("results")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listRuns(ctx, db, out)
	}
	return showRun(ctx, db, out, args[0], showResults, markdownOutput)
}

// listRuns prints one line per stored run.
func listRuns(ctx context.Context, db *database.ResultDB, out io.Writer) error {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'scavenger8 --file <path>' to start a run.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-16s  %10s  %10s  %s\n", "ID", "Started", "Submitted", "Processed", "Source")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))

	for _, run := range runs {
		submitted, processed := "-", "-"
		if run.Finished() {
			submitted = humanize.Comma(run.Submitted)
			processed = humanize.Comma(run.Processed)
		}
		fmt.Fprintf(out, "  %-36s  %-16s  %10s  %10s  %s\n",
			run.ID,
			humanize.Time(run.StartedAt),
			submitted,
			processed,
			run.Source,
		)
	}
	fmt.Fprintln(out, "\nUse 'scavenger8 runs <id>' to see the details of a run.")

	return nil
}

// showRun prints the summary of one run.
func showRun(ctx context.Context, db *database.ResultDB, out io.Writer, runID string, showResults, markdownOutput bool) error {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	counts, err := db.TechnologyCounts(ctx, runID)
	if err != nil {
		return err
	}

	summary := &report.Summary{
		RunID:        run.ID,
		Source:       run.Source,
		Started:      run.StartedAt,
		Submitted:    run.Submitted,
		Processed:    run.Processed,
		Technologies: counts,
	}
	if run.Finished() {
		summary.Elapsed = run.FinishedAt.Sub(run.StartedAt)
	} else {
		summary.Errors = []string{"run did not finish"}
	}

	var w report.Writer = report.NewSimpleWriter(out)
	if markdownOutput {
		w = report.NewMarkdownWriter(out)
	}
	if _, err := w.Write(summary); err != nil {
		return err
	}

	if !showResults {
		return nil
	}

	results, err := db.Results(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nPages (%d):\n\n", len(results))
	for _, r := range results {
		techs := "-"
		if len(r.Technologies) > 0 {
			techs = strings.Join(r.Technologies, ", ")
		}
		fmt.Fprintf(out, "  %s  %s  %s\n", r.URL, humanize.Bytes(uint64(r.BodySize)), techs) //nolint:gosec // body sizes are never negative
	}

	return nil
}
