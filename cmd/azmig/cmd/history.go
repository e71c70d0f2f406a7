package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past validation runs",
		Long: `Show past validation runs recorded in the history database.

Every completed run is recorded with its outcome counts. The stages
subcommand aggregates per-stage results across runs, which is useful
for spotting the stage that fails most often.

Examples:
  # Last 10 runs
  azmig history

  # Last 50 runs
  azmig history --limit=50

  # Per-stage totals for the last week
  azmig history stages --since=7d`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")

	cmd.AddCommand(newHistoryStagesCmd())

	return cmd
}

func newHistoryStagesCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Aggregate stage outcomes across runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryStages(cmd, since)
		},
	}

	cmd.Flags().StringVar(&since, "since", "30d", "Only count runs newer than this age (e.g., 7d, 24h)")

	return cmd
}

func runHistoryList(cmd *cobra.Command, limit int) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run a validation first: azmig validate <plan>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tOPERATION\tTARGETS\tREADY\tWARN\tFAILED\tSKIPPED\tDURATION\tRESULT")
	_, _ = fmt.Fprintln(w, "----\t---------\t-------\t-----\t----\t------\t-------\t--------\t------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			formatTimeAgo(r.StartedAt), r.OperationType, r.Total,
			r.Ready, r.ReadyWithWarnings, r.Failed, r.Skipped,
			formatRunDuration(r.DurationSeconds), r.OverallStatus)
	}
	_ = w.Flush()

	return nil
}

func runHistoryStages(cmd *cobra.Command, since string) error {
	age, err := parseDuration(since)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", since, err)
	}

	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.StageTotals(time.Now().Add(-age))
	if err != nil {
		return err
	}

	if len(stats) == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No stage results in the last %s.\n", since)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tOK\tWARN\tFAILED\tSKIPPED")
	_, _ = fmt.Fprintln(w, "-----\t--\t----\t------\t-------")

	for _, st := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			st.Stage, st.OK, st.Warnings, st.Failed, st.Skipped)
	}
	_ = w.Flush()

	return nil
}

// openHistoryStore opens the history database from config, refusing
// early when history recording is disabled.
func openHistoryStore() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if !cfg.History.Enabled {
		return nil, azerrors.New(azerrors.ErrCodeHistoryIO,
			"history recording is disabled", nil).
			WithSuggestion("set history.enabled: true in azmig.yaml")
	}

	return history.Open(cfg.History.Path, slog.Default())
}

// formatRunDuration renders a run duration compactly for the table.
func formatRunDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
