package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/checkpoint"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/validate"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage checkpoint sessions",
		Long: `List or purge checkpoint sessions.

An interrupted validation run leaves a session file behind; re-running
the same operation against the unchanged plan resumes it. Sessions past
the retention window are removed automatically, this command removes
them on demand.

Examples:
  # List all sessions
  azmig sessions

  # Remove sessions older than 7 days
  azmig sessions purge --older-than=7d`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd)
		},
	}

	cmd.AddCommand(newSessionsPurgeCmd())

	return cmd
}

func newSessionsPurgeCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove old sessions",
		Long: `Remove sessions that started before the given age.

Examples:
  # Remove sessions older than 30 days
  azmig sessions purge --older-than=30d

  # Remove everything from before today
  azmig sessions purge --older-than=24h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsPurge(cmd, olderThan)
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "30d", "Remove sessions older than this duration (e.g., 7d, 30d)")

	return cmd
}

func runSessionsList(cmd *cobra.Command) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Sessions are created by interrupted runs of: azmig validate <plan>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tOPERATION\tSTARTED\tPROGRESS\tSTATUS")
	_, _ = fmt.Fprintln(w, "-------\t---------\t-------\t--------\t------")

	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(s.SessionID), s.OperationType, formatTimeAgo(s.StartedAt),
			sessionProgress(s), sessionStatus(s))
	}
	_ = w.Flush()

	return nil
}

func runSessionsPurge(cmd *cobra.Command, olderThan string) error {
	duration, err := parseDuration(olderThan)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", olderThan, err)
	}

	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Purge(duration)
	if err != nil {
		return err
	}

	if count == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sessions to purge.")
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Purged %d session(s).\n", count)
	}

	return nil
}

// openSessionStore opens the checkpoint store for inspection commands.
// The store locks its directory only when a run starts, so listing and
// purging are safe alongside an active run.
func openSessionStore() (*checkpoint.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return checkpoint.NewStore(
		cfg.Sessions.StoragePath,
		validate.FinalStages(cfg.EnabledByKind()),
		checkpoint.WithRetention(cfg.Retention()),
	)
}

// shortID truncates a session UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionProgress(s checkpoint.SessionInfo) string {
	if s.Corrupt || s.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", s.Completed, s.Total)
}

func sessionStatus(s checkpoint.SessionInfo) string {
	switch {
	case s.Corrupt:
		return "corrupt"
	case s.Total > 0 && s.Completed >= s.Total:
		return "complete"
	case s.Failed > 0:
		return fmt.Sprintf("resumable (%d failed)", s.Failed)
	default:
		return "resumable"
	}
}

// parseDuration parses a duration string like "30d", "7d", "24h".
func parseDuration(s string) (time.Duration, error) {
	// Day suffix is not understood by time.ParseDuration.
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := 0
		_, err := fmt.Sscanf(s, "%dd", &days)
		if err != nil {
			return 0, fmt.Errorf("invalid day format")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// formatTimeAgo formats a time as a human-readable "time ago" string.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}
