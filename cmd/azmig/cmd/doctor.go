package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/config"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		planPath   string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run environment diagnostics to ensure azmig can operate correctly.

Checks:
  - Configuration parses and validates
  - Sessions directory exists and is writable
  - Disk space for checkpoint files (100MB minimum)
  - History database opens and answers queries
  - File descriptor limit

These guard the tool itself. They are separate from the readiness
stages a validation run executes against migration targets.

Use --plan to additionally verify a plan file loads.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  azmig doctor

  # Verbose output with details
  azmig doctor --verbose

  # Also verify a plan file
  azmig doctor --plan plan.yaml

  # JSON output for scripting
  azmig doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput, planPath)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to verify alongside the environment")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool, planPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	opts := []preflight.Option{
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	}
	if configFile != "" {
		opts = append(opts, preflight.WithConfigPath(configFile))
	}
	if planPath != "" {
		opts = append(opts, preflight.WithPlan(planPath))
	}
	checker := preflight.New(opts...)

	results := checker.RunAll(ctx, root)
	sessionsDir := doctorSessionsDir(root)

	if jsonOutput {
		if err := outputDoctorJSON(cmd, results); err != nil {
			return err
		}
		return doctorVerdict(sessionsDir, results)
	}

	checker.PrintResults(results)

	if !preflight.NeedsCheck(sessionsDir) {
		if age := preflight.MarkerAge(sessionsDir); age > 0 {
			cmd.Printf("\nLast successful check: %s ago\n", formatMarkerAge(age))
		}
	}

	return doctorVerdict(sessionsDir, results)
}

// doctorVerdict records the outcome in the marker file and maps
// critical failures to a command error.
func doctorVerdict(sessionsDir string, results []preflight.CheckResult) error {
	if preflight.HasCriticalFailures(results) {
		_ = preflight.ClearMarker(sessionsDir)
		return &doctorError{message: "environment check failed"}
	}

	_ = preflight.MarkPassed(sessionsDir)
	return nil
}

// doctorSessionsDir resolves the sessions directory the marker lives
// in, falling back to defaults when config cannot be loaded.
func doctorSessionsDir(root string) string {
	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.New()
	}
	return cfg.Sessions.StoragePath
}

// doctorError marks a failed check run without the standard error
// formatting; PrintResults has already shown the details.
type doctorError struct {
	message string
}

func (e *doctorError) Error() string {
	return e.message
}

// JSONOutput is the structure for doctor's JSON output.
type JSONOutput struct {
	Status   string            `json:"status"`
	Checks   []JSONCheckResult `json:"checks"`
	Warnings []string          `json:"warnings,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

// JSONCheckResult is a single check result for JSON output.
type JSONCheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func outputDoctorJSON(cmd *cobra.Command, results []preflight.CheckResult) error {
	out := JSONOutput{
		Status: preflight.SummaryStatus(results),
		Checks: make([]JSONCheckResult, len(results)),
	}

	for i, r := range results {
		out.Checks[i] = JSONCheckResult{
			Name:     r.Name,
			Status:   statusToString(r.Status),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}

		if r.IsCritical() {
			out.Errors = append(out.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn || (r.Status == preflight.StatusFail && !r.Required) {
			out.Warnings = append(out.Warnings, r.Name+": "+r.Message)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func statusToString(s preflight.CheckStatus) string {
	switch s {
	case preflight.StatusPass:
		return "pass"
	case preflight.StatusWarn:
		return "warn"
	case preflight.StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// formatMarkerAge renders the marker age coarsely; minute precision is
// noise for a check that is expected to be days old.
func formatMarkerAge(d time.Duration) string {
	hours := d.Hours()
	switch {
	case hours < 1:
		return "less than 1 hour"
	case hours < 24:
		h := int(hours)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		days := int(hours / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
