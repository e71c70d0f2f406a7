package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/checkpoint"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/checks"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/config"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/history"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/logging"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/output"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/preflight"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/report"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/ui"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/validate"
)

type validateOptions struct {
	projectsOnly bool
	machinesOnly bool
	resume       bool
	failFast     bool
	parallel     bool
	workers      int
	timeout      time.Duration
	plain        bool
	outputFormat string
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Validate migration readiness for the targets in a plan",
		Long: `Validate runs every enabled readiness stage against the projects and
machines declared in the plan file.

Projects are validated before machines. A critical project failure
(unreachable subscription) skips that project's remaining stages; the
skips are recorded as real results.

Interrupted runs leave a checkpoint session behind. Re-running the same
command against the unchanged plan resumes where the run stopped;
--resume=false forces a fresh run.`,
		Example: `  # Validate everything in the plan
  azmig validate plan.yaml

  # Machines only, stopping each target at its first failure
  azmig validate plan.yaml --machines-only --fail-fast

  # Four targets at a time, machine-readable output
  azmig validate plan.yaml --parallel --workers 4 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.projectsOnly, "projects-only", false, "Validate only project targets")
	cmd.Flags().BoolVar(&opts.machinesOnly, "machines-only", false, "Validate only machine targets")
	cmd.MarkFlagsMutuallyExclusive("projects-only", "machines-only")

	cmd.Flags().BoolVar(&opts.resume, "resume", true, "Resume a matching interrupted session when one exists")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Skip a target's remaining stages after its first failure")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Validate targets concurrently")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent targets with --parallel (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Deadline for the whole run, e.g. 10m (default from config)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain line output instead of the live display")
	cmd.Flags().StringVarP(&opts.outputFormat, "output", "o", "text", "Output format: text or json")

	return cmd
}

func runValidate(cmd *cobra.Command, planPath string, opts validateOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyValidateFlags(cmd, cfg, opts)

	// Without --debug, logs go to the file so the progress display owns
	// the terminal.
	if !debugMode {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Logging.Level
		if cfg.Logging.FilePath != "" {
			logCfg.FilePath = cfg.Logging.FilePath
		}
		if logger, cleanup, err := logging.Setup(logCfg); err == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}
	}

	p, err := plan.Load(planPath)
	if err != nil {
		return err
	}

	jsonOutput := opts.outputFormat == "json"
	out := output.New(cmd.OutOrStdout())
	if !jsonOutput && preflight.NeedsCheck(cfg.Sessions.StoragePath) {
		out.Statusf("💡", "first run in this environment; 'azmig doctor' checks readiness")
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.Path, slog.Default())
		if err != nil {
			slog.Warn("history unavailable, continuing without it", "error", err)
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	matchOpts := []match.Option{}
	if hist != nil {
		matchOpts = append(matchOpts, match.WithVaultSource(hist))
	}
	matcher := match.NewMatcher(p.Projects, matchOpts...)

	registry := stage.NewRegistry()
	checks.Register(registry, p, matcher)

	enabled := cfg.EnabledByKind()

	storeOpts := []checkpoint.Option{
		checkpoint.WithFlushEvery(cfg.Sessions.FlushEvery),
		checkpoint.WithResumeWindow(cfg.ResumeWindow()),
		checkpoint.WithRetention(cfg.Retention()),
		checkpoint.WithLogger(slog.Default()),
	}
	if !opts.resume {
		storeOpts = append(storeOpts, checkpoint.WithResumeDisabled())
	}
	store, err := checkpoint.NewStore(cfg.Sessions.StoragePath, validate.FinalStages(enabled), storeOpts...)
	if err != nil {
		return err
	}
	defer store.Close()

	var renderer ui.Renderer
	if !jsonOutput {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.plain),
			ui.WithNoColor(ui.DetectNoColor()),
			ui.WithPlanPath(planPath),
		))
		if err := renderer.Start(ctx); err != nil {
			renderer = ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(true)))
			_ = renderer.Start(ctx)
		}
	}

	runnerCfg := validate.RunnerConfig{
		Plan:        p,
		Registry:    registry,
		Matcher:     matcher,
		Checkpoints: store,
		History:     hist,
		Enabled:     enabled,
		FailFast:    cfg.Global.FailFast,
		Parallel:    cfg.Global.ParallelExecution,
		Workers:     cfg.Global.Workers,
		Logger:      slog.Default(),
	}
	if renderer != nil {
		r := renderer
		runnerCfg.Progress = func(completed, total int, outcome stage.TargetOutcome) {
			r.TargetDone(ui.TargetEvent{Index: completed, Total: total, Outcome: outcome})
		}
	}

	runner, err := validate.NewRunner(runnerCfg)
	if err != nil {
		if renderer != nil {
			_ = renderer.Stop()
		}
		return err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if d := cfg.RunTimeout(); d > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	rep, err := runner.Run(runCtx, operationFor(opts))
	if renderer != nil {
		if err == nil {
			renderer.Complete(runStats(rep.Summary))
		}
		_ = renderer.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		// The live display restores the terminal on exit, so repeat the
		// verdict where it survives in scrollback.
		if _, isTUI := renderer.(*ui.TUIRenderer); isTUI {
			printSummary(cmd.OutOrStdout(), rep.Summary)
		}
		if ctx.Err() != nil && rep.Summary.SessionID != "" {
			out.Statusf("💾", "interrupted; session %s saved, re-run to resume", rep.Summary.SessionID)
		}
	}

	if rep.Summary.ExitCode() != 0 {
		return errValidationFailed
	}
	return nil
}

// applyValidateFlags lets explicit command-line flags override the
// layered config.
func applyValidateFlags(cmd *cobra.Command, cfg *config.Config, opts validateOptions) {
	if cmd.Flags().Changed("fail-fast") {
		cfg.Global.FailFast = opts.failFast
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Global.ParallelExecution = opts.parallel
	}
	if cmd.Flags().Changed("workers") && opts.workers > 0 {
		cfg.Global.Workers = opts.workers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Global.TimeoutSeconds = int(opts.timeout / time.Second)
	}
}

// operationFor maps the scope flags to an operation type.
func operationFor(opts validateOptions) string {
	switch {
	case opts.projectsOnly:
		return validate.OpValidateProject
	case opts.machinesOnly:
		return validate.OpValidateMachine
	default:
		return validate.OpValidateFull
	}
}

// runStats converts a batch summary into renderer statistics.
func runStats(s report.BatchSummary) ui.RunStats {
	return ui.RunStats{
		Total:    s.Total,
		Ready:    s.Ready,
		Warnings: s.ReadyWithWarnings,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
		Resumed:  s.Resumed,
		Duration: time.Duration(s.DurationSeconds * float64(time.Second)),
	}
}

// printSummary writes the persistent one-line verdict after the live
// display has restored the terminal.
func printSummary(w io.Writer, s report.BatchSummary) {
	out := output.New(w)
	switch s.OverallStatus {
	case report.OverallFailed:
		out.Errorf("%d of %d targets failed validation", s.Failed, s.Total)
	case report.OverallReadyWithWarnings:
		out.Warningf("%d targets ready, %d with warnings", s.Ready+s.ReadyWithWarnings, s.ReadyWithWarnings)
	case report.OverallReady:
		out.Successf("all %d targets ready for migration", s.Total)
	default:
		out.Skipped("no targets were validated")
	}
	if s.Resumed > 0 {
		out.Statusf("↻", "%d targets restored from a previous session", s.Resumed)
	}
}
