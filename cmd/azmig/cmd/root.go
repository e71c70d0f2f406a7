// Package cmd provides the CLI commands for azmig.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/config"
	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/logging"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/profiling"
	"github.com/mayoit/azmig-tool-assistant-sub000/pkg/version"
)

// Profiling flags
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profSession  *profiling.Session
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// configFile is the explicit --config path, empty for discovery.
var configFile string

// NewRootCmd creates the root command for the azmig CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azmig",
		Short: "Validate Azure migration readiness before the wave starts",
		Long: `azmig checks migration plans against Azure Migrate readiness rules:
project access, appliance health, per-machine region, network, SKU,
disk, and quota constraints.

Runs are checkpointed. An interrupted validation resumes where it
stopped as long as the plan file has not changed.

Start with 'azmig init' for a commented plan and config, then
'azmig validate plan.yaml'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("azmig version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: azmig.yaml discovered upward from the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.azmig/logs/")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and debug logging if the
// flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	opts := profiling.Options{
		CPUPath:   profileCPU,
		HeapPath:  profileMem,
		TracePath: profileTrace,
	}
	if opts.Enabled() {
		s, err := profiling.Start(opts)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		profSession = s
	}

	return nil
}

// stopProfilingAndLogging flushes profiles and closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if err := profSession.Stop(); err != nil {
		return fmt.Errorf("failed to stop profiling: %w", err)
	}
	profSession = nil

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// loadConfig builds the effective configuration: the explicit --config
// file when given, otherwise discovery upward from the working directory.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return config.Load(root)
}

// errValidationFailed signals a completed run with failed targets. The
// summary has already been rendered; only the exit code remains.
var errValidationFailed = errors.New("validation failed")

// Execute runs the root command and returns the process exit code:
// 0 for success, 1 for a run with failed targets, 2 for everything
// that stopped a run from completing.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errValidationFailed) {
			return 1
		}
		fmt.Fprint(os.Stderr, azerrors.FormatForCLI(err))
		return 2
	}
	return 0
}
