package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mayoit/azmig-tool-assistant-sub000/configs"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/config"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/output"
	"github.com/mayoit/azmig-tool-assistant-sub000/pkg/version"
)

const starterPlanName = "plan.yaml"

func newInitCmd() *cobra.Command {
	var (
		force    bool
		planOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write starter configuration and plan files",
		Long: `Write a starter azmig.yaml and plan.yaml into the current directory.

Both files are templates with commented examples. azmig works without
azmig.yaml (built-in defaults apply); the plan file is the input every
validation run requires and must be edited to describe your targets.

Existing files are never overwritten unless --force is given, and
--force backs up the previous azmig.yaml first.`,
		Example: `  # Create azmig.yaml and plan.yaml here
  azmig init

  # Recreate the templates, backing up the old config
  azmig init --force

  # Only the plan template
  azmig init --plan-only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runInit(ctx, cmd, force, planOnly)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files (config is backed up first)")
	cmd.Flags().BoolVar(&planOnly, "plan-only", false, "Write only the plan template")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, force, planOnly bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "azmig %s - writing starter files...", version.Version)
	out.Newline()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	wroteConfig := false
	if !planOnly {
		wroteConfig, err = writeConfigTemplate(out, cwd, force)
		if err != nil {
			return err
		}
	}

	wrotePlan, err := writePlanTemplate(out, cwd, force)
	if err != nil {
		return err
	}

	out.Newline()
	if !wroteConfig && !wrotePlan {
		out.Status("💡", "Nothing written. Use --force to recreate the templates")
		return nil
	}

	out.Success("Starter files ready")
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", fmt.Sprintf("  1. Edit %s with your projects and machines", starterPlanName))
	out.Status("", "  2. Run 'azmig doctor' to verify the environment")
	out.Status("", fmt.Sprintf("  3. Run 'azmig validate %s'", starterPlanName))

	return nil
}

// writeConfigTemplate writes azmig.yaml, backing up any existing file
// when --force is set.
func writeConfigTemplate(out *output.Writer, dir string, force bool) (bool, error) {
	path := filepath.Join(dir, config.ProjectConfigName)

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Statusf("ℹ️ ", "Existing %s preserved", config.ProjectConfigName)
			return false, nil
		}
		backup, err := config.BackupConfigFile(path)
		if err != nil {
			return false, fmt.Errorf("failed to back up %s: %w", config.ProjectConfigName, err)
		}
		if backup != "" {
			out.Statusf("💾", "Backed up old config to %s", filepath.Base(backup))
		}
	}

	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", config.ProjectConfigName, err)
	}

	out.Statusf("📝", "Created %s", config.ProjectConfigName)
	return true, nil
}

// writePlanTemplate writes the example plan unless one already exists.
func writePlanTemplate(out *output.Writer, dir string, force bool) (bool, error) {
	path := filepath.Join(dir, starterPlanName)

	if _, err := os.Stat(path); err == nil && !force {
		out.Statusf("ℹ️ ", "Existing %s preserved", starterPlanName)
		return false, nil
	}

	if err := os.WriteFile(path, []byte(configs.PlanTemplate), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", starterPlanName, err)
	}

	out.Statusf("📝", "Created %s", starterPlanName)
	return true, nil
}
