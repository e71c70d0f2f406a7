package preflight

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/config"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/history"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

// writeProbeName is the temporary file used to probe directory writability.
const writeProbeName = ".azmig-write-test"

// CheckConfig loads and validates the configuration for dir. The loaded
// config is returned alongside the result so later checks can use its
// paths; on failure the defaults are returned so those checks still run.
func (c *Checker) CheckConfig(dir string) (CheckResult, *config.Config) {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}

	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load(dir)
	}
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result, config.New()
	}

	result.Status = StatusPass
	switch {
	case c.configPath != "":
		result.Message = fmt.Sprintf("valid (%s)", c.configPath)
	case fileExists(filepath.Join(dir, config.ProjectConfigName)):
		result.Message = fmt.Sprintf("valid (%s)", config.ProjectConfigName)
	case config.UserConfigExists():
		result.Message = fmt.Sprintf("valid (%s)", config.GetUserConfigPath())
	default:
		result.Message = "valid (built-in defaults)"
	}
	return result, cfg
}

// CheckSessionsDir verifies the sessions directory exists and is writable.
func (c *Checker) CheckSessionsDir(path string) CheckResult {
	result := CheckResult{
		Name:     "sessions_dir",
		Required: true,
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", path, err)
		return result
	}

	probe := filepath.Join(path, writeProbeName)
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not writable: %v", path, err)
		return result
	}
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s is writable", path)
	return result
}

// CheckHistoryDB verifies the history database opens. History failures
// never abort a run, so this check is advisory.
func (c *Checker) CheckHistoryDB(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "history_db",
		Required: false,
	}

	if !cfg.History.Enabled {
		result.Status = StatusPass
		result.Message = "history recording disabled"
		return result
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hist, err := history.Open(cfg.History.Path, log)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open %s: %v", cfg.History.Path, err)
		result.Details = "runs will proceed without history recording"
		return result
	}
	defer hist.Close()

	runs, err := hist.RecentRuns(1)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s opens but queries fail: %v", cfg.History.Path, err)
		return result
	}

	result.Status = StatusPass
	if len(runs) == 0 {
		result.Message = fmt.Sprintf("%s ready (no runs recorded yet)", cfg.History.Path)
	} else {
		result.Message = fmt.Sprintf("%s ready (last run %s)",
			cfg.History.Path, runs[0].StartedAt.Format("2006-01-02"))
	}
	return result
}

// CheckPlanFile verifies the plan file loads and passes validation.
func (c *Checker) CheckPlanFile(path string) CheckResult {
	result := CheckResult{
		Name:     "plan_file",
		Required: true,
	}

	p, err := plan.Load(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d projects, %d machines", len(p.Projects), len(p.Machines))
	result.Details = fmt.Sprintf("fingerprint %s", p.Fingerprint[:12])
	return result
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
