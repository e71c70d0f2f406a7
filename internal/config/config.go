// Package config loads and validates azmig configuration.
//
// Configuration is layered, in order of increasing precedence:
//
//  1. Hardcoded defaults
//  2. User config (~/.config/azmig/config.yaml, XDG aware)
//  3. Project config (azmig.yaml in the working directory, or --config)
//  4. Environment variables (AZMIG_*)
//
// The merged result is validated once at startup. A malformed file or an
// unknown stage name is fatal before any target is validated.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// Config is the complete azmig configuration after layering.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Global   GlobalConfig   `yaml:"global" json:"global"`
	Stages   StagesConfig   `yaml:"stages" json:"stages"`
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// GlobalConfig holds execution knobs that apply to every run.
type GlobalConfig struct {
	// FailFast skips a target's remaining stages after its first failure.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`

	// ParallelExecution validates independent targets concurrently.
	// Output order still follows the plan regardless.
	ParallelExecution bool `yaml:"parallel_execution" json:"parallel_execution"`

	// Workers caps concurrent targets when parallel execution is on.
	Workers int `yaml:"workers" json:"workers"`

	// TimeoutSeconds bounds a whole validation run. 0 disables the deadline.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// StageToggle enables or disables a single validation stage.
type StageToggle struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// StagesConfig holds per-kind stage toggles keyed by stage name.
// A stage absent from the map runs with its default (enabled).
type StagesConfig struct {
	Project map[string]StageToggle `yaml:"project" json:"project"`
	Machine map[string]StageToggle `yaml:"machine" json:"machine"`
}

// SessionsConfig configures checkpoint session storage.
type SessionsConfig struct {
	// StoragePath is the directory holding session files.
	// Defaults to ~/.azmig/sessions.
	StoragePath string `yaml:"storage_path" json:"storage_path"`

	// ResumeWindowDays is how long an interrupted session stays resumable.
	ResumeWindowDays int `yaml:"resume_window_days" json:"resume_window_days"`

	// RetentionDays is how long finished sessions are kept before purge.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// FlushEvery is the number of checkpoint appends between disk flushes.
	FlushEvery int `yaml:"flush_every" json:"flush_every"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	// Enabled turns history recording on. History failures never abort a run.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the sqlite database file. Defaults to ~/.azmig/history.db.
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// FilePath overrides the default log file location.
	FilePath string `yaml:"file_path" json:"file_path"`
}

// ProjectConfigName is the project-level config file azmig looks for.
const ProjectConfigName = "azmig.yaml"

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Global: GlobalConfig{
			FailFast:          false,
			ParallelExecution: false,
			Workers:           defaultWorkers(),
			TimeoutSeconds:    0,
		},
		Stages: StagesConfig{
			Project: map[string]StageToggle{},
			Machine: map[string]StageToggle{},
		},
		Sessions: SessionsConfig{
			StoragePath:      defaultSessionsPath(),
			ResumeWindowDays: 7,
			RetentionDays:    30,
			FlushEvery:       5,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

func defaultSessionsPath() string {
	return filepath.Join(dataDir(), "sessions")
}

func defaultHistoryPath() string {
	return filepath.Join(dataDir(), "history.db")
}

// dataDir returns the azmig data directory (~/.azmig).
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".azmig")
	}
	return filepath.Join(home, ".azmig")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/azmig/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/azmig/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "azmig", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "azmig", "config.yaml")
	}
	return filepath.Join(home, ".config", "azmig", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for a project directory.
// Missing files are fine at every layer; malformed files are not.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadUserConfig(); err != nil {
		return nil, err
	}

	yamlPath := filepath.Join(dir, ProjectConfigName)
	ymlPath := filepath.Join(dir, "azmig.yml")
	switch {
	case fileExists(yamlPath):
		if err := cfg.loadYAML(yamlPath); err != nil {
			return nil, err
		}
	case fileExists(ymlPath):
		if err := cfg.loadYAML(ymlPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds the configuration with an explicit project config file.
// Unlike Load, the file must exist.
func LoadFile(path string) (*Config, error) {
	cfg := New()

	if err := cfg.loadUserConfig(); err != nil {
		return nil, err
	}

	if !fileExists(path) {
		return nil, azerrors.New(azerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file not found: %s", path), nil).
			WithSuggestion("run 'azmig init' to create a starter config")
	}
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadUserConfig() error {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil
	}
	return c.loadYAML(path)
}

// overlay mirrors Config with optional fields so a file can set a boolean
// to false without the merge mistaking it for "unset". Stage toggles merge
// by key, so they need no pointer treatment.
type overlay struct {
	Version *int `yaml:"version"`
	Global  struct {
		FailFast          *bool `yaml:"fail_fast"`
		ParallelExecution *bool `yaml:"parallel_execution"`
		Workers           *int  `yaml:"workers"`
		TimeoutSeconds    *int  `yaml:"timeout_seconds"`
	} `yaml:"global"`
	Stages   StagesConfig `yaml:"stages"`
	Sessions struct {
		StoragePath      *string `yaml:"storage_path"`
		ResumeWindowDays *int    `yaml:"resume_window_days"`
		RetentionDays    *int    `yaml:"retention_days"`
		FlushEvery       *int    `yaml:"flush_every"`
	} `yaml:"sessions"`
	History struct {
		Enabled *bool   `yaml:"enabled"`
		Path    *string `yaml:"path"`
	} `yaml:"history"`
	Logging struct {
		Level    *string `yaml:"level"`
		FilePath *string `yaml:"file_path"`
	} `yaml:"logging"`
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return azerrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return azerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.apply(&o)
	return nil
}

// apply merges explicitly set overlay values into c.
func (c *Config) apply(o *overlay) {
	if o.Version != nil {
		c.Version = *o.Version
	}

	if o.Global.FailFast != nil {
		c.Global.FailFast = *o.Global.FailFast
	}
	if o.Global.ParallelExecution != nil {
		c.Global.ParallelExecution = *o.Global.ParallelExecution
	}
	if o.Global.Workers != nil {
		c.Global.Workers = *o.Global.Workers
	}
	if o.Global.TimeoutSeconds != nil {
		c.Global.TimeoutSeconds = *o.Global.TimeoutSeconds
	}

	for name, toggle := range o.Stages.Project {
		if c.Stages.Project == nil {
			c.Stages.Project = map[string]StageToggle{}
		}
		c.Stages.Project[name] = toggle
	}
	for name, toggle := range o.Stages.Machine {
		if c.Stages.Machine == nil {
			c.Stages.Machine = map[string]StageToggle{}
		}
		c.Stages.Machine[name] = toggle
	}

	if o.Sessions.StoragePath != nil {
		c.Sessions.StoragePath = *o.Sessions.StoragePath
	}
	if o.Sessions.ResumeWindowDays != nil {
		c.Sessions.ResumeWindowDays = *o.Sessions.ResumeWindowDays
	}
	if o.Sessions.RetentionDays != nil {
		c.Sessions.RetentionDays = *o.Sessions.RetentionDays
	}
	if o.Sessions.FlushEvery != nil {
		c.Sessions.FlushEvery = *o.Sessions.FlushEvery
	}

	if o.History.Enabled != nil {
		c.History.Enabled = *o.History.Enabled
	}
	if o.History.Path != nil {
		c.History.Path = *o.History.Path
	}

	if o.Logging.Level != nil {
		c.Logging.Level = *o.Logging.Level
	}
	if o.Logging.FilePath != nil {
		c.Logging.FilePath = *o.Logging.FilePath
	}
}

// applyEnvOverrides applies AZMIG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AZMIG_FAIL_FAST"); v != "" {
		c.Global.FailFast = parseBool(v)
	}
	if v := os.Getenv("AZMIG_PARALLEL"); v != "" {
		c.Global.ParallelExecution = parseBool(v)
	}
	if v := os.Getenv("AZMIG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Global.Workers = n
		}
	}
	if v := os.Getenv("AZMIG_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Global.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("AZMIG_SESSIONS_DIR"); v != "" {
		c.Sessions.StoragePath = v
	}
	if v := os.Getenv("AZMIG_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("AZMIG_HISTORY_ENABLED"); v != "" {
		c.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("AZMIG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// expandPaths resolves a leading ~/ in configured paths so files can use
// the same notation the docs do.
func (c *Config) expandPaths() {
	c.Sessions.StoragePath = expandHome(c.Sessions.StoragePath)
	c.History.Path = expandHome(c.History.Path)
	c.Logging.FilePath = expandHome(c.Logging.FilePath)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.Global.Workers < 1 {
		return azerrors.ConfigError(
			fmt.Sprintf("global.workers must be at least 1, got %d", c.Global.Workers), nil)
	}
	if c.Global.TimeoutSeconds < 0 {
		return azerrors.ConfigError(
			fmt.Sprintf("global.timeout_seconds must be non-negative, got %d", c.Global.TimeoutSeconds), nil)
	}

	if c.Sessions.ResumeWindowDays < 1 {
		return azerrors.ConfigError(
			fmt.Sprintf("sessions.resume_window_days must be at least 1, got %d", c.Sessions.ResumeWindowDays), nil)
	}
	if c.Sessions.RetentionDays < 1 {
		return azerrors.ConfigError(
			fmt.Sprintf("sessions.retention_days must be at least 1, got %d", c.Sessions.RetentionDays), nil)
	}
	if c.Sessions.FlushEvery < 1 {
		return azerrors.ConfigError(
			fmt.Sprintf("sessions.flush_every must be at least 1, got %d", c.Sessions.FlushEvery), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return azerrors.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}

	if err := validateToggles(plan.KindProject, c.Stages.Project); err != nil {
		return err
	}
	if err := validateToggles(plan.KindMachine, c.Stages.Machine); err != nil {
		return err
	}
	return nil
}

// validateToggles rejects stage names that do not belong to the kind.
func validateToggles(kind plan.Kind, toggles map[string]StageToggle) error {
	for name := range toggles {
		sn := stage.Name(name)
		owner, known := stage.KindOf(sn)
		if !known {
			return azerrors.New(azerrors.ErrCodeUnknownStage,
				fmt.Sprintf("stages.%s: unknown stage %q", kind, name), nil).
				WithSuggestion(fmt.Sprintf("valid %s stages: %s", kind, joinNames(stage.SequenceFor(kind))))
		}
		if owner != kind {
			return azerrors.New(azerrors.ErrCodeUnknownStage,
				fmt.Sprintf("stages.%s: stage %q belongs to %s targets", kind, name, owner), nil)
		}
	}
	return nil
}

func joinNames(names []stage.Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// EnabledStages returns the enabled stages for a kind in canonical order.
// Toggles only remove stages; they never reorder them.
func (c *Config) EnabledStages(kind plan.Kind) []stage.Name {
	toggles := c.Stages.Project
	if kind == plan.KindMachine {
		toggles = c.Stages.Machine
	}

	seq := stage.SequenceFor(kind)
	enabled := make([]stage.Name, 0, len(seq))
	for _, name := range seq {
		if t, ok := toggles[string(name)]; ok && !t.Enabled {
			continue
		}
		enabled = append(enabled, name)
	}
	return enabled
}

// EnabledByKind returns the per-kind enabled stage map consumed by the runner.
func (c *Config) EnabledByKind() map[plan.Kind][]stage.Name {
	return map[plan.Kind][]stage.Name{
		plan.KindProject: c.EnabledStages(plan.KindProject),
		plan.KindMachine: c.EnabledStages(plan.KindMachine),
	}
}

// ResumeWindow returns the session resume window as a duration.
func (c *Config) ResumeWindow() time.Duration {
	return time.Duration(c.Sessions.ResumeWindowDays) * 24 * time.Hour
}

// Retention returns the session retention period as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Sessions.RetentionDays) * 24 * time.Hour
}

// RunTimeout returns the run deadline, or 0 when disabled.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Global.TimeoutSeconds) * time.Second
}

// FindProjectRoot locates the directory whose config governs startDir.
// It walks up looking for azmig.yaml, azmig.yml, or a .git directory,
// falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	current := absDir
	for {
		if fileExists(filepath.Join(current, ProjectConfigName)) ||
			fileExists(filepath.Join(current, "azmig.yml")) {
			return current, nil
		}
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
