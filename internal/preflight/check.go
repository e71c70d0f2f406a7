package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CheckStatus represents the status of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// String returns the string representation of the status.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the outcome of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs preflight checks.
type Checker struct {
	configPath string
	planPath   string
	verbose    bool
	output     io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithConfigPath sets an explicit config file instead of directory discovery.
func WithConfigPath(path string) Option {
	return func(c *Checker) {
		c.configPath = path
	}
}

// WithPlan includes a plan file check.
func WithPlan(path string) Option {
	return func(c *Checker) {
		c.planPath = path
	}
}

// WithVerbose enables detailed output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks against the project directory and
// returns their results. A failed check never stops the remaining ones;
// only context cancellation does.
func (c *Checker) RunAll(ctx context.Context, dir string) []CheckResult {
	cfgResult, cfg := c.CheckConfig(dir)
	results := []CheckResult{cfgResult}

	checks := []func() CheckResult{
		func() CheckResult { return c.CheckSessionsDir(cfg.Sessions.StoragePath) },
		func() CheckResult { return c.CheckDiskSpace(cfg.Sessions.StoragePath) },
		func() CheckResult { return c.CheckHistoryDB(cfg) },
		func() CheckResult { return c.CheckFileDescriptors() },
	}
	if c.planPath != "" {
		checks = append(checks, func() CheckResult { return c.CheckPlanFile(c.planPath) })
	}

	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check())
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns an overall status string for the results.
func SummaryStatus(results []CheckResult) string {
	hasFailure := false
	hasWarning := false

	for _, r := range results {
		switch r.Status {
		case StatusFail:
			if r.Required {
				hasFailure = true
			} else {
				hasWarning = true
			}
		case StatusWarn:
			hasWarning = true
		}
	}

	if hasFailure {
		return "failed"
	}
	if hasWarning {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the checker's output writer.
func (c *Checker) PrintResults(results []CheckResult) {
	fmt.Fprintln(c.output, "Environment check:")
	fmt.Fprintln(c.output)

	for _, r := range results {
		fmt.Fprintf(c.output, "  [%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			fmt.Fprintf(c.output, "         %s\n", r.Details)
		}
	}

	fmt.Fprintln(c.output)
	fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(SummaryStatus(results)))

	var failures, warnings []CheckResult
	for _, r := range results {
		switch {
		case r.IsCritical():
			failures = append(failures, r)
		case r.Status == StatusWarn || r.Status == StatusFail:
			warnings = append(warnings, r)
		}
	}

	if len(failures) > 0 {
		fmt.Fprintln(c.output)
		fmt.Fprintln(c.output, "Fix these before validating:")
		for _, r := range failures {
			fmt.Fprintf(c.output, "  - %s: %s\n", r.Name, r.Message)
			if r.Details != "" {
				fmt.Fprintf(c.output, "    %s\n", r.Details)
			}
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(c.output)
		fmt.Fprintln(c.output, "Warnings:")
		for _, r := range warnings {
			fmt.Fprintf(c.output, "  - %s: %s\n", r.Name, r.Message)
		}
	}
}
