package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/config"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{
			name:     "required pass is not critical",
			result:   CheckResult{Status: StatusPass, Required: true},
			expected: false,
		},
		{
			name:     "required fail is critical",
			result:   CheckResult{Status: StatusFail, Required: true},
			expected: true,
		},
		{
			name:     "optional fail is not critical",
			result:   CheckResult{Status: StatusFail, Required: false},
			expected: false,
		},
		{
			name:     "required warn is not critical",
			result:   CheckResult{Status: StatusWarn, Required: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_New(t *testing.T) {
	// Given: default options
	checker := New()

	// Then: checker is created with defaults
	assert.NotNil(t, checker)
	assert.False(t, checker.verbose)
	assert.Empty(t, checker.planPath)
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(
		WithVerbose(true),
		WithOutput(buf),
		WithPlan("plan.yaml"),
		WithConfigPath("custom.yaml"),
	)

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
	assert.Equal(t, "plan.yaml", checker.planPath)
	assert.Equal(t, "custom.yaml", checker.configPath)
}

// isolatedEnv points config discovery and default paths at temp
// directories so checks never touch the developer's real setup.
func isolatedEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Setenv("AZMIG_SESSIONS_DIR", filepath.Join(dir, "sessions"))
	t.Setenv("AZMIG_HISTORY_PATH", filepath.Join(dir, "history.db"))
	return dir
}

func TestCheckConfig_ValidProjectFile(t *testing.T) {
	// Given: a project directory with a valid config
	dir := isolatedEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "azmig.yaml"),
		[]byte("global:\n  workers: 2\n"), 0o644))

	// When: checking the config
	result, cfg := New().CheckConfig(dir)

	// Then: the check passes and names the file
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	assert.Contains(t, result.Message, "azmig.yaml")

	// Then: the loaded config is handed to later checks
	require.NotNil(t, cfg)
	assert.Equal(t, 2, cfg.Global.Workers)
}

func TestCheckConfig_MalformedFileFailsButReturnsDefaults(t *testing.T) {
	// Given: a config file that will not parse
	dir := isolatedEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "azmig.yaml"),
		[]byte("global: [broken\n"), 0o644))

	// When: checking the config
	result, cfg := New().CheckConfig(dir)

	// Then: the check fails but later checks still get usable defaults
	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
	require.NotNil(t, cfg)
	assert.GreaterOrEqual(t, cfg.Global.Workers, 1)
}

func TestCheckSessionsDir_CreatesAndProbes(t *testing.T) {
	// Given: a sessions path that does not exist yet
	path := filepath.Join(t.TempDir(), "azmig", "sessions")

	// When: checking
	result := New().CheckSessionsDir(path)

	// Then: the directory is created, writable, and the probe is gone
	assert.Equal(t, StatusPass, result.Status)
	assert.DirExists(t, path)
	assert.NoFileExists(t, filepath.Join(path, writeProbeName))
}

func TestCheckSessionsDir_FailsWhenPathIsBlocked(t *testing.T) {
	// Given: a regular file where a parent directory should be
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// When: checking a path beneath the file
	result := New().CheckSessionsDir(filepath.Join(blocker, "sessions"))

	// Then: the check fails with the create error
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "cannot create")
}

func TestCheckDiskSpace_PassesOnRealFilesystem(t *testing.T) {
	result := New().CheckDiskSpace(t.TempDir())

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "free")
}

func TestCheckDiskSpace_MissingPathMeasuresParent(t *testing.T) {
	// Given: a path that has not been created yet
	path := filepath.Join(t.TempDir(), "not-created-yet")

	// When: checking
	result := New().CheckDiskSpace(path)

	// Then: the parent's filesystem is measured instead of failing
	assert.Equal(t, StatusPass, result.Status)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 bytes"},
		{2 * 1024, "2.0 KB"},
		{150 * 1024 * 1024, "150.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(tt.bytes))
		})
	}
}

func TestCheckHistoryDB_DisabledIsAPass(t *testing.T) {
	// Given: history recording turned off
	cfg := config.New()
	cfg.History.Enabled = false

	// When: checking
	result := New().CheckHistoryDB(cfg)

	// Then: nothing to verify
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "disabled")
}

func TestCheckHistoryDB_OpensFreshDatabase(t *testing.T) {
	// Given: a history path in an empty directory
	cfg := config.New()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	// When: checking
	result := New().CheckHistoryDB(cfg)

	// Then: the database is created and queryable
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "no runs recorded yet")
	assert.False(t, result.Required)
}

func TestCheckPlanFile_Valid(t *testing.T) {
	// Given: a minimal valid plan
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := `
version: 1
projects:
  - name: PROJ-01
    subscription: 9f86d081-8292-44f8-a1bc-0a1f6f17c2a1
    region: westeurope
machines:
  - name: web01
    project: PROJ-01
    region: westeurope
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: checking
	result := New().CheckPlanFile(path)

	// Then: target counts and fingerprint are reported
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "1 projects, 1 machines", result.Message)
	assert.Contains(t, result.Details, "fingerprint")
}

func TestCheckPlanFile_MissingFails(t *testing.T) {
	result := New().CheckPlanFile(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not found")
}

func TestRunAll_ReturnsEveryCheck(t *testing.T) {
	// Given: a healthy isolated environment with a plan
	dir := isolatedEnv(t)
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath,
		[]byte("projects:\n  - name: PROJ-01\n    subscription: abc\n    region: westeurope\n"), 0o644))

	checker := New(WithPlan(planPath))

	// When: running all checks
	results := checker.RunAll(context.Background(), dir)

	// Then: every check reports, in a stable order
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		"config", "sessions_dir", "disk_space", "history_db",
		"file_descriptors", "plan_file",
	}, names)

	// Then: the healthy environment is ready
	assert.False(t, HasCriticalFailures(results))
	assert.Equal(t, "ready", SummaryStatus(results))
}

func TestRunAll_OmitsPlanCheckWithoutPlan(t *testing.T) {
	dir := isolatedEnv(t)

	results := New().RunAll(context.Background(), dir)

	for _, r := range results {
		assert.NotEqual(t, "plan_file", r.Name)
	}
}

func TestRunAll_CancelledContextStopsAfterConfig(t *testing.T) {
	// Given: an already cancelled context
	dir := isolatedEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When: running
	results := New().RunAll(ctx, dir)

	// Then: only the config check ran
	require.Len(t, results, 1)
	assert.Equal(t, "config", results[0].Name)
}

func TestHasCriticalFailures(t *testing.T) {
	// Given: one critical failure among passes
	results := []CheckResult{
		{Name: "a", Status: StatusPass, Required: true},
		{Name: "b", Status: StatusFail, Required: true},
		{Name: "c", Status: StatusFail, Required: false},
	}

	assert.True(t, HasCriticalFailures(results))
	assert.False(t, HasCriticalFailures(results[:1]))
}

func TestSummaryStatus(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{
			name:    "all pass",
			results: []CheckResult{{Status: StatusPass, Required: true}},
			want:    "ready",
		},
		{
			name: "optional failure downgrades to warning",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: false},
			},
			want: "ready_with_warnings",
		},
		{
			name: "warning",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn, Required: false},
			},
			want: "ready_with_warnings",
		},
		{
			name: "required failure",
			results: []CheckResult{
				{Status: StatusFail, Required: true},
				{Status: StatusWarn, Required: false},
			},
			want: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummaryStatus(tt.results))
		})
	}
}

func TestPrintResults_ListsChecksAndSummary(t *testing.T) {
	// Given: mixed results
	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf))
	results := []CheckResult{
		{Name: "config", Status: StatusPass, Message: "valid (azmig.yaml)", Required: true},
		{Name: "sessions_dir", Status: StatusFail, Message: "not writable", Required: true, Details: "chmod the directory"},
		{Name: "history_db", Status: StatusWarn, Message: "slow disk", Required: false},
	}

	// When: printing
	checker.PrintResults(results)

	// Then: each check, the overall status, and the fix list appear
	out := buf.String()
	assert.Contains(t, out, "[PASS] config: valid (azmig.yaml)")
	assert.Contains(t, out, "[FAIL] sessions_dir: not writable")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "Fix these before validating:")
	assert.Contains(t, out, "chmod the directory")
	assert.Contains(t, out, "Warnings:")
	assert.Contains(t, out, "slow disk")
}

func TestPrintResults_VerboseShowsDetails(t *testing.T) {
	// Given: a passing result with details and a verbose checker
	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))
	results := []CheckResult{
		{Name: "plan_file", Status: StatusPass, Message: "2 projects, 10 machines",
			Details: "fingerprint 9f86d0818292", Required: true},
	}

	// When: printing
	checker.PrintResults(results)

	// Then: the details line is included
	assert.Contains(t, buf.String(), "fingerprint 9f86d0818292")
}
