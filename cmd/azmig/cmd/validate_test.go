package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayoit/azmig-tool-assistant-sub000/configs"
	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/report"
)

// writeStarterPlan drops the embedded example plan into dir. It has one
// project (warning: no cache storage) and two ready machines.
func writeStarterPlan(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configs.PlanTemplate), 0o644))
	return path
}

const failingPlan = `version: 1
projects:
  - name: PROJ-BAD
    subscription: not-a-subscription
    region: westeurope
    appliance: appliance-01
machines:
  - name: web01
    project: PROJ-BAD
    region: westeurope
`

func TestValidateCmd_StarterPlanRunsClean(t *testing.T) {
	// Given: the embedded starter plan in an isolated environment
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)

	// When: validating with plain output
	output, err := runRoot(t, "validate", planPath, "--plain")

	// Then: all three targets complete; the project carries the
	// missing-cache-storage warning, both machines are ready
	require.NoError(t, err)
	assert.Contains(t, output, "[1/3] WARN PROJ-WESTEU-01")
	assert.Contains(t, output, "OK   web01")
	assert.Contains(t, output, "OK   db01")
	assert.Contains(t, output, "storage_cache", "warned stage should be detailed")
	assert.Contains(t, output, "Complete: 3 targets")
	assert.Contains(t, output, "Ready:    2")
	assert.Contains(t, output, "Warnings: 1")
	assert.Contains(t, output, "Failed:   0")
}

func TestValidateCmd_FailedTargetSetsExitSignal(t *testing.T) {
	// Given: a plan whose project has a malformed subscription
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := filepath.Join(tmp, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(failingPlan), 0o644))

	// When: validating
	output, err := runRoot(t, "validate", planPath, "--plain")

	// Then: the run completes but reports the failure through the
	// exit-code sentinel
	require.Error(t, err)
	assert.True(t, errors.Is(err, errValidationFailed), "failed runs should map to exit code 1")
	assert.Contains(t, output, "FAIL PROJ-BAD")
	assert.Contains(t, output, "Failed:   1")
}

func TestValidateCmd_JSONOutput(t *testing.T) {
	// Given: the starter plan
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)

	// When: validating with --output json
	output, err := runRoot(t, "validate", planPath, "--output", "json")

	// Then: stdout is a decodable report with nothing mixed in
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(output), &rep), "JSON mode must emit only the report")
	assert.Equal(t, 3, rep.Summary.Total)
	assert.Equal(t, 2, rep.Summary.Ready)
	assert.Equal(t, 1, rep.Summary.ReadyWithWarnings)
	assert.Equal(t, report.OverallReadyWithWarnings, rep.Summary.OverallStatus)
	assert.Len(t, rep.Targets, 3)
	assert.Equal(t, "validate_full", rep.Summary.OperationType)
}

func TestValidateCmd_ProjectsOnly(t *testing.T) {
	// Given: the starter plan
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)

	// When: validating projects only
	output, err := runRoot(t, "validate", planPath, "--plain", "--projects-only")

	// Then: only the single project target runs
	require.NoError(t, err)
	assert.Contains(t, output, "[1/1]")
	assert.Contains(t, output, "Complete: 1 targets")
	assert.NotContains(t, output, "web01")
}

func TestValidateCmd_MachinesOnly(t *testing.T) {
	// Given: the starter plan
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)

	// When: validating machines only
	output, err := runRoot(t, "validate", planPath, "--plain", "--machines-only")

	// Then: both machines run, the project does not
	require.NoError(t, err)
	assert.Contains(t, output, "Complete: 2 targets")
	assert.Contains(t, output, "web01")
	assert.NotContains(t, output, "[1/2] WARN PROJ-WESTEU-01")
}

func TestValidateCmd_ScopeFlagsAreMutuallyExclusive(t *testing.T) {
	// Given: the starter plan
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)

	// When: requesting both scopes at once
	_, err := runRoot(t, "validate", planPath, "--projects-only", "--machines-only")

	// Then: cobra rejects the combination
	require.Error(t, err)
}

func TestValidateCmd_MissingPlanFails(t *testing.T) {
	// Given: no plan file
	tmp := isolatedEnv(t)
	inDir(t, tmp)

	// When: validating a path that does not exist
	_, err := runRoot(t, "validate", filepath.Join(tmp, "nope.yaml"))

	// Then: the error carries the plan-not-found code
	require.Error(t, err)
	assert.Equal(t, azerrors.ErrCodePlanNotFound, azerrors.GetCode(err))
}

func TestValidateCmd_RequiresPlanArgument(t *testing.T) {
	// When: running validate without a plan
	_, err := runRoot(t, "validate")

	// Then: it should fail with a usage error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestValidateCmd_RecordsHistory(t *testing.T) {
	// Given: the starter plan with history enabled (the default)
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)

	// When: validating, then asking for history
	_, err := runRoot(t, "validate", planPath, "--plain")
	require.NoError(t, err)

	histOut, err := runRoot(t, "history")

	// Then: the run shows up
	require.NoError(t, err)
	assert.Contains(t, histOut, "validate_full")
	assert.Contains(t, histOut, "ready_with_warnings")
}

func TestValidateCmd_LeavesCompleteSession(t *testing.T) {
	// Given: a finished run
	tmp := isolatedEnv(t)
	inDir(t, tmp)
	planPath := writeStarterPlan(t, tmp)
	_, err := runRoot(t, "validate", planPath, "--plain")
	require.NoError(t, err)

	// When: listing sessions
	output, err := runRoot(t, "sessions")

	// Then: the completed session is listed, not hidden
	require.NoError(t, err)
	assert.Contains(t, output, "validate_full")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "3/3")
}
