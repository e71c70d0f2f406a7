package validate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/checks"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hookRecorder captures every persisted stage result the orchestrator
// emits, in order.
type hookRecorder struct {
	mu      sync.Mutex
	results []stage.CheckResult
}

func (h *hookRecorder) hook(_ string, res stage.CheckResult, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, res)
}

func (h *hookRecorder) stages() []stage.Name {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]stage.Name, 0, len(h.results))
	for _, r := range h.results {
		out = append(out, r.Stage)
	}
	return out
}

func staticOrchestrator(t *testing.T, static *checks.Static, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	reg := stage.NewRegistry()
	static.RegisterAll(reg)
	opts = append(opts, WithOrchestratorLogger(testLogger()))
	return NewOrchestrator(reg, opts...)
}

func TestValidateProject_RunsAllStagesInSequenceOrder(t *testing.T) {
	// Given a project and executors that all pass
	static := checks.NewStatic()
	orch := staticOrchestrator(t, static)
	proj := &plan.Project{Name: "ContosoMigration"}

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), proj)

	// Then every project stage ran in canonical order
	assert.Equal(t, stage.ProjectSequence(), static.Calls())
	assert.Equal(t, "ContosoMigration", outcome.TargetName)
	assert.Equal(t, plan.KindProject, outcome.Kind)
	assert.Equal(t, stage.StatusOK, outcome.Status)
	assert.False(t, outcome.Interrupted)
	require.Len(t, outcome.Results, len(stage.ProjectSequence()))
	for i, name := range stage.ProjectSequence() {
		assert.Equal(t, name, outcome.Results[i].Stage)
		assert.Equal(t, stage.StatusOK, outcome.Results[i].Status)
	}
}

func TestValidateProject_CriticalAccessFailureSkipsRemainder(t *testing.T) {
	// Given an access stage that fails with a missing subscription
	static := checks.NewStatic().Script(
		stage.Fail(stage.Access, "subscription not found for this tenant").
			WithKind(stage.ErrKindSubscriptionNotFound))
	rec := &hookRecorder{}
	orch := staticOrchestrator(t, static, WithStageHook(rec.hook))

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then the remaining stages are skipped but still present
	require.Len(t, outcome.Results, 4)
	assert.Equal(t, stage.StatusFailed, outcome.Results[0].Status)
	assert.True(t, outcome.Results[0].Critical)
	for _, res := range outcome.Results[1:] {
		assert.Equal(t, stage.StatusSkipped, res.Status)
		assert.Equal(t, "skipped: critical failure in access stage", res.Message)
	}
	assert.Equal(t, stage.StatusFailed, outcome.Status)
	assert.False(t, outcome.Interrupted)

	// And no executor ran after the failure
	assert.Equal(t, []stage.Name{stage.Access}, static.Calls())

	// And the skips were persisted through the hook
	assert.Equal(t, stage.ProjectSequence(), rec.stages())
}

func TestValidateProject_SubscriptionTextHeuristicIsCritical(t *testing.T) {
	// Given an access failure with no error kind, only a message
	static := checks.NewStatic().Script(
		stage.Fail(stage.Access, "the subscription is disabled and cannot be used"))
	orch := staticOrchestrator(t, static)

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then the message heuristic still triggers the short-circuit
	assert.True(t, outcome.Results[0].Critical)
	assert.Equal(t, []stage.Name{stage.Access}, static.Calls())
	assert.Equal(t, stage.StatusSkipped, outcome.Results[1].Status)
}

func TestValidateProject_NonCriticalFailureContinues(t *testing.T) {
	// Given a storage cache failure that is not critical
	static := checks.NewStatic().Script(
		stage.Fail(stage.StorageCache, "storage account id is malformed"))
	orch := staticOrchestrator(t, static)

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then every stage still executed
	assert.Equal(t, stage.ProjectSequence(), static.Calls())
	assert.Equal(t, stage.StatusFailed, outcome.Status)
	assert.False(t, outcome.Results[2].Critical)
	assert.Equal(t, stage.StatusOK, outcome.Results[3].Status)
}

func TestFailFast_SkipsRemainingStagesAfterAnyFailure(t *testing.T) {
	// Given fail-fast mode and a non-critical appliance failure
	static := checks.NewStatic().Script(
		stage.Fail(stage.ApplianceHealth, "appliance unreachable"))
	orch := staticOrchestrator(t, static, WithFailFast(true))

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then the stages after the failure are skipped
	assert.Equal(t, []stage.Name{stage.Access, stage.ApplianceHealth}, static.Calls())
	require.Len(t, outcome.Results, 4)
	assert.Equal(t, stage.StatusSkipped, outcome.Results[2].Status)
	assert.Equal(t, "skipped: fail-fast after appliance_health failure", outcome.Results[2].Message)
	assert.Equal(t, stage.StatusSkipped, outcome.Results[3].Status)
}

func TestValidateMachine_ExplicitCriticalShortCircuits(t *testing.T) {
	// Given a machine stage that marks its own failure critical
	static := checks.NewStatic().Script(stage.CheckResult{
		Stage:    stage.Region,
		Status:   stage.StatusFailed,
		Message:  "region is blocked by policy",
		Critical: true,
	})
	orch := staticOrchestrator(t, static)

	// When the machine is validated
	outcome := orch.ValidateMachine(context.Background(), &plan.Machine{Name: "web01"}, nil)

	// Then the remaining machine stages are skipped
	assert.Equal(t, []stage.Name{stage.Region}, static.Calls())
	require.Len(t, outcome.Results, len(stage.MachineSequence()))
	for _, res := range outcome.Results[1:] {
		assert.Equal(t, stage.StatusSkipped, res.Status)
	}
}

func TestWithEnabledStages_OmitsDisabledStagesEntirely(t *testing.T) {
	// Given only two machine stages enabled, listed out of order
	static := checks.NewStatic()
	orch := staticOrchestrator(t, static, WithEnabledStages(map[plan.Kind][]stage.Name{
		plan.KindMachine: {stage.VMSKU, stage.Region},
	}))

	// When the machine is validated
	outcome := orch.ValidateMachine(context.Background(), &plan.Machine{Name: "web01"}, nil)

	// Then only those stages appear, in canonical order
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, stage.Region, outcome.Results[0].Stage)
	assert.Equal(t, stage.VMSKU, outcome.Results[1].Stage)
	_, found := outcome.Result(stage.Discovery)
	assert.False(t, found)

	// And the final stage for checkpointing follows the selection
	assert.Equal(t, stage.VMSKU, orch.FinalStages()[plan.KindMachine])
	assert.Equal(t, stage.Quota, orch.FinalStages()[plan.KindProject])
}

func TestExecutorPanic_BecomesFailedResult(t *testing.T) {
	// Given an executor that panics
	static := checks.NewStatic()
	reg := stage.NewRegistry()
	static.RegisterAll(reg)
	reg.Register(stage.StorageCache, stage.ExecutorFunc(
		func(context.Context, stage.Request) (stage.CheckResult, error) {
			panic("boom")
		}))
	orch := NewOrchestrator(reg, WithOrchestratorLogger(testLogger()))

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then the panic is contained as a failed result
	res, ok := outcome.Result(stage.StorageCache)
	require.True(t, ok)
	assert.Equal(t, stage.StatusFailed, res.Status)
	assert.Contains(t, res.Message, "executor panicked: boom")
	assert.Equal(t, stage.ErrKindInternal, res.ErrorKind)

	// And the following stage still ran
	quota, ok := outcome.Result(stage.Quota)
	require.True(t, ok)
	assert.Equal(t, stage.StatusOK, quota.Status)
}

func TestExecutorError_BecomesFailedResult(t *testing.T) {
	// Given an executor that returns an error
	static := checks.NewStatic().
		ScriptError(stage.Quota, errors.New("quota api unavailable"))
	orch := staticOrchestrator(t, static)

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then the error becomes a failed result instead of propagating
	res, ok := outcome.Result(stage.Quota)
	require.True(t, ok)
	assert.Equal(t, stage.StatusFailed, res.Status)
	assert.Equal(t, "executor error: quota api unavailable", res.Message)
	assert.Equal(t, stage.ErrKindInternal, res.ErrorKind)
}

func TestUnregisteredStage_FailsInsteadOfPanicking(t *testing.T) {
	// Given a registry missing the quota executor
	static := checks.NewStatic()
	reg := stage.NewRegistry()
	for _, name := range []stage.Name{stage.Access, stage.ApplianceHealth, stage.StorageCache} {
		reg.Register(name, static.Executor(name))
	}
	orch := NewOrchestrator(reg, WithOrchestratorLogger(testLogger()))

	// When the project is validated
	outcome := orch.ValidateProject(context.Background(), &plan.Project{Name: "proj-a"})

	// Then the missing stage reports failure
	res, ok := outcome.Result(stage.Quota)
	require.True(t, ok)
	assert.Equal(t, stage.StatusFailed, res.Status)
	assert.Equal(t, stage.ErrKindInternal, res.ErrorKind)
}

func TestRunDeadline_AbandonsStageAndSkipsRemainder(t *testing.T) {
	// Given an appliance check slower than the run deadline
	static := checks.NewStatic().ScriptDelay(stage.ApplianceHealth, 500*time.Millisecond)
	rec := &hookRecorder{}
	orch := staticOrchestrator(t, static, WithStageHook(rec.hook))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// When the project is validated
	outcome := orch.ValidateProject(ctx, &plan.Project{Name: "proj-a"})

	// Then the slow stage is abandoned as a timeout failure
	require.Len(t, outcome.Results, 4)
	assert.Equal(t, stage.StatusOK, outcome.Results[0].Status)
	assert.Equal(t, stage.StatusFailed, outcome.Results[1].Status)
	assert.Equal(t, "stage abandoned: run deadline exceeded", outcome.Results[1].Message)
	assert.Equal(t, stage.ErrKindTimeout, outcome.Results[1].ErrorKind)

	// And the remaining stages become lifecycle skips
	assert.Equal(t, stage.StatusSkipped, outcome.Results[2].Status)
	assert.Equal(t, "skipped: run deadline exceeded", outcome.Results[2].Message)
	assert.True(t, outcome.Interrupted)

	// And the lifecycle skips stay out of the hook
	assert.Equal(t, []stage.Name{stage.Access, stage.ApplianceHealth}, rec.stages())
}

func TestCancel_WaitsForInFlightStageAndKeepsItsResult(t *testing.T) {
	// Given a storage check that cancels the run mid-flight but
	// still finishes with a real result
	static := checks.NewStatic()
	reg := stage.NewRegistry()
	static.RegisterAll(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	reg.Register(stage.StorageCache, stage.ExecutorFunc(
		func(context.Context, stage.Request) (stage.CheckResult, error) {
			once.Do(cancel)
			time.Sleep(30 * time.Millisecond)
			return stage.OK(stage.StorageCache, "cache scan finished"), nil
		}))
	rec := &hookRecorder{}
	orch := NewOrchestrator(reg,
		WithStageHook(rec.hook), WithOrchestratorLogger(testLogger()))

	// When the project is validated
	outcome := orch.ValidateProject(ctx, &plan.Project{Name: "proj-a"})

	// Then the in-flight stage's real result is kept
	require.Len(t, outcome.Results, 4)
	assert.Equal(t, stage.StatusOK, outcome.Results[2].Status)
	assert.Equal(t, "cache scan finished", outcome.Results[2].Message)

	// And the stages after it are lifecycle skips
	assert.Equal(t, stage.StatusSkipped, outcome.Results[3].Status)
	assert.Equal(t, "skipped: run canceled", outcome.Results[3].Message)
	assert.True(t, outcome.Interrupted)
	assert.Equal(t, []stage.Name{stage.Access, stage.ApplianceHealth, stage.StorageCache}, rec.stages())
}

func TestValidateMachine_MatchIssuesFlowIntoOutcome(t *testing.T) {
	// Given a match that produced advisory issues
	static := checks.NewStatic()
	orch := staticOrchestrator(t, static)
	m := &match.ProjectMatch{
		Kind:   match.MatchNone,
		Issues: []string{`no migration project found for machine "web01" (region "westeuropa")`},
	}

	// When the machine is validated
	outcome := orch.ValidateMachine(context.Background(), &plan.Machine{Name: "web01"}, m)

	// Then the issues ride along on the outcome
	require.Len(t, outcome.Issues, 1)
	assert.Contains(t, outcome.Issues[0], "no migration project found")
}
