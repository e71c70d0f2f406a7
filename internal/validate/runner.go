package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/checkpoint"
	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/history"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/report"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// ProgressFunc receives each finished target with the running
// completion count. Called from worker goroutines in parallel mode.
type ProgressFunc func(completed, total int, outcome stage.TargetOutcome)

// RunnerConfig assembles a batch runner. Plan and Registry are
// required; everything else is optional.
type RunnerConfig struct {
	Plan     *plan.Plan
	Registry *stage.Registry
	// Matcher resolves project context for machines. Built from the
	// plan's projects when nil.
	Matcher *match.Matcher
	// Checkpoints enables session persistence and resume.
	Checkpoints *checkpoint.Store
	// History records run summaries and verified vaults.
	History *history.Store
	// Enabled restricts the stages per kind; nil enables everything.
	Enabled  map[plan.Kind][]stage.Name
	FailFast bool
	Parallel bool
	// Workers bounds parallel target execution; values below 2 mean
	// sequential even when Parallel is set.
	Workers  int
	Progress ProgressFunc
	Logger   *slog.Logger
}

// Runner validates whole plans.
type Runner struct {
	plan     *plan.Plan
	registry *stage.Registry
	matcher  *match.Matcher
	store    *checkpoint.Store
	hist     *history.Store
	orch     *Orchestrator
	parallel bool
	workers  int
	progress ProgressFunc
	log      *slog.Logger

	mu        sync.Mutex
	total     int
	completed int
}

// NewRunner builds a Runner from its configuration.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Plan == nil {
		return nil, azerrors.InternalError("runner requires a plan", nil)
	}
	if cfg.Registry == nil {
		return nil, azerrors.InternalError("runner requires a stage registry", nil)
	}

	r := &Runner{
		plan:     cfg.Plan,
		registry: cfg.Registry,
		matcher:  cfg.Matcher,
		store:    cfg.Checkpoints,
		hist:     cfg.History,
		parallel: cfg.Parallel,
		workers:  cfg.Workers,
		progress: cfg.Progress,
		log:      cfg.Logger,
	}
	if r.matcher == nil {
		r.matcher = match.NewMatcher(cfg.Plan.Projects)
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	orchOpts := []OrchestratorOption{
		WithFailFast(cfg.FailFast),
		WithOrchestratorLogger(r.log),
	}
	if cfg.Enabled != nil {
		orchOpts = append(orchOpts, WithEnabledStages(cfg.Enabled))
	}
	if r.store != nil {
		orchOpts = append(orchOpts, WithStageHook(func(target string, res stage.CheckResult, elapsed time.Duration) {
			if err := r.store.Append(target, res, elapsed); err != nil {
				r.log.Warn("cannot append checkpoint",
					"target", target, "stage", string(res.Stage), "error", err)
			}
		}))
	}
	r.orch = NewOrchestrator(cfg.Registry, orchOpts...)
	return r, nil
}

// FinalStages exposes the orchestrator's per-kind final stages so the
// checkpoint store can be constructed to agree with this runner.
func FinalStages(enabled map[plan.Kind][]stage.Name) map[plan.Kind]stage.Name {
	o := NewOrchestrator(stage.NewRegistry())
	if enabled != nil {
		WithEnabledStages(enabled)(o)
	}
	return o.FinalStages()
}

// Run validates every target the operation type selects. Stage-level
// problems never surface as errors; they live in the outcomes. The
// returned error covers setup failures only: unknown operation, empty
// scope, unregistered stages, or an unusable session store.
func (r *Runner) Run(ctx context.Context, opType string) (*report.Report, error) {
	targets, err := r.targetsFor(opType)
	if err != nil {
		return nil, err
	}

	kinds := make(map[plan.Kind]bool)
	for _, tgt := range targets {
		kinds[tgt.TargetKind()] = true
	}
	for kind := range kinds {
		if err := r.registry.Verify(r.orch.EnabledStages(kind)); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	resumedSession := false
	if r.store != nil {
		resumedSession, err = r.store.Start(opType, len(targets), r.plan.Fingerprint)
		if err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.total = len(targets)
	r.completed = 0
	r.mu.Unlock()

	r.log.Info("validation run starting",
		"operation", opType,
		"targets", len(targets),
		"parallel", r.parallel && r.workers > 1,
		"resumed_session", resumedSession)

	outcomes := make([]stage.TargetOutcome, len(targets))
	if r.parallel && r.workers > 1 {
		r.runParallel(ctx, targets, outcomes)
	} else {
		for i, tgt := range targets {
			outcomes[i] = r.runTarget(ctx, tgt)
			r.notify(outcomes[i])
		}
	}

	summary := report.Summarize(outcomes, time.Since(started))
	summary.OperationType = opType
	summary.StartedAt = started.UTC()
	if r.store != nil {
		summary.SessionID = r.store.SessionID()
		if err := r.store.Finalize(); err != nil {
			r.log.Warn("cannot finalize checkpoint session", "error", err)
		}
	}
	if r.hist != nil {
		if err := r.hist.RecordRun(summary); err != nil {
			r.log.Warn("cannot record run history", "error", err)
		}
	}

	r.log.Info("validation run finished",
		"operation", opType,
		"overall", summary.OverallStatus,
		"ready", summary.Ready,
		"warnings", summary.ReadyWithWarnings,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"resumed", summary.Resumed)

	return &report.Report{Summary: summary, Targets: outcomes}, nil
}

// runParallel fans targets out to a bounded worker pool. Outcomes land
// at their target's index so report order matches plan order.
func (r *Runner) runParallel(ctx context.Context, targets []plan.Target, outcomes []stage.TargetOutcome) {
	g := new(errgroup.Group)
	sem := make(chan struct{}, r.workers)

	for i, tgt := range targets {
		i, tgt := i, tgt
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = skippedOutcome(tgt)
				r.notify(outcomes[i])
				return nil
			}
			outcomes[i] = r.runTarget(ctx, tgt)
			r.notify(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()
}

// runTarget validates one target, restoring it from the session when a
// completed checkpoint exists. Interrupted targets are never marked
// complete, so a resumed run picks them back up.
func (r *Runner) runTarget(ctx context.Context, tgt plan.Target) stage.TargetOutcome {
	name := tgt.TargetName()

	if r.store != nil && r.store.IsTargetCompleted(name) {
		out, err := r.store.TargetResult(name)
		if err == nil {
			r.log.Info("target restored from checkpoint",
				"target", name, "status", string(out.Status))
			return out
		}
		r.log.Warn("cannot restore checkpointed target, re-running",
			"target", name, "error", err)
	}

	if ctx.Err() != nil {
		return skippedOutcome(tgt)
	}

	var outcome stage.TargetOutcome
	switch v := tgt.(type) {
	case *plan.Project:
		outcome = r.orch.ValidateProject(ctx, v)
	case *plan.Machine:
		m := r.matcher.Match(v)
		outcome = r.orch.ValidateMachine(ctx, v, m)
		r.recordVault(m, outcome)
	}

	if r.store != nil && !outcome.Interrupted {
		if err := r.store.CompleteTarget(name, outcome.Status, outcome.Issues); err != nil {
			r.log.Warn("cannot record target completion", "target", name, "error", err)
		}
	}
	return outcome
}

// recordVault persists a verified vault association after a target
// validates without failing. Placeholder vaults are never recorded.
func (r *Runner) recordVault(m *match.ProjectMatch, outcome stage.TargetOutcome) {
	if r.hist == nil || m == nil || m.Project == nil {
		return
	}
	if m.VaultName == "" || !m.VaultVerified {
		return
	}
	if outcome.Status == stage.StatusFailed || outcome.Interrupted {
		return
	}
	if err := r.hist.RecordVault(m.Project.Name, m.VaultName); err != nil {
		r.log.Warn("cannot record vault history",
			"project", m.Project.Name, "error", err)
	}
}

func (r *Runner) notify(outcome stage.TargetOutcome) {
	r.mu.Lock()
	r.completed++
	done, total := r.completed, r.total
	r.mu.Unlock()
	if r.progress != nil {
		r.progress(done, total, outcome)
	}
}

// targetsFor selects the targets an operation validates: projects in
// plan order, then machines in plan order.
func (r *Runner) targetsFor(opType string) ([]plan.Target, error) {
	var targets []plan.Target
	switch opType {
	case OpValidateProject:
		targets = projectTargets(r.plan)
	case OpValidateMachine:
		targets = machineTargets(r.plan)
	case OpValidateFull:
		targets = append(projectTargets(r.plan), machineTargets(r.plan)...)
	default:
		return nil, azerrors.InternalError(fmt.Sprintf("unknown operation type %q", opType), nil)
	}

	if len(targets) == 0 {
		return nil, azerrors.New(azerrors.ErrCodeNoTargets,
			fmt.Sprintf("plan declares no targets for %s", opType), nil).
			WithSuggestion("add projects or machines to the plan, or change the validation scope")
	}
	return targets, nil
}

func projectTargets(p *plan.Plan) []plan.Target {
	targets := make([]plan.Target, 0, len(p.Projects))
	for i := range p.Projects {
		targets = append(targets, &p.Projects[i])
	}
	return targets
}

func machineTargets(p *plan.Plan) []plan.Target {
	targets := make([]plan.Target, 0, len(p.Machines))
	for i := range p.Machines {
		targets = append(targets, &p.Machines[i])
	}
	return targets
}

func skippedOutcome(tgt plan.Target) stage.TargetOutcome {
	return stage.TargetOutcome{
		TargetName:  tgt.TargetName(),
		Kind:        tgt.TargetKind(),
		Status:      stage.StatusSkipped,
		Interrupted: true,
	}
}
