// Package validate orchestrates migration readiness runs: it executes
// the fixed stage sequence per target, contains executor failures,
// applies the critical short-circuit and fail-fast rules, and drives
// whole-plan batches with checkpointing, resume, and history recording.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// Operation types recorded in checkpoint sessions. A session resumes
// only into a run of the same operation type.
const (
	// OpValidateProject validates project targets only.
	OpValidateProject = "validate_project"
	// OpValidateMachine validates machine targets only.
	OpValidateMachine = "validate_machine"
	// OpValidateFull validates projects first, then machines.
	OpValidateFull = "validate_full"
)

// StageHook observes every persisted stage result as it is produced.
// The batch runner uses it to append checkpoints; lifecycle skips from
// cancellation never reach the hook.
type StageHook func(target string, res stage.CheckResult, elapsed time.Duration)

// Orchestrator executes the enabled stage sequence for single targets.
type Orchestrator struct {
	registry *stage.Registry
	enabled  map[plan.Kind][]stage.Name
	failFast bool
	hook     StageHook
	log      *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithFailFast stops a target's remaining stages after any failure,
// not just critical ones.
func WithFailFast(on bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.failFast = on
	}
}

// WithEnabledStages restricts execution to the given stages. Stages are
// run in canonical sequence order regardless of the order given;
// disabled stages are omitted from outcomes entirely.
func WithEnabledStages(enabled map[plan.Kind][]stage.Name) OrchestratorOption {
	return func(o *Orchestrator) {
		for kind, names := range enabled {
			o.enabled[kind] = orderStages(kind, names)
		}
	}
}

// WithStageHook registers the per-stage observer.
func WithStageHook(hook StageHook) OrchestratorOption {
	return func(o *Orchestrator) {
		o.hook = hook
	}
}

// WithOrchestratorLogger sets the structured logger.
func WithOrchestratorLogger(log *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// NewOrchestrator creates an orchestrator over a stage registry. All
// stages of both kinds are enabled by default.
func NewOrchestrator(registry *stage.Registry, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		enabled: map[plan.Kind][]stage.Name{
			plan.KindProject: stage.ProjectSequence(),
			plan.KindMachine: stage.MachineSequence(),
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnabledStages returns the enabled sequence for a kind.
func (o *Orchestrator) EnabledStages(kind plan.Kind) []stage.Name {
	out := make([]stage.Name, len(o.enabled[kind]))
	copy(out, o.enabled[kind])
	return out
}

// FinalStages maps each kind to the last enabled stage of its
// sequence. The checkpoint store derives target completion from it.
func (o *Orchestrator) FinalStages() map[plan.Kind]stage.Name {
	finals := make(map[plan.Kind]stage.Name)
	for kind, seq := range o.enabled {
		if len(seq) > 0 {
			finals[kind] = seq[len(seq)-1]
		}
	}
	return finals
}

// ValidateProject runs the enabled project stages against one project.
func (o *Orchestrator) ValidateProject(ctx context.Context, proj *plan.Project) stage.TargetOutcome {
	return o.runSequence(ctx, stage.Request{Project: proj}, nil)
}

// ValidateMachine runs the enabled machine stages against one machine
// with its resolved project context. Matching advisories become the
// outcome's issues.
func (o *Orchestrator) ValidateMachine(ctx context.Context, mc *plan.Machine, m *match.ProjectMatch) stage.TargetOutcome {
	var issues []string
	if m != nil {
		issues = m.Issues
	}
	return o.runSequence(ctx, stage.Request{Machine: mc, Match: m}, issues)
}

// runSequence walks the enabled stages in order. A critical failure or
// a fail-fast failure converts the remaining stages to SKIPPED results
// that are still part of the target's outcome; cancellation and the
// run deadline also skip the remainder, but those skips are lifecycle
// artifacts and stay out of the stage hook.
func (o *Orchestrator) runSequence(ctx context.Context, req stage.Request, issues []string) stage.TargetOutcome {
	var (
		kind       = req.Kind()
		target     = req.Target()
		sequence   = o.enabled[kind]
		start      = time.Now()
		results    = make([]stage.CheckResult, 0, len(sequence))
		skipReason string
		interrupt  bool
	)

	for _, name := range sequence {
		if skipReason == "" && ctx.Err() != nil {
			interrupt = true
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				skipReason = "skipped: run deadline exceeded"
			} else {
				skipReason = "skipped: run canceled"
			}
		}

		if skipReason != "" {
			res := stage.Skip(name, skipReason)
			results = append(results, res)
			if !interrupt {
				o.observe(target.TargetName(), res, 0)
			}
			continue
		}

		stageStart := time.Now()
		res := o.executeStage(ctx, name, req)
		elapsed := time.Since(stageStart)

		if stage.IsCriticalFailure(kind, res) {
			res.Critical = true
			skipReason = fmt.Sprintf("skipped: critical failure in %s stage", name)
		} else if res.Status == stage.StatusFailed && o.failFast {
			skipReason = fmt.Sprintf("skipped: fail-fast after %s failure", name)
		}

		results = append(results, res)
		o.observe(target.TargetName(), res, elapsed)
	}

	outcome := stage.NewOutcome(target, results, issues)
	outcome.Interrupted = interrupt
	outcome.Elapsed = time.Since(start)
	return outcome
}

// executeStage runs one executor with panic containment. Executor
// errors and panics become FAILED results and never propagate. The run
// deadline abandons an unresponsive executor; an interrupt waits for
// the in-flight stage to finish and keeps its real result.
func (o *Orchestrator) executeStage(ctx context.Context, name stage.Name, req stage.Request) stage.CheckResult {
	ex, ok := o.registry.Lookup(name)
	if !ok {
		return stage.Fail(name, fmt.Sprintf("no executor registered for stage %q", name)).
			WithKind(stage.ErrKindInternal)
	}

	type stageReturn struct {
		res stage.CheckResult
		err error
	}
	done := make(chan stageReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("stage executor panicked",
					"stage", string(name),
					"target", req.Target().TargetName(),
					"panic", fmt.Sprint(r))
				done <- stageReturn{res: stage.Fail(name,
					fmt.Sprintf("executor panicked: %v", r)).
					WithKind(stage.ErrKindInternal)}
			}
		}()
		res, err := ex.Execute(ctx, req)
		done <- stageReturn{res: res, err: err}
	}()

	select {
	case ret := <-done:
		return o.normalize(name, ret.res, ret.err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// The executor keeps running in its goroutine; its late
			// result lands in the buffered channel and is dropped.
			return stage.Fail(name, "stage abandoned: run deadline exceeded").
				WithKind(stage.ErrKindTimeout)
		}
		ret := <-done
		return o.normalize(name, ret.res, ret.err)
	}
}

// normalize converts executor errors into FAILED results and repairs
// results that forgot their stage name.
func (o *Orchestrator) normalize(name stage.Name, res stage.CheckResult, err error) stage.CheckResult {
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		return stage.Fail(name, "stage abandoned: run deadline exceeded").
			WithKind(stage.ErrKindTimeout)
	case errors.Is(err, context.Canceled):
		return stage.Fail(name, "stage interrupted: run canceled")
	default:
		o.log.Warn("stage executor returned an error",
			"stage", string(name), "error", err)
		return stage.Fail(name, fmt.Sprintf("executor error: %v", err)).
			WithKind(stage.ErrKindInternal)
	}

	if res.Stage == "" {
		res.Stage = name
	}
	return res
}

func (o *Orchestrator) observe(target string, res stage.CheckResult, elapsed time.Duration) {
	o.log.Debug("stage completed",
		"target", target,
		"stage", string(res.Stage),
		"status", string(res.Status),
		"duration_ms", elapsed.Milliseconds())
	if o.hook != nil {
		o.hook(target, res, elapsed)
	}
}

// orderStages filters a stage selection into canonical sequence order,
// dropping names that do not belong to the kind.
func orderStages(kind plan.Kind, selected []stage.Name) []stage.Name {
	want := make(map[stage.Name]bool, len(selected))
	for _, name := range selected {
		want[name] = true
	}
	var out []stage.Name
	for _, name := range stage.SequenceFor(kind) {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}
