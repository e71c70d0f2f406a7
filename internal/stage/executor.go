package stage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

// Request is the input handed to a stage executor. Exactly one of
// Project or Machine is set; Match carries the resolved project
// context for machine targets.
type Request struct {
	Project *plan.Project
	Machine *plan.Machine
	Match   *match.ProjectMatch
}

// Target returns the request's target.
func (r Request) Target() plan.Target {
	if r.Project != nil {
		return r.Project
	}
	return r.Machine
}

// Kind returns the request's target kind.
func (r Request) Kind() plan.Kind {
	if r.Project != nil {
		return plan.KindProject
	}
	return plan.KindMachine
}

// Executor runs one stage against one target. Implementations report
// problems through the CheckResult; a non-nil error means the executor
// itself broke and is converted to a FAILED result by the orchestrator.
type Executor interface {
	Execute(ctx context.Context, req Request) (CheckResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) (CheckResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (CheckResult, error) {
	return f(ctx, req)
}

// Registry maps stage names to executors. Hosts embedding azmig can
// replace the built-in executors with provider-backed ones.
type Registry struct {
	mu        sync.RWMutex
	executors map[Name]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[Name]Executor)}
}

// Register binds an executor to a stage name, replacing any previous
// binding.
func (r *Registry) Register(name Name, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = ex
}

// Lookup returns the executor for a stage.
func (r *Registry) Lookup(name Name) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[name]
	return ex, ok
}

// Names returns registered stage names in sorted order.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.executors))
	for n := range r.executors {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Verify confirms every stage in the sequence has an executor.
// Called before a batch starts so misconfiguration fails up front.
func (r *Registry) Verify(sequence []Name) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range sequence {
		if _, ok := r.executors[name]; !ok {
			return azerrors.New(azerrors.ErrCodeStageUnregistered,
				fmt.Sprintf("no executor registered for stage %q", name), nil)
		}
	}
	return nil
}
