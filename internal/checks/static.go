package checks

import (
	"context"
	"sync"
	"time"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// Static is a scripted executor for tests and dry runs. Unscripted
// stages return OK; scripted results, errors, and delays play back as
// configured. Execution order is recorded for assertions.
type Static struct {
	mu      sync.Mutex
	results map[stage.Name]stage.CheckResult
	errs    map[stage.Name]error
	delays  map[stage.Name]time.Duration
	calls   []stage.Name
}

// NewStatic creates an empty scripted executor.
func NewStatic() *Static {
	return &Static{
		results: make(map[stage.Name]stage.CheckResult),
		errs:    make(map[stage.Name]error),
		delays:  make(map[stage.Name]time.Duration),
	}
}

// Script sets the result returned for the result's stage.
func (s *Static) Script(res stage.CheckResult) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Stage] = res
	return s
}

// ScriptError makes the named stage return an executor error.
func (s *Static) ScriptError(name stage.Name, err error) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[name] = err
	return s
}

// ScriptDelay makes the named stage block for the duration, honoring
// context cancellation like a real provider call.
func (s *Static) ScriptDelay(name stage.Name, d time.Duration) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[name] = d
	return s
}

// Executor returns a stage.Executor bound to one stage name.
func (s *Static) Executor(name stage.Name) stage.Executor {
	return stage.ExecutorFunc(func(ctx context.Context, _ stage.Request) (stage.CheckResult, error) {
		return s.run(ctx, name)
	})
}

// RegisterAll binds this executor to every known stage.
func (s *Static) RegisterAll(reg *stage.Registry) {
	for _, name := range stage.ProjectSequence() {
		reg.Register(name, s.Executor(name))
	}
	for _, name := range stage.MachineSequence() {
		reg.Register(name, s.Executor(name))
	}
}

// run plays back one scripted stage.
func (s *Static) run(ctx context.Context, name stage.Name) (stage.CheckResult, error) {
	s.mu.Lock()
	delay := s.delays[name]
	err := s.errs[name]
	res, scripted := s.results[name]
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return stage.CheckResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return stage.CheckResult{}, err
	}
	if scripted {
		return res, nil
	}
	return stage.OK(name, "scripted default"), nil
}

// Calls returns the stages executed so far, in order.
func (s *Static) Calls() []stage.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stage.Name, len(s.calls))
	copy(out, s.calls)
	return out
}
