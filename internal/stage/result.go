package stage

import (
	"time"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

// Status is the outcome of a single stage, or of a whole target after
// aggregation.
type Status string

const (
	// StatusOK indicates the stage passed.
	StatusOK Status = "OK"
	// StatusWarning indicates a non-blocking concern.
	StatusWarning Status = "WARNING"
	// StatusFailed indicates the stage failed.
	StatusFailed Status = "FAILED"
	// StatusSkipped indicates the stage did not execute.
	StatusSkipped Status = "SKIPPED"
)

// ErrorKind classifies failures in a machine-readable way so callers
// never have to parse messages.
type ErrorKind string

const (
	// ErrKindNone means no classification applies.
	ErrKindNone ErrorKind = ""
	// ErrKindSubscriptionNotFound marks access failures caused by a
	// missing, disabled, or unauthorized subscription.
	ErrKindSubscriptionNotFound ErrorKind = "subscription_not_found"
	// ErrKindTimeout marks stages abandoned at the run deadline.
	ErrKindTimeout ErrorKind = "timeout"
	// ErrKindInternal marks executor errors and panics.
	ErrKindInternal ErrorKind = "internal"
)

// CheckResult is the outcome of one stage for one target.
type CheckResult struct {
	// Stage names the stage that produced this result.
	Stage Name `json:"stage"`
	// Status is the stage outcome.
	Status Status `json:"status"`
	// Message is a short human-readable explanation.
	Message string `json:"message,omitempty"`
	// Details carries structured context (quota numbers, matched
	// names, resource IDs) for reports and checkpoints.
	Details map[string]any `json:"details,omitempty"`
	// Critical marks a failure that must halt the target's remaining
	// stages regardless of fail-fast configuration.
	Critical bool `json:"critical,omitempty"`
	// ErrorKind classifies the failure, if any.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// OK builds a passing result.
func OK(name Name, message string) CheckResult {
	return CheckResult{Stage: name, Status: StatusOK, Message: message}
}

// Warn builds a warning result.
func Warn(name Name, message string) CheckResult {
	return CheckResult{Stage: name, Status: StatusWarning, Message: message}
}

// Fail builds a failed result.
func Fail(name Name, message string) CheckResult {
	return CheckResult{Stage: name, Status: StatusFailed, Message: message}
}

// Skip builds a skipped result.
func Skip(name Name, message string) CheckResult {
	return CheckResult{Stage: name, Status: StatusSkipped, Message: message}
}

// WithDetail returns a copy of the result with one detail added.
func (r CheckResult) WithDetail(key string, value any) CheckResult {
	details := make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		details[k] = v
	}
	details[key] = value
	r.Details = details
	return r
}

// WithKind returns a copy of the result with the error kind set.
func (r CheckResult) WithKind(kind ErrorKind) CheckResult {
	r.ErrorKind = kind
	return r
}

// Aggregate folds stage results into a single target status:
// FAILED if any stage failed, else WARNING if any stage warned,
// else OK if at least one stage ran, else SKIPPED.
func Aggregate(results []CheckResult) Status {
	hasFailed, hasWarning, hasOK := false, false, false
	for _, r := range results {
		switch r.Status {
		case StatusFailed:
			hasFailed = true
		case StatusWarning:
			hasWarning = true
		case StatusOK:
			hasOK = true
		}
	}

	switch {
	case hasFailed:
		return StatusFailed
	case hasWarning:
		return StatusWarning
	case hasOK:
		return StatusOK
	default:
		return StatusSkipped
	}
}

// TargetOutcome is the full result of validating one target.
type TargetOutcome struct {
	// TargetName is the target's stable name.
	TargetName string `json:"target_name"`
	// Kind is the target kind.
	Kind plan.Kind `json:"kind"`
	// Status is the aggregated target status.
	Status Status `json:"status"`
	// Results holds one entry per stage in execution order,
	// including skipped stages.
	Results []CheckResult `json:"results"`
	// Issues carries advisory notes attached outside any single
	// stage, such as fallback project matching.
	Issues []string `json:"issues,omitempty"`
	// Resumed is true when the outcome was restored from a
	// checkpoint session instead of executed.
	Resumed bool `json:"resumed,omitempty"`
	// Interrupted is true when cancellation or the run deadline cut
	// the target short. Interrupted targets are never marked complete
	// in the checkpoint session, so a resumed run revisits them.
	Interrupted bool `json:"-"`
	// Elapsed is the wall time spent executing the target's stages.
	Elapsed time.Duration `json:"-"`
}

// NewOutcome assembles an outcome and computes the aggregate status.
func NewOutcome(target plan.Target, results []CheckResult, issues []string) TargetOutcome {
	return TargetOutcome{
		TargetName: target.TargetName(),
		Kind:       target.TargetKind(),
		Status:     Aggregate(results),
		Results:    results,
		Issues:     issues,
	}
}

// Result returns the result for a named stage, if present.
func (o *TargetOutcome) Result(name Name) (CheckResult, bool) {
	for _, r := range o.Results {
		if r.Stage == name {
			return r, true
		}
	}
	return CheckResult{}, false
}
