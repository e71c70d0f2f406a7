// Package report rolls per-target validation outcomes into batch
// summaries for CLI rendering, JSON output, and the history store.
package report

import (
	"sort"
	"time"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// Overall batch statuses, ordered by severity.
const (
	// OverallFailed means at least one target failed validation.
	OverallFailed = "failed"
	// OverallReadyWithWarnings means no failures but at least one
	// target carries warnings.
	OverallReadyWithWarnings = "ready_with_warnings"
	// OverallReady means every validated target passed cleanly.
	OverallReady = "ready"
	// OverallSkipped means nothing was validated.
	OverallSkipped = "skipped"
)

// StageStat counts outcomes for one stage across the whole batch.
type StageStat struct {
	Stage    string `json:"stage"`
	OK       int    `json:"ok"`
	Warnings int    `json:"warnings"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
}

// BatchSummary is the rolled-up result of one validation run.
type BatchSummary struct {
	SessionID         string      `json:"session_id,omitempty"`
	OperationType     string      `json:"operation_type"`
	StartedAt         time.Time   `json:"started_at"`
	DurationSeconds   float64     `json:"duration_seconds"`
	Total             int         `json:"total"`
	Ready             int         `json:"ready"`
	ReadyWithWarnings int         `json:"ready_with_warnings"`
	Failed            int         `json:"failed"`
	Skipped           int         `json:"skipped"`
	Resumed           int         `json:"resumed"`
	OverallStatus     string      `json:"overall_status"`
	StageBreakdown    []StageStat `json:"stage_breakdown,omitempty"`
}

// Report is the full machine-readable output of a run: the summary plus
// every target outcome. Field names are stable; downstream pipelines
// consume this shape.
type Report struct {
	Summary BatchSummary          `json:"summary"`
	Targets []stage.TargetOutcome `json:"targets"`
}

// Summarize folds target outcomes into a BatchSummary.
func Summarize(outcomes []stage.TargetOutcome, duration time.Duration) BatchSummary {
	s := BatchSummary{
		Total:           len(outcomes),
		DurationSeconds: duration.Seconds(),
	}

	stats := make(map[stage.Name]*StageStat)
	var order []stage.Name
	for _, out := range outcomes {
		switch out.Status {
		case stage.StatusOK:
			s.Ready++
		case stage.StatusWarning:
			s.ReadyWithWarnings++
		case stage.StatusFailed:
			s.Failed++
		case stage.StatusSkipped:
			s.Skipped++
		}
		if out.Resumed {
			s.Resumed++
		}

		for _, res := range out.Results {
			st, ok := stats[res.Stage]
			if !ok {
				st = &StageStat{Stage: string(res.Stage)}
				stats[res.Stage] = st
				order = append(order, res.Stage)
			}
			switch res.Status {
			case stage.StatusOK:
				st.OK++
			case stage.StatusWarning:
				st.Warnings++
			case stage.StatusFailed:
				st.Failed++
			case stage.StatusSkipped:
				st.Skipped++
			}
		}
	}

	for _, name := range stageOrder(order) {
		s.StageBreakdown = append(s.StageBreakdown, *stats[name])
	}
	s.OverallStatus = overall(s)
	return s
}

// overall derives the batch status from the counters.
func overall(s BatchSummary) string {
	switch {
	case s.Failed > 0:
		return OverallFailed
	case s.ReadyWithWarnings > 0:
		return OverallReadyWithWarnings
	case s.Ready > 0:
		return OverallReady
	default:
		return OverallSkipped
	}
}

// ExitCode maps the batch result to a process exit code: any failed
// target makes the run exit non-zero.
func (s BatchSummary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// stageOrder sorts seen stages into canonical sequence order, project
// stages before machine stages, unknown names last in first-seen order.
func stageOrder(seen []stage.Name) []stage.Name {
	rank := make(map[stage.Name]int)
	for _, n := range stage.ProjectSequence() {
		rank[n] = len(rank)
	}
	for _, n := range stage.MachineSequence() {
		rank[n] = len(rank)
	}

	ordered := make([]stage.Name, len(seen))
	copy(ordered, seen)
	sort.SliceStable(ordered, func(a, b int) bool {
		ra, ok := rank[ordered[a]]
		if !ok {
			ra = len(rank)
		}
		rb, ok := rank[ordered[b]]
		if !ok {
			rb = len(rank)
		}
		return ra < rb
	})
	return ordered
}
