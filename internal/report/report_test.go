package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

func outcome(name string, kind plan.Kind, results ...stage.CheckResult) stage.TargetOutcome {
	return stage.TargetOutcome{
		TargetName: name,
		Kind:       kind,
		Status:     stage.Aggregate(results),
		Results:    results,
	}
}

func TestSummarize_CountsAndOverall(t *testing.T) {
	outcomes := []stage.TargetOutcome{
		outcome("ProjA", plan.KindProject,
			stage.OK(stage.Access, "ok"),
			stage.OK(stage.Quota, "ok")),
		outcome("vm-01", plan.KindMachine,
			stage.OK(stage.Region, "ok"),
			stage.Warn(stage.VMSKU, "undersized")),
		outcome("vm-02", plan.KindMachine,
			stage.Fail(stage.Region, "region not allowed"),
			stage.Skip(stage.ResourceGroup, "previous stage failed")),
	}

	s := Summarize(outcomes, 2500*time.Millisecond)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Ready)
	assert.Equal(t, 1, s.ReadyWithWarnings)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, OverallFailed, s.OverallStatus)
	assert.InDelta(t, 2.5, s.DurationSeconds, 0.001)
	assert.Equal(t, 1, s.ExitCode())
}

func TestSummarize_OverallLadder(t *testing.T) {
	tests := []struct {
		name     string
		statuses []stage.Status
		want     string
		exitCode int
	}{
		{"all ok", []stage.Status{stage.StatusOK, stage.StatusOK}, OverallReady, 0},
		{"warning present", []stage.Status{stage.StatusOK, stage.StatusWarning}, OverallReadyWithWarnings, 0},
		{"failure wins", []stage.Status{stage.StatusWarning, stage.StatusFailed}, OverallFailed, 1},
		{"nothing ran", []stage.Status{stage.StatusSkipped}, OverallSkipped, 0},
		{"empty batch", nil, OverallSkipped, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outcomes []stage.TargetOutcome
			for i, st := range tt.statuses {
				outcomes = append(outcomes, stage.TargetOutcome{
					TargetName: string(rune('a' + i)),
					Status:     st,
				})
			}
			s := Summarize(outcomes, time.Second)
			assert.Equal(t, tt.want, s.OverallStatus)
			assert.Equal(t, tt.exitCode, s.ExitCode())
		})
	}
}

func TestSummarize_StageBreakdownInSequenceOrder(t *testing.T) {
	// Stages arrive in machine-then-project order; the breakdown must
	// still list project stages first, each in sequence position.
	outcomes := []stage.TargetOutcome{
		outcome("vm-01", plan.KindMachine,
			stage.OK(stage.Region, "ok"),
			stage.Fail(stage.VMSKU, "unknown sku")),
		outcome("ProjA", plan.KindProject,
			stage.Warn(stage.Access, "slow"),
			stage.OK(stage.Quota, "ok")),
		outcome("vm-02", plan.KindMachine,
			stage.OK(stage.Region, "ok"),
			stage.Warn(stage.VMSKU, "undersized")),
	}

	s := Summarize(outcomes, time.Second)

	require.Len(t, s.StageBreakdown, 4)
	assert.Equal(t, "access", s.StageBreakdown[0].Stage)
	assert.Equal(t, "quota", s.StageBreakdown[1].Stage)
	assert.Equal(t, "region", s.StageBreakdown[2].Stage)
	assert.Equal(t, "vm_sku", s.StageBreakdown[3].Stage)

	sku := s.StageBreakdown[3]
	assert.Equal(t, 0, sku.OK)
	assert.Equal(t, 1, sku.Warnings)
	assert.Equal(t, 1, sku.Failed)

	region := s.StageBreakdown[2]
	assert.Equal(t, 2, region.OK)
}

func TestSummarize_CountsResumedTargets(t *testing.T) {
	outcomes := []stage.TargetOutcome{
		{TargetName: "a", Status: stage.StatusOK, Resumed: true},
		{TargetName: "b", Status: stage.StatusOK},
		{TargetName: "c", Status: stage.StatusWarning, Resumed: true},
	}

	s := Summarize(outcomes, time.Second)
	assert.Equal(t, 2, s.Resumed)
}
