package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

func TestPlainRenderer_TargetDone_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: reporting a passing target
	r.TargetDone(TargetEvent{
		Index: 3,
		Total: 10,
		Outcome: stage.TargetOutcome{
			TargetName: "web01",
			Status:     stage.StatusOK,
		},
	})

	// Then: output is correctly formatted
	output := buf.String()
	assert.Contains(t, output, "[3/10]")
	assert.Contains(t, output, "OK")
	assert.Contains(t, output, "web01")
}

func TestPlainRenderer_TargetDone_FailureShowsStageDetail(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: reporting a failed target with mixed stage results
	r.TargetDone(TargetEvent{
		Index: 1,
		Total: 1,
		Outcome: stage.TargetOutcome{
			TargetName: "db01",
			Status:     stage.StatusFailed,
			Results: []stage.CheckResult{
				stage.OK(stage.Region, "region allowed"),
				stage.Fail(stage.VMSKU, `unknown sku "Standard_X99"`),
				stage.Warn(stage.Discovery, "matched after prefix strip"),
			},
		},
	})

	// Then: failed and warned stages get detail lines, passing ones do not
	output := buf.String()
	assert.Contains(t, output, "FAIL db01")
	assert.Contains(t, output, `vm_sku: unknown sku "Standard_X99"`)
	assert.Contains(t, output, "WARN discovery")
	assert.NotContains(t, output, "region allowed")
}

func TestPlainRenderer_TargetDone_ResumedTag(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.TargetDone(TargetEvent{
		Index: 2,
		Total: 5,
		Outcome: stage.TargetOutcome{
			TargetName: "proj-01",
			Status:     stage.StatusOK,
			Resumed:    true,
		},
	})

	assert.Contains(t, buf.String(), "(resumed)")
}

func TestPlainRenderer_TargetDone_IssuesAsNotes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.TargetDone(TargetEvent{
		Index: 1,
		Total: 1,
		Outcome: stage.TargetOutcome{
			TargetName: "web01",
			Status:     stage.StatusOK,
			Issues:     []string{"using fallback project based on region match: ContosoMigration"},
		},
	})

	output := buf.String()
	assert.Contains(t, output, "NOTE")
	assert.Contains(t, output, "fallback project")
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering targets and the summary
	r.TargetDone(TargetEvent{
		Index:   1,
		Total:   2,
		Outcome: stage.TargetOutcome{TargetName: "a", Status: stage.StatusOK},
	})
	r.Complete(RunStats{Total: 2, Ready: 1, Failed: 1, Duration: 3 * time.Second})

	// Then: output contains no ANSI escape codes
	output := buf.String()
	assert.NotContains(t, output, "\x1b[", "should not contain ANSI escape codes")
}

func TestPlainRenderer_Complete_Summary(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with mixed results
	r.Complete(RunStats{
		Total:    10,
		Ready:    6,
		Warnings: 2,
		Failed:   1,
		Skipped:  1,
		Resumed:  4,
		Duration: 90 * time.Second,
	})

	// Then: the summary lists every count
	output := buf.String()
	assert.Contains(t, output, "10 targets")
	assert.Contains(t, output, "Ready:    6")
	assert.Contains(t, output, "Warnings: 2")
	assert.Contains(t, output, "Failed:   1")
	assert.Contains(t, output, "Skipped:  1")
	assert.Contains(t, output, "4 restored from checkpoint")
}

func TestStatusTag_FixedWidthTags(t *testing.T) {
	assert.Equal(t, "OK", statusTag(stage.StatusOK))
	assert.Equal(t, "WARN", statusTag(stage.StatusWarning))
	assert.Equal(t, "FAIL", statusTag(stage.StatusFailed))
	assert.Equal(t, "SKIP", statusTag(stage.StatusSkipped))
}
