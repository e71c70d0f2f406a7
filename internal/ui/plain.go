package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out: cfg.Output,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// TargetDone implements Renderer. Each target gets one line; failed and
// warned stages get detail lines so pipe consumers see the reasons.
func (r *PlainRenderer) TargetDone(event TargetEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := event.Outcome
	suffix := ""
	if out.Resumed {
		suffix = " (resumed)"
	}
	_, _ = fmt.Fprintf(r.out, "[%d/%d] %-4s %s%s\n",
		event.Index, event.Total, statusTag(out.Status), out.TargetName, suffix)

	for _, res := range out.Results {
		if res.Status != stage.StatusFailed && res.Status != stage.StatusWarning {
			continue
		}
		_, _ = fmt.Fprintf(r.out, "        %-4s %s: %s\n",
			statusTag(res.Status), res.Stage, res.Message)
	}
	for _, issue := range out.Issues {
		_, _ = fmt.Fprintf(r.out, "        NOTE %s\n", issue)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats RunStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d targets in %s",
		stats.Total, stats.Duration.Round(100*time.Millisecond))
	if stats.Resumed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d restored from checkpoint)", stats.Resumed)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Ready:    %d\n", stats.Ready)
	_, _ = fmt.Fprintf(r.out, "  Warnings: %d\n", stats.Warnings)
	_, _ = fmt.Fprintf(r.out, "  Failed:   %d\n", stats.Failed)
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, "  Skipped:  %d\n", stats.Skipped)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// statusTag maps a status to its fixed-width plain text tag.
func statusTag(status stage.Status) string {
	switch status {
	case stage.StatusOK:
		return "OK"
	case stage.StatusWarning:
		return "WARN"
	case stage.StatusFailed:
		return "FAIL"
	case stage.StatusSkipped:
		return "SKIP"
	default:
		return "????"
	}
}

// Ensure PlainRenderer implements Renderer
var _ Renderer = (*PlainRenderer)(nil)
