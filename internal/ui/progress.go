package ui

import (
	"sync"
	"time"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// ProgressTracker manages run progress state.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	done       int
	total      int
	ready      int
	warnings   int
	failed     int
	skipped    int
	resumed    int
	lastTarget string
	lastStatus stage.Status
	startTime  time.Time

	// ETA smoothing to prevent wild fluctuations between slow and
	// fast targets
	lastETA time.Duration
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Done       int
	Total      int
	Ready      int
	Warnings   int
	Failed     int
	Skipped    int
	Resumed    int
	Progress   float64
	ETA        time.Duration
	LastTarget string
	LastStatus stage.Status
	Elapsed    time.Duration
}

// NewProgressTracker creates a tracker for a run of total targets.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// SetTotal sets the expected target count once the run scope is known.
func (p *ProgressTracker) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// TargetDone records one finished target.
func (p *ProgressTracker) TargetDone(outcome stage.TargetOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.lastTarget = outcome.TargetName
	p.lastStatus = outcome.Status
	if outcome.Resumed {
		p.resumed++
	}

	switch outcome.Status {
	case stage.StatusOK:
		p.ready++
	case stage.StatusWarning:
		p.warnings++
	case stage.StatusFailed:
		p.failed++
	case stage.StatusSkipped:
		p.skipped++
	}
}

// Stats returns current statistics snapshot.
// Uses write lock because calculateETA modifies lastETA for smoothing.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.done) / float64(p.total)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return ProgressStats{
		Done:       p.done,
		Total:      p.total,
		Ready:      p.ready,
		Warnings:   p.warnings,
		Failed:     p.failed,
		Skipped:    p.skipped,
		Resumed:    p.resumed,
		Progress:   progress,
		ETA:        p.calculateETA(),
		LastTarget: p.lastTarget,
		LastStatus: p.lastStatus,
		Elapsed:    time.Since(p.startTime),
	}
}

// etaSmoothingFactor controls how much weight is given to new ETA
// values. 0.3 means 30% new value + 70% previous value.
const etaSmoothingFactor = 0.3

// calculateETA estimates remaining time with exponential smoothing
// (must be called with lock held). Smoothing keeps the estimate stable
// when per-target durations vary.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.done == 0 || p.total == 0 {
		return 0
	}

	elapsed := time.Since(p.startTime)
	progress := float64(p.done) / float64(p.total)

	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	totalEstimate := time.Duration(float64(elapsed) / progress)
	rawRemaining := totalEstimate - elapsed

	if rawRemaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed

	return smoothed
}
