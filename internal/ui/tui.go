package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// recentTargets is how many finished targets the live view lists.
const recentTargets = 8

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *runModel
	tracker *ProgressTracker
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if TUI initialization fails (e.g., non-TTY output).
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker(0)
	model := newRunModel(tracker, cfg.PlanPath)

	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	// Alternate screen buffer for proper clearing between renders
	opts = append(opts, tea.WithAltScreen())

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// TargetDone implements Renderer.
func (r *TUIRenderer) TargetDone(event TargetEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetTotal(event.Total)
	r.tracker.TargetDone(event.Outcome)

	if r.program != nil {
		r.program.Send(targetMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats RunStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	if r.program != nil {
		r.program.Quit()

		// Wait with timeout to avoid hanging on unresponsive TUI
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}

	return nil
}

// Message types for bubbletea
type targetMsg TargetEvent
type completeMsg RunStats
type tickMsg time.Time

// runModel is the bubbletea model for validation run progress.
type runModel struct {
	tracker     *ProgressTracker
	width       int
	height      int
	quitting    bool
	complete    bool
	stats       RunStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	planPath    string
	recent      []TargetEvent
}

// newRunModel creates a new run model.
func newRunModel(tracker *ProgressTracker, planPath string) *runModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &runModel{
		tracker:     tracker,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
		height:      24,
		planPath:    planPath,
	}
}

// Init implements tea.Model.
func (m *runModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
	)
}

// tickCmd returns a command that ticks every 100ms.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = msg.Width - 20
		if m.progressBar.Width < 20 {
			m.progressBar.Width = 20
		}

	case targetMsg:
		m.recent = append(m.recent, TargetEvent(msg))
		if len(m.recent) > recentTargets {
			m.recent = m.recent[len(m.recent)-recentTargets:]
		}
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = RunStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *runModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}

	if m.complete {
		return m.renderComplete()
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderProgress())
	sections = append(sections, m.renderCounts())
	sections = append(sections, m.renderDivider(contentWidth))
	sections = append(sections, m.renderRecent(contentWidth))

	content := strings.Join(sections, "\n")

	title := "Azure Migrate Validation"
	if m.planPath != "" {
		title = fmt.Sprintf("Azure Migrate Validation • %s", m.planPath)
	}
	panel := m.wrapInPanel(title, content, contentWidth)

	return panel + "\n" + m.renderStatusBar(contentWidth)
}

// renderProgress renders the progress bar with percentage and ETA.
func (m *runModel) renderProgress() string {
	stats := m.tracker.Stats()

	if stats.Total == 0 {
		return fmt.Sprintf("%s %s",
			m.spinner.View(),
			m.styles.Dim.Render("Preparing..."))
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pctStr := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))

	countLine := m.styles.Label.Render(
		fmt.Sprintf("%d / %d targets", stats.Done, stats.Total))
	if e := stats.ETA; e > 0 {
		countLine += m.styles.Dim.Render("  •  ") +
			m.styles.Label.Render(fmt.Sprintf("ETA: %s", formatDuration(e)))
	}

	return fmt.Sprintf("%s  %s\n%s", bar, pctStr, countLine)
}

// renderCounts renders the live status tally.
func (m *runModel) renderCounts() string {
	stats := m.tracker.Stats()

	parts := []string{
		m.styles.Success.Render(fmt.Sprintf("✓ %d ready", stats.Ready)),
		m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.Warnings)),
		m.styles.Error.Render(fmt.Sprintf("✗ %d failed", stats.Failed)),
	}
	if stats.Skipped > 0 {
		parts = append(parts, m.styles.Dim.Render(fmt.Sprintf("· %d skipped", stats.Skipped)))
	}
	if stats.Resumed > 0 {
		parts = append(parts, m.styles.Label.Render(fmt.Sprintf("↻ %d resumed", stats.Resumed)))
	}

	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

// renderRecent renders the most recently finished targets.
func (m *runModel) renderRecent(width int) string {
	if len(m.recent) == 0 {
		return m.styles.Dim.Render(m.spinner.View() + " waiting for first target...")
	}

	var lines []string
	for _, ev := range m.recent {
		icon, style := m.statusGlyph(ev.Outcome.Status)
		name := truncateName(ev.Outcome.TargetName, width-18)
		line := fmt.Sprintf("%s %-7s %s", style.Render(icon), ev.Outcome.Kind, name)
		if ev.Outcome.Resumed {
			line += m.styles.Dim.Render("  (resumed)")
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// statusGlyph maps a status to its glyph and style.
func (m *runModel) statusGlyph(status stage.Status) (string, lipgloss.Style) {
	switch status {
	case stage.StatusOK:
		return "✓", m.styles.Success
	case stage.StatusWarning:
		return "⚠", m.styles.Warning
	case stage.StatusFailed:
		return "✗", m.styles.Error
	case stage.StatusSkipped:
		return "·", m.styles.Dim
	default:
		return "?", m.styles.Dim
	}
}

// renderDivider renders a horizontal divider line.
func (m *runModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

// wrapInPanel wraps content in a box border with title.
func (m *runModel) wrapInPanel(title, content string, width int) string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	titleStyled := m.styles.Header.Render(title)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyled,
		panel.Render(content),
	)
}

// renderStatusBar renders the bottom status bar.
func (m *runModel) renderStatusBar(width int) string {
	stats := m.tracker.Stats()
	var parts []string

	if stats.Warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.Warnings)))
	}
	if stats.Failed > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", stats.Failed)))
	}

	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}

	separator := m.styles.Dim.Render("  │  ")
	status := strings.Join(parts, separator)
	hint := m.styles.Dim.Render("  │  q to quit")

	return status + hint
}

// renderComplete renders the completion summary panel.
func (m *runModel) renderComplete() string {
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var lines []string

	header := "✓ Validation Complete"
	headerStyle := m.styles.Success
	if m.stats.Failed > 0 {
		header = "✗ Validation Failed"
		headerStyle = m.styles.Error
	}
	lines = append(lines, headerStyle.Render(header))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("%s  %s",
		m.styles.Label.Render("Targets: "),
		m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Total))))
	lines = append(lines, fmt.Sprintf("%s  %s",
		m.styles.Label.Render("Duration:"),
		m.styles.Active.Render(formatDuration(m.stats.Duration))))
	if m.stats.Resumed > 0 {
		lines = append(lines, fmt.Sprintf("%s  %s",
			m.styles.Label.Render("Resumed: "),
			m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Resumed))))
	}

	lines = append(lines, "")
	lines = append(lines, m.styles.Success.Render(fmt.Sprintf("✓ %d ready", m.stats.Ready)))
	if m.stats.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d with warnings", m.stats.Warnings)))
	}
	if m.stats.Failed > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", m.stats.Failed)))
	}
	if m.stats.Skipped > 0 {
		lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("· %d skipped", m.stats.Skipped)))
	}

	borderColor := ColorLime
	if m.stats.Failed > 0 {
		borderColor = ColorRed
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(borderColor)).
		Padding(1, 2).
		Width(contentWidth)

	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, mins)
}

// truncateName shortens a target name to fit within maxLen.
func truncateName(name string, maxLen int) string {
	if maxLen < 4 || len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}

// Ensure TUIRenderer implements Renderer
var _ Renderer = (*TUIRenderer)(nil)
