package cli

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/tilepaper/pkg/control"
	"github.com/matzehuels/tilepaper/pkg/engine"
	"github.com/matzehuels/tilepaper/pkg/observability"
)

const (
	dashboardEvents  = 10
	dashboardRefresh = time.Second
)

var (
	dashKeyStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	dashLabelStyle = lipgloss.NewStyle().Foreground(colorGray)
)

// =============================================================================
// Messages
// =============================================================================

type statusMsg struct {
	status engine.Status
	err    error
}

type eventMsg string

type actionMsg struct {
	what string
	err  error
}

type tickMsg time.Time

// =============================================================================
// DashboardModel - live engine view
// =============================================================================

// DashboardModel is the bubbletea model for the run --tui dashboard. It
// polls engine status and shows events pushed through observability hooks.
type DashboardModel struct {
	ctx    context.Context
	engine control.Engine
	events <-chan string

	Status    engine.Status
	StatusErr error
	Log       []string
	Busy      string
	Width     int
}

// NewDashboardModel creates a dashboard for e that reads events from events.
func NewDashboardModel(ctx context.Context, e control.Engine, events <-chan string) DashboardModel {
	return DashboardModel{ctx: ctx, engine: e, events: events}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.wait(), tick())
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.Busy != "" {
				return m, nil
			}
			m.Busy = "refreshing"
			return m, m.refresh()
		case "c":
			if m.Busy != "" {
				return m, nil
			}
			m.Busy = "reconfiguring"
			return m, m.reconfigure()
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
	case statusMsg:
		m.Status, m.StatusErr = msg.status, msg.err
	case eventMsg:
		m.Log = appendEvent(m.Log, string(msg))
		return m, m.wait()
	case actionMsg:
		m.Busy = ""
		if msg.err != nil {
			m.Log = appendEvent(m.Log, fmt.Sprintf("%s failed: %v", msg.what, msg.err))
		}
		return m, m.fetch()
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	}
	return m, nil
}

func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Tilepaper"))
	b.WriteString("  ")
	b.WriteString(m.summary())
	b.WriteString("\n\n")

	if m.StatusErr != nil {
		b.WriteString(StyleError.Render("status: " + m.StatusErr.Error()))
		b.WriteString("\n\n")
	}

	if len(m.Status.Canvases) > 0 {
		rows := make([][]string, 0, len(m.Status.Canvases))
		for _, cs := range m.Status.Canvases {
			name := filepath.Base(cs.File)
			if cs.Primary {
				name += " " + iconPrimary
			}
			rows = append(rows, []string{
				name,
				fmt.Sprintf("%dx%d", cs.Width, cs.Height),
				fmt.Sprintf("%dx%d", cs.Rows, cs.Cols),
				fmt.Sprintf("%d", cs.Base),
				orDash(cs.Device),
				fmt.Sprintf("%d/%d", filled(cs.Displayed), len(cs.Displayed)),
			})
		}
		b.WriteString(renderTable([]string{"Canvas", "Size", "Grid", "Tile", "Device", "Filled"}, rows))
		b.WriteString("\n")
	}

	if len(m.Status.Monitors) > 0 {
		b.WriteString(renderTable(monitorHeaders, monitorRows(m.Status.Monitors)))
		b.WriteString("\n")
	}

	cs := m.Status.Cache
	b.WriteString(dashLabelStyle.Render("cache  "))
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d items · %s · %d hits · %d misses · %d evicted · %d unavailable",
		cs.Items, formatBytes(cs.Bytes), cs.Hits, cs.Misses, cs.Evictions, cs.Unavailable)))
	b.WriteString("\n")

	if last := m.Status.LastCycle; last != nil {
		b.WriteString(dashLabelStyle.Render("last   "))
		b.WriteString(StyleDim.Render(describeCycle(*last)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, line := range m.Log {
		b.WriteString(StyleDim.Render("  " + line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dashKeyStyle.Render("r") + StyleDim.Render(" refresh  "))
	b.WriteString(dashKeyStyle.Render("c") + StyleDim.Render(" reconfigure  "))
	b.WriteString(dashKeyStyle.Render("q") + StyleDim.Render(" quit"))
	if m.Busy != "" {
		b.WriteString("  " + StyleHighlight.Render(m.Busy+"..."))
	}
	return b.String()
}

func (m DashboardModel) summary() string {
	st := m.Status
	state := st.State
	if state == "" {
		state = "starting"
	}
	var parts []string
	if st.PerMonitor {
		parts = append(parts, "per monitor")
	}
	parts = append(parts, fmt.Sprintf("%d images", st.Images), fmt.Sprintf("%d cycles", st.Cycles))
	return stateStyle(state).Render(state) + StyleDim.Render(" · "+strings.Join(parts, " · "))
}

func (m DashboardModel) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
		defer cancel()
		st, err := m.engine.Status(ctx)
		return statusMsg{status: st, err: err}
	}
}

// wait blocks for the next hook event.
func (m DashboardModel) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg(ev)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m DashboardModel) refresh() tea.Cmd {
	return func() tea.Msg {
		_, err := m.engine.Refresh(m.ctx)
		return actionMsg{what: "refresh", err: err}
	}
}

func (m DashboardModel) reconfigure() tea.Cmd {
	return func() tea.Msg {
		select {
		case err := <-m.engine.Reconfigure("dashboard request"):
			return actionMsg{what: "reconfigure", err: err}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// =============================================================================
// Program wiring
// =============================================================================

// captureLogs routes observability events and log lines at warn level and
// above into events. Loggers derived with With after this call inherit the
// redirection. The returned func undoes it.
func (c *CLI) captureLogs(events chan<- string) func() {
	h := dashboardHooks{events: events, now: time.Now}
	observability.SetEngineHooks(h)
	observability.SetCacheHooks(h)
	observability.SetApplyHooks(h)

	level := c.Logger.GetLevel()
	c.Logger.SetOutput(lineWriter{events: events})
	if level < log.WarnLevel {
		c.Logger.SetLevel(log.WarnLevel)
	}
	return func() {
		observability.Reset()
		c.Logger.SetOutput(c.logOut)
		c.Logger.SetLevel(level)
	}
}

// runDashboard blocks until the user quits or ctx ends.
func runDashboard(ctx context.Context, e control.Engine, events <-chan string) error {
	p := tea.NewProgram(NewDashboardModel(ctx, e, events), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// dashboardHooks turns observability events into dashboard lines. Events
// are dropped when the dashboard falls behind.
type dashboardHooks struct {
	events chan<- string
	now    func() time.Time
}

func (h dashboardHooks) emit(format string, args ...any) {
	line := h.now().Format("15:04:05") + "  " + fmt.Sprintf(format, args...)
	select {
	case h.events <- line:
	default:
	}
}

func (h dashboardHooks) OnCycleStart(context.Context, string, int) {}

func (h dashboardHooks) OnCycleComplete(_ context.Context, id string, updated int, d time.Duration, err error) {
	if err != nil {
		h.emit("cycle %s failed: %v", shortID(id), err)
		return
	}
	h.emit("cycle %s updated %d tiles in %s", shortID(id), updated, d.Round(time.Millisecond))
}

func (h dashboardHooks) OnCycleSkipped(_ context.Context, reason string) {
	h.emit("cycle skipped: %s", reason)
}

func (h dashboardHooks) OnReconfigure(_ context.Context, reason string, canvases int, err error) {
	if err != nil {
		h.emit("reconfigure (%s) failed: %v", reason, err)
		return
	}
	h.emit("reconfigured (%s): %d canvases", reason, canvases)
}

func (h dashboardHooks) OnCacheHit(context.Context, string)  {}
func (h dashboardHooks) OnCacheMiss(context.Context, string) {}

func (h dashboardHooks) OnCacheEvict(_ context.Context, policy string, size int) {
	h.emit("evicted %s (%s)", formatBytes(int64(size)), policy)
}

func (h dashboardHooks) OnApply(_ context.Context, target, path string, _ time.Duration, err error) {
	if err != nil {
		h.emit("apply %s failed: %v", target, err)
	}
}

// lineWriter forwards log lines to the dashboard.
type lineWriter struct {
	events chan<- string
}

func (w lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		select {
		case w.events <- string(line):
		default:
		}
	}
	return len(p), nil
}

// =============================================================================
// Helpers
// =============================================================================

func appendEvent(lines []string, ev string) []string {
	lines = append(lines, ev)
	if len(lines) > dashboardEvents {
		lines = lines[len(lines)-dashboardEvents:]
	}
	return lines
}

func describeCycle(r engine.CycleResult) string {
	id := shortID(r.ID)
	switch {
	case r.Error != "":
		return fmt.Sprintf("%s failed: %s", id, r.Error)
	case r.Skipped != "":
		return fmt.Sprintf("%s skipped: %s", id, r.Skipped)
	default:
		return fmt.Sprintf("%s updated %d of %d due in %s", id, r.Updated, r.Candidates, r.Duration.Round(time.Millisecond))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func filled(paths []string) int {
	n := 0
	for _, p := range paths {
		if p != "" {
			n++
		}
	}
	return n
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
