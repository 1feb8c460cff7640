package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/berth-dev/focus/internal/core"
	"github.com/berth-dev/focus/internal/stats"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/timer"
)

const (
	defaultWidth  = 84
	maxTaskRows   = 6
	progressWidth = 30
)

var quadrantTitles = map[store.Quadrant]string{
	store.UrgentImportant:    "Do first · urgent & important",
	store.ImportantNotUrgent: "Schedule · important",
	store.UrgentNotImportant: "Delegate · urgent",
	store.Neither:            "Drop · neither",
}

// Model is the dashboard: the session timer, the open tasks of the
// priority matrix and today's completed count.
type Model struct {
	app  *core.App
	keys KeyMap
	help help.Model

	snap      timer.Snapshot
	quadrants map[store.Quadrant][]store.Task
	today     int
	streak    stats.Streak

	focus  store.Quadrant
	cursor int

	status string
	err    error
	width  int
	height int
}

// NewModel creates the dashboard for a.
func NewModel(a *core.App) Model {
	return Model{
		app:       a,
		keys:      DefaultKeyMap,
		help:      help.New(),
		snap:      a.Engine.Snapshot(),
		quadrants: make(map[store.Quadrant][]store.Task),
		width:     defaultWidth,
	}
}

// Init loads the dashboard data.
func (m Model) Init() tea.Cmd {
	return loadData(m.app)
}

// loadData fetches open tasks and today's statistics.
func loadData(a *core.App) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		qs, err := a.Tasks.ListByQuadrant(ctx)
		if err != nil {
			return DataLoadedMsg{Err: err}
		}
		// Another process may have finished sessions since the last load.
		today, err := a.Stats.RefreshDay(ctx, store.Today())
		if err != nil {
			return DataLoadedMsg{Err: err}
		}
		streak, err := a.Stats.Streak(ctx)
		if err != nil {
			return DataLoadedMsg{Err: err}
		}
		return DataLoadedMsg{Quadrants: qs, Today: today, Streak: streak}
	}
}

// engineCmd runs an engine or registry command off the update loop.
func engineCmd(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn(context.Background())}
	}
}

// Update handles messages and updates the dashboard state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case DataLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.quadrants = msg.Quadrants
		m.today = msg.Today
		m.streak = msg.Streak
		m.clampCursor()
		return m, nil

	case EngineEventMsg:
		m.snap = m.app.Engine.Snapshot()
		return m.handleEngineEvent(msg.Event)

	case ActionDoneMsg:
		m.snap = m.app.Engine.Snapshot()
		if msg.Err != nil {
			m.err = fmt.Errorf("%s: %w", msg.Action, msg.Err)
			return m, nil
		}
		m.err = nil
		m.status = msg.Action
		return m, loadData(m.app)

	case ConfigReloadedMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("config: %w", msg.Err)
			return m, nil
		}
		m.snap = m.app.Engine.Snapshot()
		m.err = nil
		m.status = fmt.Sprintf("config reloaded · sessions last %s", msg.Config.SessionDuration())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleEngineEvent(ev timer.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case timer.EventResolved:
		if ev.DayCount >= 0 {
			m.today = ev.DayCount
		}
		m.status = "session " + strings.ReplaceAll(string(ev.Record.Status), "_", " ")
		m.err = ev.Err
		return m, loadData(m.app)
	case timer.EventPersistFailed:
		m.err = ev.Err
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.app.Engine
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.quadrants[m.focus])-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Tab):
		m.focus = (m.focus + 1) % store.Quadrant(len(store.Quadrants))
		m.cursor = 0

	case key.Matches(msg, m.keys.Start):
		var taskID *int64
		if t := m.selected(); t != nil {
			id := t.ID
			taskID = &id
		}
		return m, engineCmd("session started", func(ctx context.Context) error {
			return e.Start(ctx, taskID, 0)
		})

	case key.Matches(msg, m.keys.Pause):
		if m.snap.State == timer.Running {
			return m, engineCmd("paused", func(context.Context) error { return e.Pause() })
		}
		return m, engineCmd("resumed", func(context.Context) error { return e.Resume() })

	case key.Matches(msg, m.keys.Stop):
		return m, engineCmd("abandoned", e.Stop)

	case key.Matches(msg, m.keys.ForceComplete):
		return m, engineCmd("force completed", e.ForceComplete)

	case key.Matches(msg, m.keys.Done):
		t := m.selected()
		if t == nil {
			return m, nil
		}
		id, desc := t.ID, t.Description
		return m, engineCmd(fmt.Sprintf("done: %s", desc), func(ctx context.Context) error {
			_, err := m.app.Tasks.MarkComplete(ctx, id)
			return err
		})

	case key.Matches(msg, m.keys.Refresh):
		m.snap = e.Snapshot()
		return m, loadData(m.app)
	}
	return m, nil
}

func (m Model) selected() *store.Task {
	ts := m.quadrants[m.focus]
	if m.cursor < 0 || m.cursor >= len(ts) {
		return nil
	}
	return &ts[m.cursor]
}

func (m *Model) clampCursor() {
	n := len(m.quadrants[m.focus])
	m.cursor = min(m.cursor, n-1)
	m.cursor = max(m.cursor, 0)
}

// taskName resolves id against the loaded tasks.
func (m Model) taskName(id int64) string {
	for _, ts := range m.quadrants {
		for _, t := range ts {
			if t.ID == id {
				return t.Description
			}
		}
	}
	return fmt.Sprintf("task #%d", id)
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	header := TitleStyle.Render("focus")
	counts := DimStyle.Render(fmt.Sprintf("today %d · streak %d (best %d)", m.today, m.streak.Current, m.streak.Longest))
	gap := max(1, m.width-lipgloss.Width(header)-lipgloss.Width(counts))
	b.WriteString(header + strings.Repeat(" ", gap) + counts + "\n")

	b.WriteString(m.renderTimer() + "\n")
	b.WriteString(m.renderMatrix() + "\n")

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render("✗ "+m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(SuccessStyle.Render("✓ "+m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTimer() string {
	s := m.snap
	state := stateStyle(s.State).Render(strings.ToUpper(s.State.String()))

	var lines []string
	lines = append(lines, fmt.Sprintf("%s%s%s", state, ClockStyle.Render(s.Clock()), renderBar(s.Progress())))

	switch {
	case s.TaskID != nil:
		lines = append(lines, DimStyle.Render("on: ")+m.taskName(*s.TaskID))
	case s.State == timer.Ready:
		lines = append(lines, DimStyle.Render(fmt.Sprintf("next session %s · select a task and press enter", formatMinutes(s.Duration))))
	default:
		lines = append(lines, DimStyle.Render("untethered session"))
	}
	if s.Pending != nil {
		lines = append(lines, WarningStyle.Render("unsaved session record; it is retried before the next start"))
	}
	return BoxStyle.Width(max(m.width-4, 20)).Render(strings.Join(lines, "\n"))
}

func renderBar(pct float64) string {
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * progressWidth)
	return ProgressFullStyle.Render(strings.Repeat("█", filled)) +
		ProgressEmptyStyle.Render(strings.Repeat("░", progressWidth-filled)) +
		fmt.Sprintf(" %3.0f%%", pct)
}

func (m Model) renderMatrix() string {
	width := max((m.width-6)/2, 24)
	var boxes [4]string
	for i, q := range store.Quadrants {
		boxes[i] = m.renderQuadrant(q, width)
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top, boxes[0], boxes[1])
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, boxes[2], boxes[3])
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (m Model) renderQuadrant(q store.Quadrant, width int) string {
	focused := q == m.focus
	ts := m.quadrants[q]

	var b strings.Builder
	title := fmt.Sprintf("%s (%d)", quadrantTitles[q], len(ts))
	if focused {
		b.WriteString(SelectedStyle.Render(title))
	} else {
		b.WriteString(TitleStyle.Render(title))
	}
	if len(ts) == 0 {
		b.WriteString("\n" + DimStyle.Render("  nothing here"))
	}

	start := 0
	if focused && m.cursor >= maxTaskRows {
		start = m.cursor - maxTaskRows + 1
	}
	end := min(start+maxTaskRows, len(ts))
	for i := start; i < end; i++ {
		t := ts[i]
		line := fmt.Sprintf("%s %s", truncate(t.Description, width-12), DimStyle.Render(fmt.Sprintf("%d/%d", t.ActualSessions, t.Estimate)))
		if focused && i == m.cursor {
			b.WriteString("\n" + SelectedStyle.Render("▸ ") + line)
		} else {
			b.WriteString("\n  " + line)
		}
	}
	if more := len(ts) - end; more > 0 {
		b.WriteString("\n" + DimStyle.Render(fmt.Sprintf("  +%d more", more)))
	}
	return quadrantBox(q, focused, width).Render(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatMinutes(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return d.String()
}
