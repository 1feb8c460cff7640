package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/berth-dev/focus/internal/config"
	"github.com/berth-dev/focus/internal/core"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/testutil"
	"github.com/berth-dev/focus/internal/timer"
)

func newTestApp(t *testing.T) *core.App {
	t.Helper()
	testutil.ClearEnv(t)
	a, err := core.Open(testutil.TempDataDir(t, nil), core.Options{Warnings: io.Discard})
	if err != nil {
		t.Fatalf("core.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send applies msg and runs any resulting command once, feeding its message
// back into the model.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	out := cmd()
	if out == nil {
		return m
	}
	next, cmd = m.Update(out)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func loaded(t *testing.T, a *core.App) Model {
	t.Helper()
	m := NewModel(a)
	next, _ := m.Update(m.Init()())
	return next.(Model)
}

func TestModelRendersMatrix(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	if _, err := a.Tasks.Create(ctx, "ship release", store.UrgentImportant, 3); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := a.Tasks.Create(ctx, "read paper", store.ImportantNotUrgent, 1); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	m := loaded(t, a)
	view := m.View()
	for _, want := range []string{"ship release", "read paper", "0/3", "READY", "30:00", "today 0"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if m.selected() == nil || m.selected().Description != "ship release" {
		t.Errorf("selected = %+v", m.selected())
	}
}

func TestModelSessionControls(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	task, _ := a.Tasks.Create(ctx, "ship release", store.UrgentImportant, 3)
	m := loaded(t, a)

	m = send(t, m, keyPress("enter"))
	if m.err != nil {
		t.Fatalf("start err = %v", m.err)
	}
	snap := a.Engine.Snapshot()
	if snap.State != timer.Running || snap.TaskID == nil || *snap.TaskID != task.ID {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !strings.Contains(m.View(), "on: ship release") {
		t.Error("view should name the running task")
	}

	m = send(t, m, keyPress(" "))
	if got := a.Engine.Snapshot().State; got != timer.Paused {
		t.Errorf("state after space = %v, want Paused", got)
	}
	m = send(t, m, keyPress("p"))
	if got := a.Engine.Snapshot().State; got != timer.Running {
		t.Errorf("state after p = %v, want Running", got)
	}

	m = send(t, m, keyPress("enter"))
	if m.err == nil {
		t.Error("starting while running should surface an error")
	}

	m = send(t, m, keyPress("f"))
	if got := a.Engine.Snapshot().State; got != timer.Ready {
		t.Errorf("state after force complete = %v, want Ready", got)
	}
	recs, _ := a.Store.ListSessionRecords(ctx, store.SessionFilter{})
	if len(recs) != 1 || recs[0].Status != store.StatusForceCompleted {
		t.Errorf("records = %+v", recs)
	}
	if m.status != "force completed" {
		t.Errorf("status = %q", m.status)
	}
}

func TestModelNavigationAndDone(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, _ = a.Tasks.Create(ctx, "first", store.ImportantNotUrgent, 1)
	second, _ := a.Tasks.Create(ctx, "second", store.ImportantNotUrgent, 1)
	m := loaded(t, a)

	if m.selected() != nil {
		t.Fatalf("empty focused quadrant should select nothing, got %+v", m.selected())
	}
	m = send(t, m, keyPress("tab"))
	if m.focus != store.ImportantNotUrgent {
		t.Fatalf("focus = %v", m.focus)
	}
	// Newest first: "second" is on top.
	if m.selected().ID != second.ID {
		t.Errorf("selected = %+v, want second", m.selected())
	}
	m = send(t, m, keyPress("down"))
	m = send(t, m, keyPress("down"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	m = send(t, m, keyPress("d"))
	if len(m.quadrants[store.ImportantNotUrgent]) != 1 {
		t.Errorf("open tasks = %+v", m.quadrants[store.ImportantNotUrgent])
	}
	if m.cursor != 0 {
		t.Errorf("cursor after done = %d, want 0", m.cursor)
	}

	for range store.Quadrants {
		m = send(t, m, keyPress("tab"))
	}
	if m.focus != store.ImportantNotUrgent {
		t.Errorf("tab should wrap, focus = %v", m.focus)
	}
}

func TestModelEngineEvents(t *testing.T) {
	a := newTestApp(t)
	m := loaded(t, a)

	rec := &store.SessionRecord{Status: store.StatusCompleted}
	next, cmd := m.Update(EngineEventMsg{Event: timer.Event{Kind: timer.EventResolved, Record: rec, DayCount: 5}})
	m = next.(Model)
	if m.today != 5 || m.status != "session completed" {
		t.Errorf("today = %d status = %q", m.today, m.status)
	}
	if cmd == nil {
		t.Error("a resolved session should reload the dashboard")
	}

	next, _ = m.Update(ConfigReloadedMsg{Config: config.DefaultConfig()})
	m = next.(Model)
	if !strings.Contains(m.status, "config reloaded") {
		t.Errorf("status = %q", m.status)
	}
}

func TestReloadSeesSessionsRecordedElsewhere(t *testing.T) {
	a := newTestApp(t)
	m := loaded(t, a)
	if m.today != 0 {
		t.Fatalf("today = %d, want 0", m.today)
	}

	// Written straight to the store, as a second process would.
	rec := &store.SessionRecord{StartedAt: time.Now(), Duration: 25 * time.Minute, Status: store.StatusCompleted}
	if err := a.Store.CreateSessionRecord(context.Background(), rec); err != nil {
		t.Fatalf("CreateSessionRecord failed: %v", err)
	}

	next, _ := m.Update(loadData(a)())
	m = next.(Model)
	if m.today != 1 {
		t.Errorf("today after reload = %d, want 1", m.today)
	}
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, _ = a.Tasks.Create(ctx, "x", store.Neither, 1)

	var buf bytes.Buffer
	if err := runFallback(ctx, a, &buf); err != nil {
		t.Fatalf("runFallback failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Completed today: 0") || !strings.Contains(out, quadrantTitles[store.Neither]+": 1 open") {
		t.Errorf("output = %q", out)
	}
}
