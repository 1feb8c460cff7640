package timer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/berth-dev/focus/internal/log"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/tasks"
)

const (
	testTick    = 5 * time.Millisecond
	testTimeout = 2 * time.Second
)

// dayCounter derives the day total straight from the records.
type dayCounter struct{ s *store.Store }

func (d dayCounter) RefreshDay(ctx context.Context, date store.Date) (int, error) {
	counts, err := d.s.CountSessionsByDate(ctx, store.SessionFilter{From: date, To: date, Status: store.StatusCompleted})
	if err != nil {
		return 0, err
	}
	return counts[date], nil
}

// flakyRecorder fails every write while fail is set.
type flakyRecorder struct {
	mu   sync.Mutex
	fail bool
	next Recorder
}

func (f *flakyRecorder) CreateSessionRecord(ctx context.Context, rec *store.SessionRecord) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.next.CreateSessionRecord(ctx, rec)
}

func (f *flakyRecorder) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

type harness struct {
	store    *store.Store
	registry *tasks.Registry
	engine   *Engine
	events   <-chan Event
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	reg := tasks.New(s)

	opts := Options{
		Recorder: s,
		Linker:   reg,
		Totals:   dayCounter{s},
		Duration: time.Second,
		Tick:     testTick,
		Warnings: io.Discard,
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	events, cancel := e.Subscribe()
	t.Cleanup(func() {
		cancel()
		_ = e.Close()
	})
	return &harness{store: s, registry: reg, engine: e, events: events}
}

// waitEvent returns the first event matching match, failing on timeout.
func waitEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func isState(s State) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventStateChanged && ev.State == s }
}

func (h *harness) records(t *testing.T) []store.SessionRecord {
	t.Helper()
	recs, err := h.store.ListSessionRecords(context.Background(), store.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessionRecords failed: %v", err)
	}
	return recs
}

func (h *harness) task(t *testing.T) *store.Task {
	t.Helper()
	task, err := h.registry.Create(context.Background(), "focus work", store.UrgentImportant, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return task
}

func TestNaturalCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	task := h.task(t)
	today := store.Today()

	before, _ := dayCounter{h.store}.RefreshDay(ctx, today)

	if err := h.engine.Start(ctx, &task.ID, 40*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	resolved := waitEvent(t, h.events, func(ev Event) bool { return ev.Kind == EventResolved })
	waitEvent(t, h.events, isState(Ready))

	if resolved.Record == nil || resolved.Record.Status != store.StatusCompleted {
		t.Fatalf("resolved record = %+v", resolved.Record)
	}
	if resolved.DayCount != before+1 {
		t.Errorf("DayCount = %d, want %d", resolved.DayCount, before+1)
	}
	if resolved.Err != nil {
		t.Errorf("resolved.Err = %v", resolved.Err)
	}

	if got := h.engine.Snapshot().State; got != Ready {
		t.Errorf("state = %v, want Ready", got)
	}
	recs := h.records(t)
	if len(recs) != 1 || recs[0].Status != store.StatusCompleted {
		t.Fatalf("records = %+v, want one completed", recs)
	}
	got, _ := h.registry.Get(ctx, task.ID)
	if got.ActualSessions != 1 {
		t.Errorf("ActualSessions = %d, want 1", got.ActualSessions)
	}
	after, _ := dayCounter{h.store}.RefreshDay(ctx, today)
	if after != before+1 {
		t.Errorf("daily count = %d, want %d", after, before+1)
	}
}

func TestEventOrder(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.engine.Start(context.Background(), nil, 30*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var kinds []string
	deadline := time.After(testTimeout)
	for done := false; !done; {
		select {
		case ev := <-h.events:
			if ev.Kind == EventTick {
				continue
			}
			kinds = append(kinds, ev.Kind.String()+":"+ev.State.String())
			done = ev.Kind == EventStateChanged && ev.State == Ready
		case <-deadline:
			t.Fatalf("timed out, got %v", kinds)
		}
	}

	want := []string{
		"state_changed:running",
		"state_changed:completed",
		"resolved:completed",
		"state_changed:ready",
	}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestStartRequiresReady(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if err := h.engine.Start(ctx, nil, time.Minute); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	snap := h.engine.Snapshot()
	if err := h.engine.Start(ctx, nil, time.Minute); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start err = %v, want ErrInvalidState", err)
	}
	after := h.engine.Snapshot()
	if after.State != Running || after.SessionID != snap.SessionID {
		t.Errorf("state changed by rejected Start: %+v", after)
	}

	if err := h.engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := h.engine.Start(ctx, nil, time.Minute); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start while paused err = %v, want ErrInvalidState", err)
	}
	if got := h.engine.Snapshot().State; got != Paused {
		t.Errorf("state = %v, want Paused", got)
	}
}

func TestCommandsRejectedWhileReady(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if err := h.engine.Pause(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Pause err = %v", err)
	}
	if err := h.engine.Resume(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Resume err = %v", err)
	}
	if err := h.engine.Stop(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Stop err = %v", err)
	}
	if err := h.engine.ForceComplete(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ForceComplete err = %v", err)
	}
	if len(h.records(t)) != 0 {
		t.Error("rejected commands wrote records")
	}
}

func TestStartValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if err := h.engine.Start(ctx, nil, -time.Second); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("negative duration err = %v, want ErrInvalidDuration", err)
	}
	if err := h.engine.Start(ctx, nil, MaxDuration+time.Second); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("oversized duration err = %v, want ErrInvalidDuration", err)
	}
	missing := int64(404)
	if err := h.engine.Start(ctx, &missing, time.Minute); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown task err = %v, want ErrNotFound", err)
	}
	if got := h.engine.Snapshot().State; got != Ready {
		t.Errorf("state = %v, want Ready", got)
	}
}

func TestPauseResumeStop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	task := h.task(t)
	before, _ := dayCounter{h.store}.RefreshDay(ctx, store.Today())

	if err := h.engine.Start(ctx, &task.ID, time.Minute); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := h.engine.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := h.engine.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := h.engine.Snapshot().State; got != Ready {
		t.Errorf("state = %v, want Ready", got)
	}
	recs := h.records(t)
	if len(recs) != 1 || recs[0].Status != store.StatusAbandoned {
		t.Fatalf("records = %+v, want one abandoned", recs)
	}
	if recs[0].TaskID == nil || *recs[0].TaskID != task.ID {
		t.Errorf("TaskID = %v, want %d", recs[0].TaskID, task.ID)
	}
	got, _ := h.registry.Get(ctx, task.ID)
	if got.ActualSessions != 0 {
		t.Errorf("ActualSessions = %d, want 0", got.ActualSessions)
	}
	after, _ := dayCounter{h.store}.RefreshDay(ctx, store.Today())
	if after != before {
		t.Errorf("daily count = %d, want %d", after, before)
	}
}

func TestForceComplete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	task := h.task(t)

	if err := h.engine.Start(ctx, &task.ID, time.Minute); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.engine.ForceComplete(ctx); err != nil {
		t.Fatalf("ForceComplete failed: %v", err)
	}

	recs := h.records(t)
	if len(recs) != 1 || recs[0].Status != store.StatusForceCompleted {
		t.Fatalf("records = %+v, want one force_completed", recs)
	}
	got, _ := h.registry.Get(ctx, task.ID)
	if got.ActualSessions != 0 {
		t.Errorf("ActualSessions = %d, want 0", got.ActualSessions)
	}
	waitEvent(t, h.events, isState(ForceCompleted))
	resolved := waitEvent(t, h.events, func(ev Event) bool { return ev.Kind == EventResolved })
	if resolved.DayCount != -1 {
		t.Errorf("DayCount = %d, want -1 for an uncounted session", resolved.DayCount)
	}
}

func TestPauseFreezesRemaining(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.engine.Start(context.Background(), nil, time.Minute); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := h.engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	frozen := h.engine.Snapshot().Remaining
	if frozen >= time.Minute {
		t.Errorf("remaining = %v, want less than the full minute", frozen)
	}

	time.Sleep(30 * time.Millisecond)
	if got := h.engine.Snapshot().Remaining; got != frozen {
		t.Errorf("remaining drifted while paused: %v -> %v", frozen, got)
	}

	if err := h.engine.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := h.engine.Snapshot().Remaining; got >= frozen {
		t.Errorf("remaining = %v after resume, want below %v", got, frozen)
	}
}

func TestPausedSessionDoesNotComplete(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.engine.Start(context.Background(), nil, 30*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if got := h.engine.Snapshot().State; got != Paused {
		t.Fatalf("state = %v, want Paused", got)
	}
	if err := h.engine.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitEvent(t, h.events, isState(Ready))
	if recs := h.records(t); len(recs) != 1 || recs[0].Status != store.StatusCompleted {
		t.Errorf("records = %+v, want one completed", recs)
	}
}

func TestConcurrentPauseAndStop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for round := 0; round < 20; round++ {
		if err := h.engine.Start(ctx, nil, time.Minute); err != nil {
			t.Fatalf("round %d: Start failed: %v", round, err)
		}
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			stopped int
		)
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = h.engine.Pause()
			}()
			go func() {
				defer wg.Done()
				if h.engine.Stop(ctx) == nil {
					mu.Lock()
					stopped++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if stopped != 1 {
			t.Fatalf("round %d: %d stops succeeded, want 1", round, stopped)
		}
		if got := h.engine.Snapshot().State; got != Ready {
			t.Fatalf("round %d: state = %v, want Ready", round, got)
		}
	}

	recs := h.records(t)
	if len(recs) != 20 {
		t.Errorf("records = %d, want 20", len(recs))
	}
	seen := make(map[string]bool)
	for _, r := range recs {
		if seen[r.ID] {
			t.Errorf("session %s persisted twice", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestStopRacesNaturalCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for round := 0; round < 10; round++ {
		if err := h.engine.Start(ctx, nil, 10*time.Millisecond); err != nil {
			t.Fatalf("round %d: Start failed: %v", round, err)
		}
		time.Sleep(10 * time.Millisecond)
		_ = h.engine.Stop(ctx)
		waitEvent(t, h.events, isState(Ready))
	}
	if recs := h.records(t); len(recs) != 10 {
		t.Errorf("records = %d, want exactly one per run", len(recs))
	}
}

func TestPersistFailureRetriedBeforeStart(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyRecorder{fail: true}
	h := newHarness(t, func(o *Options) { o.Recorder = flaky })
	flaky.next = h.store

	if err := h.engine.Start(ctx, nil, 20*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	failed := waitEvent(t, h.events, func(ev Event) bool { return ev.Kind == EventPersistFailed })
	if !errors.Is(failed.Err, store.ErrStorage) {
		t.Errorf("failed.Err = %v, want ErrStorage", failed.Err)
	}

	snap := h.engine.Snapshot()
	if snap.State != Completed || snap.Pending == nil || !errors.Is(snap.Err, store.ErrStorage) {
		t.Fatalf("snapshot after failure = %+v", snap)
	}
	if err := h.engine.Start(ctx, nil, time.Minute); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("Start with pending record err = %v, want ErrStorage", err)
	}
	if len(h.records(t)) != 0 {
		t.Fatal("record written while storage failing")
	}

	flaky.setFail(false)
	if err := h.engine.Start(ctx, nil, time.Minute); err != nil {
		t.Fatalf("Start after recovery failed: %v", err)
	}
	recs := h.records(t)
	if len(recs) != 1 || recs[0].Status != store.StatusCompleted || recs[0].ID != snap.SessionID {
		t.Errorf("records = %+v, want the pending completion", recs)
	}
	if got := h.engine.Snapshot().State; got != Running {
		t.Errorf("state = %v, want Running", got)
	}
}

func TestRetryPending(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyRecorder{}
	h := newHarness(t, func(o *Options) { o.Recorder = flaky })
	flaky.next = h.store

	if err := h.engine.Start(ctx, nil, time.Minute); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	flaky.setFail(true)
	if err := h.engine.Stop(ctx); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("Stop err = %v, want ErrStorage", err)
	}
	if got := h.engine.Snapshot().State; got != Abandoned {
		t.Fatalf("state = %v, want Abandoned", got)
	}
	if err := h.engine.Stop(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Stop err = %v, want ErrInvalidState", err)
	}

	flaky.setFail(false)
	if err := h.engine.RetryPending(ctx); err != nil {
		t.Fatalf("RetryPending failed: %v", err)
	}
	if got := h.engine.Snapshot().State; got != Ready {
		t.Errorf("state = %v, want Ready", got)
	}
	if recs := h.records(t); len(recs) != 1 || recs[0].Status != store.StatusAbandoned {
		t.Errorf("records = %+v", recs)
	}
	if err := h.engine.RetryPending(ctx); err != nil {
		t.Errorf("RetryPending with nothing pending = %v", err)
	}
}

func TestDeletedTaskKeepsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	task := h.task(t)

	if err := h.engine.Start(ctx, &task.ID, 30*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.registry.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	resolved := waitEvent(t, h.events, func(ev Event) bool { return ev.Kind == EventResolved })
	if !errors.Is(resolved.Err, store.ErrNotFound) {
		t.Errorf("resolved.Err = %v, want ErrNotFound", resolved.Err)
	}
	recs := h.records(t)
	if len(recs) != 1 || recs[0].TaskID != nil || recs[0].Status != store.StatusCompleted {
		t.Errorf("records = %+v, want one untethered completion", recs)
	}
}

func TestCheckpointRestoresInterrupted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer s.Close()
	reg := tasks.New(s)
	task, _ := reg.Create(ctx, "long read", store.ImportantNotUrgent, 1)

	opts := Options{Recorder: s, Linker: reg, Tick: testTick, CheckpointDir: dir, Warnings: io.Discard}
	first, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := first.Start(ctx, &task.ID, 60*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := first.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	sessionID := first.Snapshot().SessionID
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := New(opts)
	if err != nil {
		t.Fatalf("New (restore) failed: %v", err)
	}
	defer second.Close()
	events, cancel := second.Subscribe()
	defer cancel()

	snap := second.Snapshot()
	if snap.State != Interrupted || snap.SessionID != sessionID {
		t.Fatalf("restored snapshot = %+v", snap)
	}
	if snap.TaskID == nil || *snap.TaskID != task.ID {
		t.Errorf("restored TaskID = %v", snap.TaskID)
	}
	if err := second.Start(ctx, nil, time.Minute); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start while interrupted err = %v, want ErrInvalidState", err)
	}
	if err := second.Pause(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Pause while interrupted err = %v, want ErrInvalidState", err)
	}

	if err := second.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitEvent(t, events, isState(Ready))

	got, _ := reg.Get(ctx, task.ID)
	if got.ActualSessions != 1 {
		t.Errorf("ActualSessions = %d, want 1", got.ActualSessions)
	}
	if cp, _ := LoadCheckpoint(dir); cp != nil {
		t.Errorf("checkpoint not cleared after resolution: %+v", cp)
	}
}

func TestCloseLeavesUntouchedRestoreAlone(t *testing.T) {
	dir := t.TempDir()
	if err := SaveCheckpoint(dir, &Checkpoint{
		SessionID: "restored-2",
		StartedAt: time.Now().Add(-time.Hour),
		Duration:  30 * time.Minute,
		Remaining: 5 * time.Minute,
		State:     "paused",
	}); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	logger, err := log.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	h := newHarness(t, func(o *Options) {
		o.CheckpointDir = dir
		o.Events = logger
	})
	if h.engine.Snapshot().State != Interrupted {
		t.Fatalf("state = %v, want Interrupted", h.engine.Snapshot().State)
	}

	// Another process resolves the session meanwhile.
	if err := ClearCheckpoint(dir); err != nil {
		t.Fatalf("ClearCheckpoint failed: %v", err)
	}
	if err := h.engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if cp, err := LoadCheckpoint(dir); err != nil || cp != nil {
		t.Errorf("checkpoint after Close = %+v, %v; want none", cp, err)
	}
	events, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none for a session this engine never ran", events)
	}
}

func TestForceCompleteInterrupted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := SaveCheckpoint(dir, &Checkpoint{
		SessionID: "restored-1",
		StartedAt: time.Now().Add(-time.Hour),
		Duration:  30 * time.Minute,
		Remaining: 12 * time.Minute,
		State:     "running",
	}); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	h := newHarness(t, func(o *Options) { o.CheckpointDir = dir })
	if got := h.engine.Snapshot(); got.State != Interrupted || got.Remaining != 12*time.Minute {
		t.Fatalf("snapshot = %+v", got)
	}
	if err := h.engine.ForceComplete(ctx); err != nil {
		t.Fatalf("ForceComplete failed: %v", err)
	}
	recs := h.records(t)
	if len(recs) != 1 || recs[0].ID != "restored-1" || recs[0].Status != store.StatusForceCompleted {
		t.Errorf("records = %+v", recs)
	}
}

func TestEventLogRecordsTransitions(t *testing.T) {
	ctx := context.Background()
	logger, err := log.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	h := newHarness(t, func(o *Options) { o.Events = logger })

	if err := h.engine.Start(ctx, nil, time.Minute); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := h.engine.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	events, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	want := []string{log.EventSessionStarted, log.EventSessionPaused, log.EventSessionAbandoned}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %v", events, want)
	}
	for i, w := range want {
		if events[i].Event != w {
			t.Errorf("events[%d] = %s, want %s", i, events[i].Event, w)
		}
	}
}

func TestCloseRejectsCommands(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.engine.Start(context.Background(), nil, time.Minute); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close err = %v, want ErrClosed", err)
	}
	if _, ok := <-h.events; ok {
		t.Error("subscription should be closed")
	}
}

func TestSnapshotFormatting(t *testing.T) {
	s := Snapshot{Duration: 30 * time.Minute, Remaining: 15 * time.Minute}
	if got := s.Progress(); got != 50 {
		t.Errorf("Progress = %v, want 50", got)
	}
	if got := s.Clock(); got != "15:00" {
		t.Errorf("Clock = %q, want 15:00", got)
	}
	if got := FormatClock(61*time.Second + time.Millisecond); got != "01:02" {
		t.Errorf("FormatClock = %q, want 01:02", got)
	}
	if got := FormatClock(-time.Second); got != "00:00" {
		t.Errorf("FormatClock(negative) = %q, want 00:00", got)
	}
	if got := (Snapshot{}).Progress(); got != 0 {
		t.Errorf("zero Progress = %v", got)
	}
}
