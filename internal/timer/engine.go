package timer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/berth-dev/focus/internal/log"
	"github.com/berth-dev/focus/internal/store"
)

const (
	DefaultDuration = 30 * time.Minute
	DefaultTick     = time.Second
)

// Recorder persists terminal session records.
type Recorder interface {
	CreateSessionRecord(ctx context.Context, rec *store.SessionRecord) error
}

// Linker is the task side of a session: lookup on start, and the counter
// advanced on natural completion.
type Linker interface {
	Get(ctx context.Context, id int64) (*store.Task, error)
	IncrementActualSessions(ctx context.Context, rec *store.SessionRecord) error
}

// DayTotals recomputes a day's completed-session count from the records.
type DayTotals interface {
	RefreshDay(ctx context.Context, d store.Date) (int, error)
}

// EventLog receives one entry per transition.
type EventLog interface {
	Append(event log.LogEvent) error
}

// Options configures an Engine. Recorder is required.
type Options struct {
	Recorder Recorder
	Linker   Linker
	Totals   DayTotals
	Events   EventLog

	// Duration is the default session length (DefaultDuration when zero).
	Duration time.Duration
	// Tick is the countdown granularity (DefaultTick when zero).
	Tick time.Duration
	// CheckpointDir holds the interruption checkpoint. Empty disables it.
	CheckpointDir string
	// Warnings receives event-log and checkpoint failures (os.Stderr when nil).
	Warnings io.Writer
}

// run is one session from Start until its terminal transition. A run's
// worker is never reused.
type run struct {
	id        string
	taskID    *int64
	duration  time.Duration
	startedAt time.Time
	remaining time.Duration // as of resumedAt while running, frozen otherwise
	resumedAt time.Time
	wake      chan struct{}
	quit      chan struct{}
}

func (r *run) remainingAt(now time.Time, running bool) time.Duration {
	if !running {
		return r.remaining
	}
	rem := r.remaining - now.Sub(r.resumedAt)
	if rem < 0 {
		return 0
	}
	return rem
}

// Engine runs at most one focus session at a time. All state lives behind
// mu; the worker and command callers both transition under it, so every
// session resolves exactly once.
type Engine struct {
	mu       sync.Mutex
	state    State
	run      *run
	pending  *store.SessionRecord // terminal record not yet durable
	lastErr  error
	closed   bool
	duration time.Duration

	tick     time.Duration
	recorder Recorder
	linker   Linker
	totals   DayTotals
	events   EventLog
	cpDir    string
	warn     io.Writer

	bus *bus
	wg  sync.WaitGroup
}

// New builds an engine in Ready, or restores the session left in the
// checkpoint directory.
func New(opts Options) (*Engine, error) {
	if opts.Recorder == nil {
		return nil, errors.New("timer: recorder is required")
	}
	if opts.Duration == 0 {
		opts.Duration = DefaultDuration
	}
	if err := ValidateDuration(opts.Duration); err != nil {
		return nil, err
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Warnings == nil {
		opts.Warnings = os.Stderr
	}

	e := &Engine{
		state:    Ready,
		duration: opts.Duration,
		tick:     opts.Tick,
		recorder: opts.Recorder,
		linker:   opts.Linker,
		totals:   opts.Totals,
		events:   opts.Events,
		cpDir:    opts.CheckpointDir,
		warn:     opts.Warnings,
		bus:      newBus(),
	}

	if e.cpDir != "" {
		cp, err := LoadCheckpoint(e.cpDir)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			e.restore(cp)
		}
	}
	return e, nil
}

func (e *Engine) restore(cp *Checkpoint) {
	r := &run{
		id:        cp.SessionID,
		taskID:    cp.TaskID,
		duration:  cp.Duration,
		startedAt: cp.StartedAt,
		remaining: cp.Remaining,
	}
	if cp.Status != "" {
		e.state = terminalState(cp.Status)
		e.pending = &store.SessionRecord{
			ID:        cp.SessionID,
			TaskID:    cp.TaskID,
			StartedAt: cp.StartedAt,
			EndedAt:   cp.EndedAt,
			Duration:  cp.Duration,
			Status:    cp.Status,
			Date:      store.DateOf(cp.StartedAt),
		}
		return
	}
	e.state = Interrupted
	e.run = r
}

// Subscribe returns a channel of engine events and a cancel func. Events
// arrive in transition order and none are dropped; the channel closes after
// cancel or Close.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.bus.subscribe()
}

// Snapshot is a consistent view of the engine.
type Snapshot struct {
	State     State
	SessionID string
	TaskID    *int64
	StartedAt time.Time
	Duration  time.Duration
	Remaining time.Duration
	Pending   *store.SessionRecord
	Err       error
}

// Snapshot returns the current state and remaining time.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(time.Now())
}

func (e *Engine) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{State: e.state, Err: e.lastErr}
	switch {
	case e.run != nil:
		s.SessionID = e.run.id
		s.TaskID = e.run.taskID
		s.StartedAt = e.run.startedAt
		s.Duration = e.run.duration
		s.Remaining = e.run.remainingAt(now, e.state == Running)
	case e.pending != nil:
		p := *e.pending
		s.Pending = &p
		s.SessionID = p.ID
		s.TaskID = p.TaskID
		s.StartedAt = p.StartedAt
		s.Duration = p.Duration
	default:
		s.Duration = e.duration
		s.Remaining = e.duration
	}
	return s
}

// Progress returns the elapsed share of the session as a percentage.
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Duration-s.Remaining) / float64(s.Duration) * 100
}

// Clock formats the remaining time as MM:SS, rounding partial seconds up.
func (s Snapshot) Clock() string {
	return FormatClock(s.Remaining)
}

// FormatClock formats d as MM:SS, rounding partial seconds up.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// DefaultSessionDuration returns the length used when Start gets zero.
func (e *Engine) DefaultSessionDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// SetDefaultDuration changes the length of future sessions.
func (e *Engine) SetDefaultDuration(d time.Duration) error {
	if err := ValidateDuration(d); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.duration = d
	return nil
}

// Start begins a session linked to taskID (nil for an untethered session)
// lasting d, or the default length when d is zero. A terminal record that
// failed to persist is retried first; if the retry fails Start returns its
// error and nothing starts.
func (e *Engine) Start(ctx context.Context, taskID *int64, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if d == 0 {
		d = e.duration
	}
	if err := ValidateDuration(d); err != nil {
		return err
	}
	if e.pending != nil {
		if err := e.persistLocked(ctx); err != nil && e.pending != nil {
			return err
		}
	}
	if e.state != Ready {
		return invalid("start", e.state)
	}
	if taskID != nil && e.linker != nil {
		if _, err := e.linker.Get(ctx, *taskID); err != nil {
			return err
		}
	}

	now := time.Now()
	r := &run{
		id:        uuid.New().String(),
		duration:  d,
		startedAt: now,
		remaining: d,
		resumedAt: now,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	if taskID != nil {
		id := *taskID
		r.taskID = &id
	}
	e.run = r
	e.lastErr = nil
	e.setStateLocked(Running)
	e.logLocked(log.EventSessionStarted, r, nil)

	e.wg.Add(1)
	go e.work(r)
	return nil
}

// Pause freezes the countdown at the current remaining time.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.state != Running {
		return invalid("pause", e.state)
	}
	r := e.run
	r.remaining = r.remainingAt(time.Now(), true)
	e.setStateLocked(Paused)
	e.logLocked(log.EventSessionPaused, r, nil)
	r.signal()
	return nil
}

// Resume continues a paused or interrupted session from its frozen
// remaining time.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.state != Paused && e.state != Interrupted {
		return invalid("resume", e.state)
	}
	r := e.run
	r.resumedAt = time.Now()
	if r.wake == nil {
		// Restored from a checkpoint: this run has no worker yet.
		r.wake = make(chan struct{}, 1)
		r.quit = make(chan struct{})
		e.wg.Add(1)
		go e.work(r)
	}
	e.setStateLocked(Running)
	e.logLocked(log.EventSessionResumed, r, nil)
	r.signal()
	return nil
}

// Stop abandons the active session. The record is persisted as abandoned
// and no counter changes.
func (e *Engine) Stop(ctx context.Context) error {
	return e.resolve(ctx, "stop", store.StatusAbandoned)
}

// ForceComplete resolves the active session as force_completed. It is
// recorded but not counted toward task or daily totals.
func (e *Engine) ForceComplete(ctx context.Context) error {
	return e.resolve(ctx, "force complete", store.StatusForceCompleted)
}

func (e *Engine) resolve(ctx context.Context, op string, status store.SessionStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.state.Active() {
		return invalid(op, e.state)
	}
	return e.finishLocked(ctx, status, time.Now())
}

// RetryPending retries the write of a terminal record that failed to
// persist. It is a no-op when nothing is pending.
func (e *Engine) RetryPending(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.pending == nil {
		return nil
	}
	return e.persistLocked(ctx)
}

// Close stops the worker and checkpoints any unresolved session this
// engine drove so the next engine can restore it. Subscriptions are closed after their queued
// events are delivered.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true

	var cpErr error
	switch {
	case e.run != nil && e.run.wake == nil:
		// Restored and never resumed here. Its checkpoint is still on disk
		// unless another process has since resolved it.
		e.run = nil
	case e.run != nil:
		r := e.run
		r.remaining = r.remainingAt(time.Now(), e.state == Running)
		state := e.state
		if r.quit != nil {
			close(r.quit)
		}
		e.run = nil
		cpErr = e.saveCheckpointLocked(&Checkpoint{
			SessionID: r.id,
			TaskID:    r.taskID,
			StartedAt: r.startedAt,
			Duration:  r.duration,
			Remaining: r.remaining,
			State:     state.String(),
		})
		e.logLocked(log.EventSessionInterrupted, r, nil)
	case e.pending != nil:
		p := e.pending
		cpErr = e.saveCheckpointLocked(&Checkpoint{
			SessionID: p.ID,
			TaskID:    p.TaskID,
			StartedAt: p.StartedAt,
			Duration:  p.Duration,
			State:     e.state.String(),
			Status:    p.Status,
			EndedAt:   p.EndedAt,
		})
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.bus.close()
	return cpErr
}

func (e *Engine) saveCheckpointLocked(cp *Checkpoint) error {
	if e.cpDir == "" {
		return nil
	}
	return SaveCheckpoint(e.cpDir, cp)
}

// work drives one run's countdown. The engine state is authoritative; wake
// only tells the worker to re-read it after a pause or resume.
func (e *Engine) work(r *run) {
	defer e.wg.Done()

	e.mu.Lock()
	wait, _ := e.nextWaitLocked(r)
	e.mu.Unlock()

	t := time.NewTimer(wait)
	defer t.Stop()
	if wait == 0 {
		t.Stop()
	}

	for {
		select {
		case <-r.quit:
			return
		case <-r.wake:
			e.mu.Lock()
			wait, done := e.nextWaitLocked(r)
			e.mu.Unlock()
			if done {
				return
			}
			if wait > 0 {
				t.Reset(wait)
			} else {
				t.Stop()
			}
		case <-t.C:
			e.mu.Lock()
			wait, done := e.advanceLocked(r)
			e.mu.Unlock()
			if done {
				return
			}
			if wait > 0 {
				t.Reset(wait)
			}
		}
	}
}

// nextWaitLocked returns how long the worker should sleep: zero while not
// running, otherwise one tick or the time left, whichever is shorter.
func (e *Engine) nextWaitLocked(r *run) (time.Duration, bool) {
	if e.run != r {
		return 0, true
	}
	if e.state != Running {
		return 0, false
	}
	return e.waitFor(r.remainingAt(time.Now(), true)), false
}

func (e *Engine) waitFor(rem time.Duration) time.Duration {
	if rem <= 0 {
		// Fire immediately so completion happens on the worker.
		return time.Nanosecond
	}
	return min(e.tick, rem)
}

// advanceLocked publishes a tick or, once time is up, completes the run.
func (e *Engine) advanceLocked(r *run) (time.Duration, bool) {
	if e.run != r {
		return 0, true
	}
	if e.state != Running {
		return 0, false
	}
	now := time.Now()
	rem := r.remainingAt(now, true)
	if rem <= 0 {
		r.remaining = 0
		e.bus.publish(Event{Kind: EventTick, SessionID: r.id, State: Running, Duration: r.duration})
		// The error is published as EventPersistFailed and kept in lastErr.
		_ = e.finishLocked(context.Background(), store.StatusCompleted, now)
		return 0, true
	}
	e.bus.publish(Event{Kind: EventTick, SessionID: r.id, State: Running, Remaining: rem, Duration: r.duration})
	return e.waitFor(rem), false
}

// finishLocked performs the terminal transition for the active run and
// persists its record.
func (e *Engine) finishLocked(ctx context.Context, status store.SessionStatus, now time.Time) error {
	r := e.run
	e.run = nil
	if r.quit != nil {
		close(r.quit)
	}
	if status == store.StatusCompleted {
		r.remaining = 0
	} else {
		r.remaining = r.remainingAt(now, e.state == Running)
	}

	end := now
	e.pending = &store.SessionRecord{
		ID:        r.id,
		TaskID:    r.taskID,
		StartedAt: r.startedAt,
		EndedAt:   &end,
		Duration:  r.duration,
		Status:    status,
		Date:      store.DateOf(r.startedAt),
	}
	e.setStateLocked(terminalState(status))
	e.logLocked(terminalEvent(status), r, nil)
	return e.persistLocked(ctx)
}

func terminalEvent(status store.SessionStatus) string {
	switch status {
	case store.StatusCompleted:
		return log.EventSessionCompleted
	case store.StatusForceCompleted:
		return log.EventSessionForceCompleted
	default:
		return log.EventSessionAbandoned
	}
}

// persistLocked writes the pending record. On success the engine publishes
// EventResolved and returns to Ready; on failure the terminal state and the
// pending record are kept and the storage error is returned.
func (e *Engine) persistLocked(ctx context.Context) error {
	rec := e.pending
	retry := e.lastErr != nil

	warning, err := e.write(ctx, rec)
	if err != nil {
		e.lastErr = err
		e.bus.publish(Event{Kind: EventPersistFailed, SessionID: rec.ID, State: e.state, Duration: rec.Duration, Err: err})
		e.logRecordLocked(log.EventPersistFailed, rec, err)
		return err
	}
	if retry {
		e.logRecordLocked(log.EventPersistRetried, rec, nil)
	}

	e.pending = nil
	e.lastErr = nil
	if e.cpDir != "" {
		if err := ClearCheckpoint(e.cpDir); err != nil {
			fmt.Fprintf(e.warn, "Warning: %v\n", err)
		}
	}

	dayCount := -1
	if rec.Status == store.StatusCompleted && e.totals != nil {
		n, err := e.totals.RefreshDay(ctx, rec.Date)
		if err != nil {
			warning = errors.Join(warning, fmt.Errorf("refresh %s total: %w", rec.Date, err))
		} else {
			dayCount = n
		}
	}

	resolved := *rec
	e.bus.publish(Event{
		Kind:      EventResolved,
		SessionID: rec.ID,
		State:     e.state,
		Duration:  rec.Duration,
		Record:    &resolved,
		DayCount:  dayCount,
		Err:       warning,
	})
	e.setStateLocked(Ready)
	return warning
}

// write stores rec. A completed record linked to a task goes through the
// linker so the counter moves in the same write. If that task has been
// deleted the record is kept untethered and a store.ErrNotFound warning is
// returned alongside success.
func (e *Engine) write(ctx context.Context, rec *store.SessionRecord) (warning, err error) {
	if rec.Status == store.StatusCompleted && rec.TaskID != nil && e.linker != nil {
		err := e.linker.IncrementActualSessions(ctx, rec)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storageErr(err)
		}
		missing := *rec.TaskID
		rec.TaskID = nil
		if err := e.recorder.CreateSessionRecord(ctx, rec); err != nil {
			rec.TaskID = &missing
			return nil, storageErr(err)
		}
		return fmt.Errorf("session %s kept without its task: task %d: %w", rec.ID, missing, store.ErrNotFound), nil
	}
	if err := e.recorder.CreateSessionRecord(ctx, rec); err != nil {
		return nil, storageErr(err)
	}
	return nil, nil
}

func storageErr(err error) error {
	if errors.Is(err, store.ErrStorage) {
		return err
	}
	return fmt.Errorf("persist session: %w: %w", store.ErrStorage, err)
}

func (e *Engine) setStateLocked(s State) {
	prev := e.state
	e.state = s
	ev := Event{Kind: EventStateChanged, From: prev, State: s}
	if e.run != nil {
		ev.SessionID = e.run.id
		ev.Duration = e.run.duration
		ev.Remaining = e.run.remainingAt(time.Now(), s == Running)
	} else if e.pending != nil {
		ev.SessionID = e.pending.ID
		ev.Duration = e.pending.Duration
	}
	e.bus.publish(ev)
}

func (e *Engine) logLocked(event string, r *run, err error) {
	if e.events == nil {
		return
	}
	le := log.LogEvent{
		Event:       event,
		SessionID:   r.id,
		State:       e.state.String(),
		DurationMs:  r.duration.Milliseconds(),
		RemainingMs: r.remaining.Milliseconds(),
	}
	if r.taskID != nil {
		le.TaskID = *r.taskID
	}
	if err != nil {
		le.Error = err.Error()
	}
	if logErr := e.events.Append(le); logErr != nil {
		fmt.Fprintf(e.warn, "Warning: failed to log %s: %v\n", event, logErr)
	}
}

func (e *Engine) logRecordLocked(event string, rec *store.SessionRecord, err error) {
	if e.events == nil {
		return
	}
	le := log.LogEvent{
		Event:      event,
		SessionID:  rec.ID,
		State:      e.state.String(),
		DurationMs: rec.Duration.Milliseconds(),
		Data:       map[string]any{"status": string(rec.Status), "date": string(rec.Date)},
	}
	if rec.TaskID != nil {
		le.TaskID = *rec.TaskID
	}
	if err != nil {
		le.Error = err.Error()
	}
	if logErr := e.events.Append(le); logErr != nil {
		fmt.Fprintf(e.warn, "Warning: failed to log %s: %v\n", event, logErr)
	}
}

func (r *run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
