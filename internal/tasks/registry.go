// Package tasks is the task registry: CRUD over the priority matrix plus the
// completed-session counter that only the session engine advances.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

var (
	// ErrTaskCompleted is returned when editing or moving a completed task.
	ErrTaskCompleted = errors.New("task is already completed")

	// ErrInvalidEstimate is returned for a negative session estimate.
	ErrInvalidEstimate = errors.New("estimate must not be negative")

	// ErrNotCounted is returned by IncrementActualSessions for records that
	// must not advance a task counter.
	ErrNotCounted = errors.New("record does not count toward a task")
)

// Gateway is the subset of the storage gateway the registry needs.
type Gateway interface {
	CreateTask(ctx context.Context, description string, q store.Quadrant, estimate int) (*store.Task, error)
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	UpdateTask(ctx context.Context, t *store.Task) error
	CompleteTask(ctx context.Context, id int64, at time.Time) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error)
	ListTasksByQuadrant(ctx context.Context, openOnly bool) (map[store.Quadrant][]store.Task, error)
	CreateSessionRecord(ctx context.Context, rec *store.SessionRecord) error
	ListSessionRecords(ctx context.Context, f store.SessionFilter) ([]store.SessionRecord, error)
}

// Registry owns tasks and their completed-session counters.
type Registry struct {
	mu  sync.Mutex // serializes read-modify-write sequences
	gw  Gateway
	now func() time.Time
}

// New returns a registry backed by gw.
func New(gw Gateway) *Registry {
	return &Registry{gw: gw, now: time.Now}
}

// Update carries the optional fields of an edit. Nil fields are unchanged.
type Update struct {
	Description *string
	Quadrant    *store.Quadrant
	Estimate    *int
}

// Create adds an open task to quadrant q.
func (r *Registry) Create(ctx context.Context, description string, q store.Quadrant, estimate int) (*store.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("task description: %w", store.ErrEmptyContent)
	}
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", store.ErrInvalidQuadrant, int(q))
	}
	if estimate < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEstimate, estimate)
	}
	return r.gw.CreateTask(ctx, description, q, estimate)
}

// Get returns the task with the given id.
func (r *Registry) Get(ctx context.Context, id int64) (*store.Task, error) {
	return r.gw.GetTask(ctx, id)
}

// Update applies u to an open task.
func (r *Registry) Update(ctx context.Context, id int64, u Update) (*store.Task, error) {
	if u.Description != nil && strings.TrimSpace(*u.Description) == "" {
		return nil, fmt.Errorf("task description: %w", store.ErrEmptyContent)
	}
	if u.Quadrant != nil && !u.Quadrant.Valid() {
		return nil, fmt.Errorf("%w: %d", store.ErrInvalidQuadrant, int(*u.Quadrant))
	}
	if u.Estimate != nil && *u.Estimate < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEstimate, *u.Estimate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.gw.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Completed {
		return nil, fmt.Errorf("task %d: %w", id, ErrTaskCompleted)
	}

	changed := false
	if u.Description != nil {
		if d := strings.TrimSpace(*u.Description); d != t.Description {
			t.Description = d
			changed = true
		}
	}
	if u.Quadrant != nil && *u.Quadrant != t.Quadrant {
		t.Quadrant = *u.Quadrant
		changed = true
	}
	if u.Estimate != nil && *u.Estimate != t.Estimate {
		t.Estimate = *u.Estimate
		changed = true
	}
	if !changed {
		return t, nil
	}
	if err := r.gw.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Reassign moves an open task to quadrant q. Moving a task to the quadrant it
// is already in is a no-op.
func (r *Registry) Reassign(ctx context.Context, id int64, q store.Quadrant) (*store.Task, error) {
	return r.Update(ctx, id, Update{Quadrant: &q})
}

// MarkComplete closes a task. The completed-session counter is untouched and
// completing an already completed task is a no-op.
func (r *Registry) MarkComplete(ctx context.Context, id int64) (*store.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.gw.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Completed {
		return t, nil
	}
	at := r.now()
	if err := r.gw.CompleteTask(ctx, id, at); err != nil {
		return nil, err
	}
	t.Completed = true
	t.CompletedAt = &at
	return t, nil
}

// Delete removes a task. Its session records are kept.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gw.DeleteTask(ctx, id)
}

// ListByQuadrant returns open tasks grouped by quadrant, newest first.
func (r *Registry) ListByQuadrant(ctx context.Context) (map[store.Quadrant][]store.Task, error) {
	return r.gw.ListTasksByQuadrant(ctx, true)
}

// List returns tasks matching f, newest first.
func (r *Registry) List(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	return r.gw.ListTasks(ctx, f)
}

// IncrementActualSessions persists a completed session record and advances
// the linked task's counter in the same write. Only the session engine calls
// it. The record must be completed and linked to a task; if the task is gone
// nothing is written and store.ErrNotFound is returned.
func (r *Registry) IncrementActualSessions(ctx context.Context, rec *store.SessionRecord) error {
	if rec.Status != store.StatusCompleted || rec.TaskID == nil {
		return fmt.Errorf("%w: status %s", ErrNotCounted, rec.Status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gw.CreateSessionRecord(ctx, rec)
}

// Summary counts the tasks in one quadrant.
type Summary struct {
	Pending   int
	Completed int
	Total     int
}

// QuadrantSummary counts pending and completed tasks per quadrant. Every
// quadrant has an entry.
func (r *Registry) QuadrantSummary(ctx context.Context) (map[store.Quadrant]Summary, error) {
	all, err := r.gw.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[store.Quadrant]Summary, len(store.Quadrants))
	for _, q := range store.Quadrants {
		out[q] = Summary{}
	}
	for _, t := range all {
		s := out[t.Quadrant]
		s.Total++
		if t.Completed {
			s.Completed++
		} else {
			s.Pending++
		}
		out[t.Quadrant] = s
	}
	return out, nil
}

// Drift reports a task whose stored counter disagrees with its records.
type Drift struct {
	TaskID   int64
	Stored   int
	Recorded int
}

// Audit compares every task's completed-session counter with the number of
// completed session records that reference it.
func (r *Registry) Audit(ctx context.Context) ([]Drift, error) {
	all, err := r.gw.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	records, err := r.gw.ListSessionRecords(ctx, store.SessionFilter{Status: store.StatusCompleted})
	if err != nil {
		return nil, err
	}
	recorded := make(map[int64]int)
	for _, rec := range records {
		if rec.TaskID != nil {
			recorded[*rec.TaskID]++
		}
	}
	var drift []Drift
	for _, t := range all {
		if t.ActualSessions != recorded[t.ID] {
			drift = append(drift, Drift{TaskID: t.ID, Stored: t.ActualSessions, Recorded: recorded[t.ID]})
		}
	}
	return drift, nil
}

// DurationDays returns the whole days from creation to completion, or from
// creation to now for an open task.
func DurationDays(t store.Task, now time.Time) int {
	end := now
	if t.Completed && t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	if end.Before(t.CreatedAt) {
		return 0
	}
	return int(end.Sub(t.CreatedAt).Hours() / 24)
}
