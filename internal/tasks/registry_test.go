package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s), s
}

func TestCreateValidates(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	if _, err := r.Create(ctx, "   ", store.UrgentImportant, 1); !errors.Is(err, store.ErrEmptyContent) {
		t.Errorf("blank description err = %v, want ErrEmptyContent", err)
	}
	if _, err := r.Create(ctx, "x", store.Quadrant(4), 1); !errors.Is(err, store.ErrInvalidQuadrant) {
		t.Errorf("bad quadrant err = %v, want ErrInvalidQuadrant", err)
	}
	if _, err := r.Create(ctx, "x", store.Neither, -1); !errors.Is(err, ErrInvalidEstimate) {
		t.Errorf("negative estimate err = %v, want ErrInvalidEstimate", err)
	}

	task, err := r.Create(ctx, "  plan sprint  ", store.ImportantNotUrgent, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Description != "plan sprint" {
		t.Errorf("Description = %q, want trimmed", task.Description)
	}
}

func TestUpdateAndReassign(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	task, _ := r.Create(ctx, "a", store.UrgentImportant, 1)

	desc := "b"
	est := 5
	got, err := r.Update(ctx, task.ID, Update{Description: &desc, Estimate: &est})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Description != "b" || got.Estimate != 5 || got.Quadrant != store.UrgentImportant {
		t.Errorf("Update result = %+v", got)
	}

	got, err = r.Reassign(ctx, task.ID, store.UrgentNotImportant)
	if err != nil {
		t.Fatalf("Reassign failed: %v", err)
	}
	if got.Quadrant != store.UrgentNotImportant {
		t.Errorf("Quadrant = %v, want %v", got.Quadrant, store.UrgentNotImportant)
	}

	// Same quadrant is a no-op.
	if _, err := r.Reassign(ctx, task.ID, store.UrgentNotImportant); err != nil {
		t.Errorf("same-quadrant Reassign err = %v", err)
	}
	if _, err := r.Reassign(ctx, task.ID, store.Quadrant(-1)); !errors.Is(err, store.ErrInvalidQuadrant) {
		t.Errorf("bad Reassign err = %v, want ErrInvalidQuadrant", err)
	}
	if _, err := r.Reassign(ctx, 999, store.Neither); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown Reassign err = %v, want ErrNotFound", err)
	}

	grouped, err := r.ListByQuadrant(ctx)
	if err != nil {
		t.Fatalf("ListByQuadrant failed: %v", err)
	}
	if len(grouped[store.UrgentNotImportant]) != 1 || len(grouped[store.UrgentImportant]) != 0 {
		t.Errorf("grouping = %v", grouped)
	}
}

func TestMarkCompleteLeavesCounter(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	task, _ := r.Create(ctx, "a", store.UrgentImportant, 1)

	fixed := time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)
	r.now = func() time.Time { return fixed }

	done, err := r.MarkComplete(ctx, task.ID)
	if err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil || !done.CompletedAt.Equal(fixed) {
		t.Errorf("completion = %v %v", done.Completed, done.CompletedAt)
	}
	if done.ActualSessions != 0 {
		t.Errorf("ActualSessions = %d, want 0", done.ActualSessions)
	}

	r.now = func() time.Time { return fixed.Add(time.Hour) }
	again, err := r.MarkComplete(ctx, task.ID)
	if err != nil {
		t.Fatalf("second MarkComplete failed: %v", err)
	}
	if !again.CompletedAt.Equal(fixed) {
		t.Errorf("second MarkComplete moved CompletedAt to %v", again.CompletedAt)
	}

	desc := "edited"
	if _, err := r.Update(ctx, task.ID, Update{Description: &desc}); !errors.Is(err, ErrTaskCompleted) {
		t.Errorf("Update on completed err = %v, want ErrTaskCompleted", err)
	}

	grouped, _ := r.ListByQuadrant(ctx)
	if len(grouped[store.UrgentImportant]) != 0 {
		t.Error("completed task should not be listed as open")
	}
}

func TestIncrementActualSessions(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRegistry(t)
	task, _ := r.Create(ctx, "a", store.UrgentImportant, 2)

	for i := 0; i < 3; i++ {
		rec := &store.SessionRecord{
			TaskID:    &task.ID,
			StartedAt: time.Now(),
			Duration:  time.Minute,
			Status:    store.StatusCompleted,
		}
		if err := r.IncrementActualSessions(ctx, rec); err != nil {
			t.Fatalf("IncrementActualSessions failed: %v", err)
		}
	}

	got, _ := r.Get(ctx, task.ID)
	if got.ActualSessions != 3 {
		t.Errorf("ActualSessions = %d, want 3", got.ActualSessions)
	}

	abandoned := &store.SessionRecord{TaskID: &task.ID, StartedAt: time.Now(), Status: store.StatusAbandoned}
	if err := r.IncrementActualSessions(ctx, abandoned); !errors.Is(err, ErrNotCounted) {
		t.Errorf("abandoned err = %v, want ErrNotCounted", err)
	}
	untethered := &store.SessionRecord{StartedAt: time.Now(), Status: store.StatusCompleted}
	if err := r.IncrementActualSessions(ctx, untethered); !errors.Is(err, ErrNotCounted) {
		t.Errorf("untethered err = %v, want ErrNotCounted", err)
	}

	records, _ := s.ListSessionRecords(ctx, store.SessionFilter{})
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}

	drift, err := r.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(drift) != 0 {
		t.Errorf("drift = %+v, want none", drift)
	}
}

func TestDeleteKeepsRecords(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRegistry(t)
	task, _ := r.Create(ctx, "a", store.UrgentImportant, 1)
	rec := &store.SessionRecord{TaskID: &task.ID, StartedAt: time.Now(), Duration: time.Minute, Status: store.StatusCompleted}
	if err := r.IncrementActualSessions(ctx, rec); err != nil {
		t.Fatalf("IncrementActualSessions failed: %v", err)
	}

	if err := r.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := r.Delete(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetSessionRecord(ctx, rec.ID); err != nil {
		t.Errorf("session record should survive task deletion: %v", err)
	}
}

func TestQuadrantSummary(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	a, _ := r.Create(ctx, "a", store.UrgentImportant, 1)
	if _, err := r.Create(ctx, "b", store.UrgentImportant, 1); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.Create(ctx, "c", store.Neither, 1); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.MarkComplete(ctx, a.ID); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	sum, err := r.QuadrantSummary(ctx)
	if err != nil {
		t.Fatalf("QuadrantSummary failed: %v", err)
	}
	if got := sum[store.UrgentImportant]; got != (Summary{Pending: 1, Completed: 1, Total: 2}) {
		t.Errorf("UrgentImportant = %+v", got)
	}
	if got := sum[store.Neither]; got != (Summary{Pending: 1, Total: 1}) {
		t.Errorf("Neither = %+v", got)
	}
	if got := sum[store.ImportantNotUrgent]; got != (Summary{}) {
		t.Errorf("ImportantNotUrgent = %+v", got)
	}
}

func TestDurationDays(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(72*time.Hour + time.Hour)
	if got := DurationDays(store.Task{CreatedAt: created, Completed: true, CompletedAt: &done}, time.Now()); got != 3 {
		t.Errorf("completed DurationDays = %d, want 3", got)
	}
	if got := DurationDays(store.Task{CreatedAt: created}, created.Add(36*time.Hour)); got != 1 {
		t.Errorf("open DurationDays = %d, want 1", got)
	}
}
