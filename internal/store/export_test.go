package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)

	task, _ := src.CreateTask(ctx, "ship release", UrgentImportant, 2)
	other, _ := src.CreateTask(ctx, "tidy inbox", Neither, 1)
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.Local)
	end := start.Add(25 * time.Minute)
	for i := 0; i < 2; i++ {
		rec := &SessionRecord{
			TaskID:    &task.ID,
			StartedAt: start.Add(time.Duration(i) * time.Hour),
			EndedAt:   &end,
			Duration:  25 * time.Minute,
			Status:    StatusCompleted,
		}
		if err := src.CreateSessionRecord(ctx, rec); err != nil {
			t.Fatalf("CreateSessionRecord failed: %v", err)
		}
	}
	if err := src.CompleteTask(ctx, other.ID, start); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if _, err := src.CreateLog(ctx, "kicked off", &task.ID, start); err != nil {
		t.Fatalf("CreateLog failed: %v", err)
	}
	if _, err := src.UpsertReflection(ctx, "2024-03-05", "steady", start); err != nil {
		t.Fatalf("UpsertReflection failed: %v", err)
	}

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst := openTestStore(t)
	if err := dst.Import(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	got, err := dst.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Description != "ship release" || got.ActualSessions != 2 {
		t.Errorf("task = %+v, want description and 2 sessions preserved", got)
	}
	done, _ := dst.GetTask(ctx, other.ID)
	if done == nil || !done.Completed {
		t.Error("completed task lost its completion")
	}

	counts, _ := dst.CountSessionsByDate(ctx, SessionFilter{Status: StatusCompleted})
	if counts["2024-03-05"] != 2 {
		t.Errorf("sessions on 2024-03-05 = %d, want 2", counts["2024-03-05"])
	}
	logs, _ := dst.ListLogs(ctx, LogFilter{})
	if len(logs) != 1 || logs[0].TaskID == nil || *logs[0].TaskID != task.ID {
		t.Errorf("logs = %+v", logs)
	}
	if r, err := dst.GetReflection(ctx, "2024-03-05"); err != nil || r.Content != "steady" {
		t.Errorf("reflection = %+v, %v", r, err)
	}

	// A second import into the populated store must be refused.
	err = dst.Import(ctx, bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrNotEmpty) {
		t.Errorf("second Import err = %v, want ErrNotEmpty", err)
	}
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `nope`},
		{"missing sections", `{"version": 1}`},
		{"bad version", `{"version": 2, "tasks": [], "sessions": [], "logs": [], "reflections": []}`},
		{"bad quadrant", `{"version": 1, "tasks": [{"id": 1, "description": "x", "created_at": "2024-03-05T09:00:00Z", "quadrant": 9}], "sessions": [], "logs": [], "reflections": []}`},
		{"bad status", `{"version": 1, "tasks": [], "sessions": [{"id": "a", "started_at": "2024-03-05T09:00:00Z", "duration_seconds": 60, "status": "running", "date": "2024-03-05"}], "logs": [], "reflections": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Import(context.Background(), strings.NewReader(tt.doc)); err == nil {
				t.Error("Import should fail")
			}
		})
	}

	tasks, _ := s.ListTasks(context.Background(), TaskFilter{})
	if len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0 after rejected imports", len(tasks))
	}
}
