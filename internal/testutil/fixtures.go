// Package testutil provides test helper utilities for focus tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Environment variables that change where focus keeps its data or how long
// a session lasts. Mirrors internal/config.
var focusEnv = []string{"FOCUS_HOME", "POMODORO_TEST_MODE", "POMODORO_DURATION_SECONDS"}

// TempDataDir creates a temporary data directory with the given files and
// returns its path. Files is a map of relative path -> content. Directories
// are created as needed. The directory is automatically cleaned up when the
// test finishes.
func TempDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// ClearEnv blanks every focus environment override for the duration of the
// test. Tests using it cannot run in parallel.
func ClearEnv(t *testing.T) {
	t.Helper()
	for _, k := range focusEnv {
		t.Setenv(k, "")
	}
}

// ConfigYAML returns a config.yaml with the given session length and the
// event log enabled.
func ConfigYAML(minutes int) string {
	return fmt.Sprintf(`version: 1
timer:
  duration_minutes: %d
  tick_ms: 1000
storage:
  database: focus.db
log:
  events: true
`, minutes)
}

// ExportDocument returns a small valid export: two tasks (one completed),
// three sessions on 2024-03-05, one log entry and one reflection.
func ExportDocument() string {
	doc := map[string]any{
		"version":     1,
		"exported_at": "2024-03-06T08:00:00Z",
		"tasks": []map[string]any{
			{
				"id": 1, "description": "draft proposal", "created_at": "2024-03-01T09:00:00Z",
				"estimate": 3, "quadrant": 1, "completed_at": "2024-03-05T15:00:00Z",
				"actual_sessions": 0, "completed": true,
			},
			{
				"id": 2, "description": "answer email", "created_at": "2024-03-02T09:00:00Z",
				"estimate": 1, "quadrant": 2, "completed_at": nil,
				"actual_sessions": 0, "completed": false,
			},
		},
		"sessions": []map[string]any{
			{"id": "s-1", "task_id": 1, "started_at": "2024-03-05T09:00:00Z", "duration_seconds": 1500, "status": "completed", "date": "2024-03-05"},
			{"id": "s-2", "task_id": 1, "started_at": "2024-03-05T10:00:00Z", "duration_seconds": 1500, "status": "completed", "date": "2024-03-05"},
			{"id": "s-3", "task_id": nil, "started_at": "2024-03-05T11:00:00Z", "duration_seconds": 1500, "status": "abandoned", "date": "2024-03-05"},
		},
		"logs": []map[string]any{
			{"id": 1, "content": "outline agreed", "timestamp": "2024-03-05T12:00:00Z", "task_id": 1, "date": "2024-03-05"},
		},
		"reflections": []map[string]any{
			{"date": "2024-03-05", "content": "good focus day", "created_at": "2024-03-05T21:00:00Z", "updated_at": "2024-03-05T21:00:00Z"},
		},
	}
	data, _ := json.MarshalIndent(doc, "", "  ")
	return string(data)
}
