package timer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

// CheckpointFile is the checkpoint's name inside the data directory.
const CheckpointFile = "interrupted.json"

// Checkpoint is an unresolved session saved when the engine shuts down. A
// checkpoint without Status is a session that was still running or paused;
// one with Status is a terminal record whose write had not succeeded yet.
type Checkpoint struct {
	SessionID string              `json:"session_id"`
	TaskID    *int64              `json:"task_id,omitempty"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	Remaining time.Duration       `json:"remaining"`
	State     string              `json:"state"`
	Status    store.SessionStatus `json:"status,omitempty"`
	EndedAt   *time.Time          `json:"ended_at,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// SaveCheckpoint writes cp into dir atomically.
func SaveCheckpoint(dir string, cp *Checkpoint) error {
	cp.Timestamp = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "interrupted-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, CheckpointFile)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the checkpoint from dir.
// Returns nil, nil if no checkpoint exists.
func LoadCheckpoint(dir string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(dir, CheckpointFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	if cp.SessionID == "" {
		return nil, fmt.Errorf("parsing checkpoint: missing session id")
	}
	if cp.Status != "" && !cp.Status.Valid() {
		return nil, fmt.Errorf("parsing checkpoint: unknown status %q", cp.Status)
	}
	return &cp, nil
}

// ClearCheckpoint removes the checkpoint file.
func ClearCheckpoint(dir string) error {
	path := filepath.Join(dir, CheckpointFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
