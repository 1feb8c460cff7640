package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed export_schema.json
var exportSchema string

const exportVersion = 1

// ErrNotEmpty is returned when importing into a store that already holds
// records.
var ErrNotEmpty = errors.New("store is not empty")

// document is the portable JSON form of all four record sets.
type document struct {
	Version     int                `json:"version"`
	ExportedAt  time.Time          `json:"exported_at"`
	Tasks       []exportTask       `json:"tasks"`
	Sessions    []exportSession    `json:"sessions"`
	Logs        []exportLog        `json:"logs"`
	Reflections []exportReflection `json:"reflections"`
}

type exportTask struct {
	ID             int64      `json:"id"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	Estimate       int        `json:"estimate"`
	Quadrant       int        `json:"quadrant"`
	CompletedAt    *time.Time `json:"completed_at"`
	ActualSessions int        `json:"actual_sessions"`
	Completed      bool       `json:"completed"`
}

type exportSession struct {
	ID              string     `json:"id"`
	TaskID          *int64     `json:"task_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds int64      `json:"duration_seconds"`
	Status          string     `json:"status"`
	Date            string     `json:"date"`
}

type exportLog struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    *int64    `json:"task_id"`
	Date      string    `json:"date"`
}

type exportReflection struct {
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Export writes every record as one indented JSON document.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	tasks, err := s.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return err
	}
	sessions, err := s.ListSessionRecords(ctx, SessionFilter{})
	if err != nil {
		return err
	}
	logs, err := s.ListLogs(ctx, LogFilter{})
	if err != nil {
		return err
	}
	reflections, err := s.ListReflections(ctx)
	if err != nil {
		return err
	}

	doc := document{
		Version:     exportVersion,
		ExportedAt:  time.Now().UTC(),
		Tasks:       make([]exportTask, 0, len(tasks)),
		Sessions:    make([]exportSession, 0, len(sessions)),
		Logs:        make([]exportLog, 0, len(logs)),
		Reflections: make([]exportReflection, 0, len(reflections)),
	}
	// Oldest first, so a re-import assigns nothing out of order.
	for i := len(tasks) - 1; i >= 0; i-- {
		t := tasks[i]
		doc.Tasks = append(doc.Tasks, exportTask{
			ID:             t.ID,
			Description:    t.Description,
			CreatedAt:      t.CreatedAt,
			Estimate:       t.Estimate,
			Quadrant:       int(t.Quadrant),
			CompletedAt:    t.CompletedAt,
			ActualSessions: t.ActualSessions,
			Completed:      t.Completed,
		})
	}
	for _, r := range sessions {
		doc.Sessions = append(doc.Sessions, exportSession{
			ID:              r.ID,
			TaskID:          r.TaskID,
			StartedAt:       r.StartedAt,
			EndedAt:         r.EndedAt,
			DurationSeconds: int64(r.Duration / time.Second),
			Status:          string(r.Status),
			Date:            string(r.Date),
		})
	}
	for _, l := range logs {
		doc.Logs = append(doc.Logs, exportLog{
			ID:        l.ID,
			Content:   l.Content,
			Timestamp: l.Timestamp,
			TaskID:    l.TaskID,
			Date:      string(l.Date),
		})
	}
	for _, r := range reflections {
		doc.Reflections = append(doc.Reflections, exportReflection{
			Date:      string(r.Date),
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Import loads a document produced by Export into an empty store. The
// document is validated against the export schema first, and task session
// counters are recomputed from the imported session records.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(exportSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate import: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid import document: %s", strings.Join(msgs, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse import: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM tasks) + (SELECT COUNT(*) FROM sessions) +
			        (SELECT COUNT(*) FROM logs) + (SELECT COUNT(*) FROM reflections)`,
		).Scan(&existing)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if existing > 0 {
			return ErrNotEmpty
		}

		for _, t := range doc.Tasks {
			completed := 0
			if t.Completed {
				completed = 1
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (id, description, created_at, estimate, quadrant, completed_at, completed)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.Description, formatTime(t.CreatedAt), t.Estimate, t.Quadrant,
				formatNullTime(t.CompletedAt), completed,
			); err != nil {
				return writeErr("import task", err)
			}
		}
		for _, r := range doc.Sessions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sessions (id, task_id, started_at, ended_at, duration_seconds, status, date)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ID, nullInt(r.TaskID), formatTime(r.StartedAt), formatNullTime(r.EndedAt),
				r.DurationSeconds, r.Status, r.Date,
			); err != nil {
				return writeErr("import session", err)
			}
		}
		for _, l := range doc.Logs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO logs (id, content, timestamp, task_id, date) VALUES (?, ?, ?, ?, ?)`,
				l.ID, l.Content, formatTime(l.Timestamp), nullInt(l.TaskID), l.Date,
			); err != nil {
				return writeErr("import log", err)
			}
		}
		for _, ref := range doc.Reflections {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reflections (date, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
				ref.Date, ref.Content, formatTime(ref.CreatedAt), formatTime(ref.UpdatedAt),
			); err != nil {
				return writeErr("import reflection", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET actual_sessions = (
				SELECT COUNT(*) FROM sessions
				WHERE sessions.task_id = tasks.id AND sessions.status = 'completed'
			)`,
		); err != nil {
			return writeErr("recount task sessions", err)
		}
		return nil
	})
}
