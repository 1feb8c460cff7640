package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite-backed persistence for every record set. Writes are
// serialized by one process-wide lock and each write runs in a single
// transaction, so readers never observe half of a multi-row change.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens the SQLite database at dbPath and creates tables if they don't
// exist. Pass ":memory:" for a throwaway database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: SQLite has a single writer anyway, and ":memory:"
	// databases are private to their connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT NOT NULL,
		created_at TEXT NOT NULL,
		estimate INTEGER NOT NULL DEFAULT 0,
		quadrant INTEGER NOT NULL,
		completed_at TEXT,
		actual_sessions INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		task_id INTEGER,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		duration_seconds INTEGER NOT NULL,
		status TEXT NOT NULL,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date, status);
	CREATE INDEX IF NOT EXISTS idx_sessions_task ON sessions(task_id, status);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		task_id INTEGER,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_date ON logs(date);

	CREATE TABLE IF NOT EXISTS reflections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// withTx runs fn inside one transaction under the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return writeErr("commit transaction", err)
	}
	return nil
}

// ==================== Tasks ====================

const taskColumns = `id, description, created_at, estimate, quadrant, completed_at, actual_sessions, completed`

// CreateTask inserts a new open task and returns it with its assigned ID.
func (s *Store) CreateTask(ctx context.Context, description string, quadrant Quadrant, estimate int) (*Task, error) {
	if !quadrant.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuadrant, int(quadrant))
	}
	now := time.Now()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (description, created_at, estimate, quadrant)
			 VALUES (?, ?, ?, ?)`,
			description, formatTime(now), estimate, int(quadrant),
		)
		if err != nil {
			return writeErr("insert task", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return writeErr("task id", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Task{
		ID:          id,
		Description: description,
		CreatedAt:   now,
		Estimate:    estimate,
		Quadrant:    quadrant,
	}, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

// UpdateTask writes the description, estimate and quadrant of t.
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	if !t.Quadrant.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidQuadrant, int(t.Quadrant))
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET description = ?, estimate = ?, quadrant = ? WHERE id = ?`,
			t.Description, t.Estimate, int(t.Quadrant), t.ID,
		)
		if err != nil {
			return writeErr("update task", err)
		}
		return requireRow(res, "task", t.ID)
	})
}

// CompleteTask marks a task completed at the given time. The session
// counter is left untouched.
func (s *Store) CompleteTask(ctx context.Context, id int64, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET completed = 1, completed_at = ? WHERE id = ?`,
			formatTime(at), id,
		)
		if err != nil {
			return writeErr("complete task", err)
		}
		return requireRow(res, "task", id)
	})
}

// DeleteTask removes a task. Session records and logs that reference it are
// kept so historical statistics stay intact.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return writeErr("delete task", err)
		}
		return requireRow(res, "task", id)
	})
}

// ListTasks returns tasks matching f, newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Quadrant != nil {
		where = append(where, "quadrant = ?")
		args = append(args, int(*f.Quadrant))
	}
	if f.OpenOnly {
		where = append(where, "completed = 0")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// ListTasksByQuadrant groups tasks by quadrant. Every quadrant has an entry,
// possibly empty.
func (s *Store) ListTasksByQuadrant(ctx context.Context, openOnly bool) (map[Quadrant][]Task, error) {
	tasks, err := s.ListTasks(ctx, TaskFilter{OpenOnly: openOnly})
	if err != nil {
		return nil, err
	}
	grouped := make(map[Quadrant][]Task, len(Quadrants))
	for _, q := range Quadrants {
		grouped[q] = []Task{}
	}
	for _, t := range tasks {
		grouped[t.Quadrant] = append(grouped[t.Quadrant], t)
	}
	return grouped, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t           Task
		createdAt   string
		completedAt sql.NullString
		quadrant    int
		completed   int
	)
	if err := row.Scan(&t.ID, &t.Description, &createdAt, &t.Estimate, &quadrant, &completedAt, &t.ActualSessions, &completed); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	t.Quadrant = Quadrant(quadrant)
	t.Completed = completed != 0
	return &t, nil
}

// ==================== Session records ====================

const sessionColumns = `id, task_id, started_at, ended_at, duration_seconds, status, date`

// CreateSessionRecord persists a terminal session record. A completed record
// linked to a task also increments that task's session counter in the same
// transaction; if the task no longer exists nothing is written and
// ErrNotFound is returned. An empty ID is filled with a fresh UUID and an
// empty Date is derived from StartedAt. A record whose ID is already stored
// is left as it is and the call succeeds without touching any counter.
func (s *Store) CreateSessionRecord(ctx context.Context, rec *SessionRecord) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("invalid session status %q", rec.Status)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Date.IsZero() {
		rec.Date = DateOf(rec.StartedAt)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, task_id, started_at, ended_at, duration_seconds, status, date)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			rec.ID, nullInt(rec.TaskID), formatTime(rec.StartedAt), formatNullTime(rec.EndedAt),
			int64(rec.Duration/time.Second), string(rec.Status), string(rec.Date),
		)
		if err != nil {
			return writeErr("insert session", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return writeErr("check rows affected", err)
		}
		if inserted == 0 {
			// Resolved already, possibly by another process.
			return nil
		}

		if rec.Status != StatusCompleted || rec.TaskID == nil {
			return nil
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET actual_sessions = actual_sessions + 1 WHERE id = ?`,
			*rec.TaskID,
		)
		if err != nil {
			return writeErr("increment task sessions", err)
		}
		return requireRow(res, "task", *rec.TaskID)
	})
}

// GetSessionRecord retrieves a session record by ID.
func (s *Store) GetSessionRecord(ctx context.Context, id string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return rec, nil
}

// ListSessionRecords returns records matching f in start order.
func (s *Store) ListSessionRecords(ctx context.Context, f SessionFilter) ([]SessionRecord, error) {
	where, args := sessionWhere(f)
	query := `SELECT ` + sessionColumns + ` FROM sessions` + where + ` ORDER BY started_at ASC, id ASC`

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// CountSessionsByDate counts records matching f grouped by date. Dates
// without records are absent from the map.
func (s *Store) CountSessionsByDate(ctx context.Context, f SessionFilter) (map[Date]int, error) {
	where, args := sessionWhere(f)
	query := `SELECT date, COUNT(*) FROM sessions` + where + ` GROUP BY date`

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Date]int)
	for rows.Next() {
		var (
			date  string
			count int
		)
		if err := rows.Scan(&date, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Date(date)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return counts, nil
}

func sessionWhere(f SessionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, string(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, string(f.To))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.TaskID != nil {
		where = append(where, "task_id = ?")
		args = append(args, *f.TaskID)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var (
		rec       SessionRecord
		taskID    sql.NullInt64
		startedAt string
		endedAt   sql.NullString
		seconds   int64
		status    string
		date      string
	)
	if err := row.Scan(&rec.ID, &taskID, &startedAt, &endedAt, &seconds, &status, &date); err != nil {
		return nil, err
	}
	var err error
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if rec.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, err
	}
	if taskID.Valid {
		id := taskID.Int64
		rec.TaskID = &id
	}
	rec.Duration = time.Duration(seconds) * time.Second
	rec.Status = SessionStatus(status)
	rec.Date = Date(date)
	return &rec, nil
}

// ==================== Logs ====================

// CreateLog appends a log entry stamped with at.
func (s *Store) CreateLog(ctx context.Context, content string, taskID *int64, at time.Time) (*LogEntry, error) {
	entry := &LogEntry{
		Content:   content,
		Timestamp: at,
		TaskID:    taskID,
		Date:      DateOf(at),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO logs (content, timestamp, task_id, date) VALUES (?, ?, ?, ?)`,
			content, formatTime(at), nullInt(taskID), string(entry.Date),
		)
		if err != nil {
			return writeErr("insert log", err)
		}
		entry.ID, err = res.LastInsertId()
		if err != nil {
			return writeErr("log id", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLogs returns log entries matching f.
func (s *Store) ListLogs(ctx context.Context, f LogFilter) ([]LogEntry, error) {
	var (
		where []string
		args  []any
	)
	if !f.Date.IsZero() {
		where = append(where, "date = ?")
		args = append(args, string(f.Date))
	}
	if f.TaskID != nil {
		where = append(where, "task_id = ?")
		args = append(args, *f.TaskID)
	}
	if f.Keyword != "" {
		where = append(where, "content LIKE ?")
		args = append(args, "%"+f.Keyword+"%")
	}

	query := `SELECT id, content, timestamp, task_id, date FROM logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Newest {
		query += " ORDER BY timestamp DESC, id DESC"
	} else {
		query += " ORDER BY timestamp ASC, id ASC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []LogEntry
	for rows.Next() {
		var (
			e      LogEntry
			ts     string
			taskID sql.NullInt64
			date   string
		)
		if err := rows.Scan(&e.ID, &e.Content, &ts, &taskID, &date); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if taskID.Valid {
			id := taskID.Int64
			e.TaskID = &id
		}
		e.Date = Date(date)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// ==================== Reflections ====================

// UpsertReflection creates or replaces the reflection for date.
func (s *Store) UpsertReflection(ctx context.Context, date Date, content string, at time.Time) (*Reflection, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reflections (date, content, created_at, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(date) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
			string(date), content, formatTime(at), formatTime(at),
		)
		if err != nil {
			return writeErr("upsert reflection", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetReflection(ctx, date)
}

// GetReflection retrieves the reflection written for date.
func (s *Store) GetReflection(ctx context.Context, date Date) (*Reflection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, date, content, created_at, updated_at FROM reflections WHERE date = ?`,
		string(date),
	)
	r, err := scanReflection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reflection %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan reflection: %w", err)
	}
	return r, nil
}

// ListReflections returns every reflection, most recent date first.
func (s *Store) ListReflections(ctx context.Context) ([]Reflection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, content, created_at, updated_at FROM reflections ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query reflections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Reflection
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanReflection(row rowScanner) (*Reflection, error) {
	var (
		r                Reflection
		date             string
		created, updated string
	)
	if err := row.Scan(&r.ID, &date, &r.Content, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	r.Date = Date(date)
	return &r, nil
}

// ==================== helpers ====================

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return writeErr("check rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
