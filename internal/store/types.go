// Package store provides SQLite-backed persistence for tasks, focus
// sessions, log entries and daily reflections.
package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quadrant is one of the four urgency/importance buckets.
type Quadrant int

const (
	UrgentImportant    Quadrant = iota // do first
	ImportantNotUrgent                 // schedule
	UrgentNotImportant                 // delegate
	Neither                            // drop
)

// Quadrants lists every quadrant in display order.
var Quadrants = []Quadrant{UrgentImportant, ImportantNotUrgent, UrgentNotImportant, Neither}

var quadrantNames = map[Quadrant]string{
	UrgentImportant:    "urgent-important",
	ImportantNotUrgent: "important-not-urgent",
	UrgentNotImportant: "urgent-not-important",
	Neither:            "neither",
}

// Valid reports whether q is one of the four known quadrants.
func (q Quadrant) Valid() bool {
	return q >= UrgentImportant && q <= Neither
}

func (q Quadrant) String() string {
	if name, ok := quadrantNames[q]; ok {
		return name
	}
	return fmt.Sprintf("quadrant(%d)", int(q))
}

// ParseQuadrant accepts either the numeric index (0-3) or the quadrant name.
func ParseQuadrant(s string) (Quadrant, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		q := Quadrant(n)
		if !q.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidQuadrant, n)
		}
		return q, nil
	}
	for q, name := range quadrantNames {
		if name == s {
			return q, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidQuadrant, s)
}

// Task is a unit of work placed in one quadrant of the matrix.
type Task struct {
	ID             int64
	Description    string
	CreatedAt      time.Time
	Estimate       int // estimated focus sessions
	Quadrant       Quadrant
	CompletedAt    *time.Time
	ActualSessions int // completed focus sessions, maintained by the store
	Completed      bool
}

// OpenAt reports whether the task belonged to the backlog at the end of day d:
// it existed by then and was either never completed or completed after d.
func (t Task) OpenAt(d Date) bool {
	if !d.End().After(t.CreatedAt) {
		return false
	}
	if !t.Completed || t.CompletedAt == nil {
		return true
	}
	return DateOf(*t.CompletedAt).After(d)
}

// SessionStatus is the terminal outcome of a focus session.
type SessionStatus string

const (
	StatusCompleted      SessionStatus = "completed"
	StatusAbandoned      SessionStatus = "abandoned"
	StatusForceCompleted SessionStatus = "force_completed"
)

// Valid reports whether s is a known terminal status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusAbandoned, StatusForceCompleted:
		return true
	}
	return false
}

// SessionRecord is the persisted outcome of one focus session.
type SessionRecord struct {
	ID        string
	TaskID    *int64 // nil for an untethered session
	StartedAt time.Time
	EndedAt   *time.Time
	Duration  time.Duration // configured length, not elapsed time
	Status    SessionStatus
	Date      Date // aggregation key, derived from StartedAt
}

// DurationMinutes returns the configured length in whole minutes.
func (r SessionRecord) DurationMinutes() int {
	return int(r.Duration / time.Minute)
}

// LogEntry is a free-text note, optionally tied to a task.
type LogEntry struct {
	ID        int64
	Content   string
	Timestamp time.Time
	TaskID    *int64
	Date      Date
}

// Reflection is the single free-text review written for a day.
type Reflection struct {
	ID        int64
	Date      Date
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskFilter narrows ListTasks. A nil Quadrant matches every quadrant.
type TaskFilter struct {
	Quadrant *Quadrant
	OpenOnly bool
}

// SessionFilter narrows ListSessionRecords. Zero values match everything;
// From and To are inclusive.
type SessionFilter struct {
	From   Date
	To     Date
	Status SessionStatus
	TaskID *int64
}

// LogFilter narrows ListLogs. Limit <= 0 means no limit.
type LogFilter struct {
	Date    Date
	TaskID  *int64
	Keyword string
	Limit   int
	Newest  bool // order newest first instead of chronologically
}
