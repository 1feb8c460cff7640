// Package journal records free-form log entries and one reflection per day.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

// DefaultRecent is the number of entries Recent returns when n is not positive.
const DefaultRecent = 10

// Gateway is the subset of the storage gateway the journal needs.
type Gateway interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	CreateLog(ctx context.Context, content string, taskID *int64, at time.Time) (*store.LogEntry, error)
	ListLogs(ctx context.Context, f store.LogFilter) ([]store.LogEntry, error)
	UpsertReflection(ctx context.Context, date store.Date, content string, at time.Time) (*store.Reflection, error)
	GetReflection(ctx context.Context, date store.Date) (*store.Reflection, error)
	ListReflections(ctx context.Context) ([]store.Reflection, error)
}

// Journal appends and queries log entries and reflections.
type Journal struct {
	gw  Gateway
	now func() time.Time
}

// New returns a journal backed by gw.
func New(gw Gateway) *Journal {
	return &Journal{gw: gw, now: time.Now}
}

// Append records a log entry, optionally attached to an existing task.
func (j *Journal) Append(ctx context.Context, content string, taskID *int64) (*store.LogEntry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("log entry: %w", store.ErrEmptyContent)
	}
	if taskID != nil {
		if _, err := j.gw.GetTask(ctx, *taskID); err != nil {
			return nil, err
		}
	}
	return j.gw.CreateLog(ctx, content, taskID, j.now())
}

// ByDate returns the entries written on d in chronological order.
func (j *Journal) ByDate(ctx context.Context, d store.Date) ([]store.LogEntry, error) {
	return j.gw.ListLogs(ctx, store.LogFilter{Date: d})
}

// ByTask returns the entries attached to task id in chronological order.
func (j *Journal) ByTask(ctx context.Context, id int64) ([]store.LogEntry, error) {
	return j.gw.ListLogs(ctx, store.LogFilter{TaskID: &id})
}

// Recent returns the n newest entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]store.LogEntry, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	return j.gw.ListLogs(ctx, store.LogFilter{Limit: n, Newest: true})
}

// Search returns entries containing keyword, newest first. A non-zero d
// restricts the search to that day.
func (j *Journal) Search(ctx context.Context, keyword string, d store.Date) ([]store.LogEntry, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("search keyword: %w", store.ErrEmptyContent)
	}
	return j.gw.ListLogs(ctx, store.LogFilter{Date: d, Keyword: keyword, Newest: true})
}

// Reflect writes the reflection for d, replacing any earlier one.
func (j *Journal) Reflect(ctx context.Context, d store.Date, content string) (*store.Reflection, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("reflection: %w", store.ErrEmptyContent)
	}
	if d.IsZero() {
		d = store.DateOf(j.now())
	}
	return j.gw.UpsertReflection(ctx, d, content, j.now())
}

// Reflection returns the reflection for d, or store.ErrNotFound.
func (j *Journal) Reflection(ctx context.Context, d store.Date) (*store.Reflection, error) {
	return j.gw.GetReflection(ctx, d)
}

// Reflections lists every reflection, most recent date first.
func (j *Journal) Reflections(ctx context.Context) ([]store.Reflection, error) {
	return j.gw.ListReflections(ctx)
}
