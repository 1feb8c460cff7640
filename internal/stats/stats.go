// Package stats derives focus statistics from persisted session and task
// records. Nothing here is an independent counter: every figure is computed
// from the records, and the only state is a small cache of daily totals.
package stats

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid date range")

// maxCached bounds the daily-count cache.
const maxCached = 400

// Gateway is the read side of the storage gateway.
type Gateway interface {
	CountSessionsByDate(ctx context.Context, f store.SessionFilter) (map[store.Date]int, error)
	ListSessionRecords(ctx context.Context, f store.SessionFilter) ([]store.SessionRecord, error)
	ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error)
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	ListLogs(ctx context.Context, f store.LogFilter) ([]store.LogEntry, error)
	GetReflection(ctx context.Context, date store.Date) (*store.Reflection, error)
}

// Aggregator answers statistics queries.
type Aggregator struct {
	gw    Gateway
	now   func() time.Time
	mu    sync.Mutex
	daily map[store.Date]int
}

// New returns an aggregator reading from gw.
func New(gw Gateway) *Aggregator {
	return &Aggregator{gw: gw, now: time.Now, daily: make(map[store.Date]int)}
}

// DayCount pairs a date with its completed-session count.
type DayCount struct {
	Date  store.Date
	Count int
}

func completedOn(from, to store.Date) store.SessionFilter {
	return store.SessionFilter{From: from, To: to, Status: store.StatusCompleted}
}

// DailyCount returns the number of completed sessions on d. Days without
// records count zero.
func (a *Aggregator) DailyCount(ctx context.Context, d store.Date) (int, error) {
	a.mu.Lock()
	n, ok := a.daily[d]
	a.mu.Unlock()
	if ok {
		return n, nil
	}
	return a.RefreshDay(ctx, d)
}

// RefreshDay recomputes d's completed count from the records and caches it.
func (a *Aggregator) RefreshDay(ctx context.Context, d store.Date) (int, error) {
	counts, err := a.gw.CountSessionsByDate(ctx, completedOn(d, d))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", d, err)
	}
	n := counts[d]
	a.remember(d, n)
	return n, nil
}

func (a *Aggregator) remember(d store.Date, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.daily) >= maxCached {
		clear(a.daily)
	}
	a.daily[d] = n
}

// Invalidate drops every cached daily total.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	clear(a.daily)
	a.mu.Unlock()
}

// MonthlyCount returns the completed sessions across every day of ym.
func (a *Aggregator) MonthlyCount(ctx context.Context, ym store.YearMonth) (int, error) {
	total := 0
	for dc, err := range a.CalendarRange(ctx, ym.First(), ym.Last()) {
		if err != nil {
			return 0, err
		}
		total += dc.Count
	}
	return total, nil
}

// MonthSummary is the per-day breakdown of one month.
type MonthSummary struct {
	Month      store.YearMonth
	Days       []DayCount
	Total      int
	ActiveDays int
}

// Average returns sessions per active day.
func (m MonthSummary) Average() float64 {
	if m.ActiveDays == 0 {
		return 0
	}
	return float64(m.Total) / float64(m.ActiveDays)
}

// Month returns every day of ym with its count.
func (a *Aggregator) Month(ctx context.Context, ym store.YearMonth) (*MonthSummary, error) {
	days, err := a.collect(ctx, ym.First(), ym.Last())
	if err != nil {
		return nil, err
	}
	m := &MonthSummary{Month: ym, Days: days}
	for _, dc := range days {
		m.Total += dc.Count
		if dc.Count > 0 {
			m.ActiveDays++
		}
	}
	return m, nil
}

// Week returns the seven days starting at start.
func (a *Aggregator) Week(ctx context.Context, start store.Date) ([]DayCount, error) {
	return a.collect(ctx, start, start.AddDays(6))
}

func (a *Aggregator) collect(ctx context.Context, from, to store.Date) ([]DayCount, error) {
	var out []DayCount
	for dc, err := range a.CalendarRange(ctx, from, to) {
		if err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, nil
}

// CalendarRange yields every date from start to end inclusive, in order,
// with its completed count; dates without sessions yield zero. Nothing is
// read until the sequence is ranged over, records are fetched one month at
// a time, and each range starts afresh. An inverted range yields a single
// ErrInvalidRange.
func (a *Aggregator) CalendarRange(ctx context.Context, start, end store.Date) iter.Seq2[DayCount, error] {
	return func(yield func(DayCount, error) bool) {
		if end.Before(start) {
			yield(DayCount{}, fmt.Errorf("%w: %s after %s", ErrInvalidRange, start, end))
			return
		}
		for chunkStart := start; !chunkStart.After(end); {
			chunkEnd := store.YearMonthOf(chunkStart).Last()
			if chunkEnd.After(end) {
				chunkEnd = end
			}
			counts, err := a.gw.CountSessionsByDate(ctx, completedOn(chunkStart, chunkEnd))
			if err != nil {
				yield(DayCount{}, fmt.Errorf("count %s..%s: %w", chunkStart, chunkEnd, err))
				return
			}
			for d := chunkStart; !d.After(chunkEnd); d = d.AddDays(1) {
				if !yield(DayCount{Date: d, Count: counts[d]}, nil) {
					return
				}
			}
			chunkStart = chunkEnd.AddDays(1)
		}
	}
}

// MonthGrid lays ym out as Monday-first weeks. Cells outside the month are
// -1.
func (a *Aggregator) MonthGrid(ctx context.Context, ym store.YearMonth) ([][7]int, error) {
	days, err := a.collect(ctx, ym.First(), ym.Last())
	if err != nil {
		return nil, err
	}
	offset := (int(ym.First().Start().Weekday()) + 6) % 7
	var (
		grid [][7]int
		week [7]int
	)
	for i := range week {
		week[i] = -1
	}
	col := offset
	for _, dc := range days {
		week[col] = dc.Count
		col++
		if col == 7 {
			grid = append(grid, week)
			for i := range week {
				week[i] = -1
			}
			col = 0
		}
	}
	if col > 0 {
		grid = append(grid, week)
	}
	return grid, nil
}

// TaskDay is a task completed on a given day.
type TaskDay struct {
	Task     store.Task
	Sessions int // completed sessions for the task on that day
}

// DateDetail is the composite view of one day.
type DateDetail struct {
	Date       store.Date
	Total      int
	Completed  []TaskDay
	Open       map[store.Quadrant]int // open tasks per quadrant at the end of the day
	Logs       []store.LogEntry
	Reflection *store.Reflection // nil when none was written
}

// DateDetail builds the composite view of d: its total, the tasks completed
// that day, the quadrant backlog as it stood at the end of d, its logs and
// its reflection.
func (a *Aggregator) DateDetail(ctx context.Context, d store.Date) (*DateDetail, error) {
	records, err := a.gw.ListSessionRecords(ctx, completedOn(d, d))
	if err != nil {
		return nil, err
	}
	all, err := a.gw.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	logs, err := a.gw.ListLogs(ctx, store.LogFilter{Date: d})
	if err != nil {
		return nil, err
	}
	reflection, err := a.gw.GetReflection(ctx, d)
	if errors.Is(err, store.ErrNotFound) {
		reflection, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	perTask := make(map[int64]int)
	for _, r := range records {
		if r.TaskID != nil {
			perTask[*r.TaskID]++
		}
	}

	detail := &DateDetail{
		Date:       d,
		Total:      len(records),
		Open:       Snapshot(all, d),
		Logs:       logs,
		Reflection: reflection,
	}
	for _, t := range all {
		if t.Completed && t.CompletedAt != nil && store.DateOf(*t.CompletedAt) == d {
			detail.Completed = append(detail.Completed, TaskDay{Task: t, Sessions: perTask[t.ID]})
		}
	}
	sort.Slice(detail.Completed, func(i, j int) bool {
		return detail.Completed[i].Task.CompletedAt.Before(*detail.Completed[j].Task.CompletedAt)
	})

	a.remember(d, detail.Total)
	return detail, nil
}

// Snapshot counts the tasks open at the end of d in each quadrant. A task is
// open at d if it existed by then and was not completed, or was completed
// strictly after d.
func Snapshot(all []store.Task, d store.Date) map[store.Quadrant]int {
	out := make(map[store.Quadrant]int, len(store.Quadrants))
	for _, q := range store.Quadrants {
		out[q] = 0
	}
	for _, t := range all {
		if t.OpenAt(d) {
			out[t.Quadrant]++
		}
	}
	return out
}

// Streak holds consecutive active-day runs.
type Streak struct {
	Current int // consecutive active days ending today
	Longest int
}

// Streak computes the current and longest runs of days with at least one
// completed session.
func (a *Aggregator) Streak(ctx context.Context) (Streak, error) {
	counts, err := a.gw.CountSessionsByDate(ctx, store.SessionFilter{Status: store.StatusCompleted})
	if err != nil {
		return Streak{}, err
	}
	if len(counts) == 0 {
		return Streak{}, nil
	}

	var s Streak
	for d := store.DateOf(a.now()); counts[d] > 0; d = d.AddDays(-1) {
		s.Current++
	}

	dates := make([]store.Date, 0, len(counts))
	for d, n := range counts {
		if n > 0 {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	run := 0
	for i, d := range dates {
		if i > 0 && dates[i-1].AddDays(1) == d {
			run++
		} else {
			run = 1
		}
		s.Longest = max(s.Longest, run)
	}
	return s, nil
}

// Distribution summarizes one quadrant.
type Distribution struct {
	Pending   int
	Completed int
	Total     int
}

// Rate returns the completion percentage.
func (d Distribution) Rate() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Completed) / float64(d.Total) * 100
}

// QuadrantDistribution counts pending and completed tasks per quadrant.
func (a *Aggregator) QuadrantDistribution(ctx context.Context) (map[store.Quadrant]Distribution, error) {
	all, err := a.gw.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[store.Quadrant]Distribution, len(store.Quadrants))
	for _, q := range store.Quadrants {
		out[q] = Distribution{}
	}
	for _, t := range all {
		d := out[t.Quadrant]
		d.Total++
		if t.Completed {
			d.Completed++
		} else {
			d.Pending++
		}
		out[t.Quadrant] = d
	}
	return out, nil
}

// TaskStats is the session history of one task.
type TaskStats struct {
	Task           store.Task
	Completed      int
	Abandoned      int
	ForceCompleted int
	Focused        time.Duration // configured length of completed sessions
	Sessions       []store.SessionRecord
}

// TaskStats returns every session recorded against task id.
func (a *Aggregator) TaskStats(ctx context.Context, id int64) (*TaskStats, error) {
	t, err := a.gw.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := a.gw.ListSessionRecords(ctx, store.SessionFilter{TaskID: &id})
	if err != nil {
		return nil, err
	}
	ts := &TaskStats{Task: *t, Sessions: records}
	for _, r := range records {
		switch r.Status {
		case store.StatusCompleted:
			ts.Completed++
			ts.Focused += r.Duration
		case store.StatusAbandoned:
			ts.Abandoned++
		case store.StatusForceCompleted:
			ts.ForceCompleted++
		}
	}
	return ts, nil
}
