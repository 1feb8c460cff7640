// Package report builds the weekly review: sessions per day, tasks finished,
// reflections written and time spent focused.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/berth-dev/focus/internal/log"
	"github.com/berth-dev/focus/internal/stats"
	"github.com/berth-dev/focus/internal/store"
)

// Dir is the reports directory inside the data directory.
const Dir = "reports"

// Source is the part of the statistics aggregator a report reads.
type Source interface {
	Week(ctx context.Context, start store.Date) ([]stats.DayCount, error)
	DateDetail(ctx context.Context, d store.Date) (*stats.DateDetail, error)
	Streak(ctx context.Context) (stats.Streak, error)
}

// Report holds the aggregated figures for one Monday-to-Sunday week.
type Report struct {
	From        store.Date
	To          store.Date
	Days        []stats.DayCount
	Total       int
	ActiveDays  int
	Completed   []stats.TaskDay
	Reflections []store.Reflection
	Streak      stats.Streak

	// Taken from the event log; zero when event logging is disabled.
	Focused     time.Duration
	Abandoned   int
	Interrupted int
}

// WeekStart returns the Monday on or before d.
func WeekStart(d store.Date) store.Date {
	offset := (int(d.Start().Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// Generate gathers the week containing d. events may be nil.
func Generate(ctx context.Context, src Source, events []log.LogEvent, d store.Date) (*Report, error) {
	from := WeekStart(d)
	r := &Report{From: from, To: from.AddDays(6)}

	days, err := src.Week(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("counting week of %s: %w", from, err)
	}
	r.Days = days
	for _, dc := range days {
		r.Total += dc.Count
		if dc.Count > 0 {
			r.ActiveDays++
		}

		detail, err := src.DateDetail(ctx, dc.Date)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dc.Date, err)
		}
		r.Completed = append(r.Completed, detail.Completed...)
		if detail.Reflection != nil {
			r.Reflections = append(r.Reflections, *detail.Reflection)
		}
	}

	if r.Streak, err = src.Streak(ctx); err != nil {
		return nil, err
	}

	r.Focused, r.Abandoned, r.Interrupted = summarizeEvents(events, r.From, r.To)
	return r, nil
}

// summarizeEvents totals the configured length of completed sessions and
// counts abandoned and interrupted ones between from and to.
func summarizeEvents(events []log.LogEvent, from, to store.Date) (focused time.Duration, abandoned, interrupted int) {
	for _, e := range events {
		d := store.DateOf(e.Time)
		if d.Before(from) || d.After(to) {
			continue
		}
		switch e.Event {
		case log.EventSessionCompleted:
			focused += time.Duration(e.DurationMs) * time.Millisecond
		case log.EventSessionAbandoned:
			abandoned++
		case log.EventSessionInterrupted:
			interrupted++
		}
	}
	return focused, abandoned, interrupted
}

// FormatReport renders r as Markdown, readable in a terminal as is.
func FormatReport(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Week of %s\n\n", r.From)
	fmt.Fprintf(&b, "%s to %s\n\n", r.From, r.To)

	b.WriteString("## Sessions\n\n")
	for _, dc := range r.Days {
		fmt.Fprintf(&b, "- %s %s: %d\n", dc.Date.Start().Weekday().String()[:3], dc.Date, dc.Count)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total:       %d on %d days\n", r.Total, r.ActiveDays)
	if r.Focused > 0 {
		fmt.Fprintf(&b, "Focused:     %s\n", formatDuration(r.Focused))
	}
	if r.Abandoned > 0 {
		fmt.Fprintf(&b, "Abandoned:   %d\n", r.Abandoned)
	}
	if r.Interrupted > 0 {
		fmt.Fprintf(&b, "Interrupted: %d\n", r.Interrupted)
	}
	fmt.Fprintf(&b, "Streak:      %d days (longest %d)\n", r.Streak.Current, r.Streak.Longest)

	if len(r.Completed) > 0 {
		b.WriteString("\n## Tasks completed\n\n")
		for _, td := range r.Completed {
			fmt.Fprintf(&b, "- %s (%s, %d sessions)\n", td.Task.Description, td.Task.Quadrant, td.Task.ActualSessions)
		}
	}

	if len(r.Reflections) > 0 {
		b.WriteString("\n## Reflections\n\n")
		for _, ref := range r.Reflections {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", ref.Date, strings.TrimSpace(ref.Content))
		}
	}

	return b.String()
}

// WriteReport writes r to {dataDir}/reports/week-{from}.md and returns the
// path. Creates the reports directory if it does not exist.
func WriteReport(dataDir string, r *Report) (string, error) {
	dir := filepath.Join(dataDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("week-%s.md", r.From))
	if err := os.WriteFile(path, []byte(FormatReport(r)), 0644); err != nil {
		return "", fmt.Errorf("writing report file: %w", err)
	}
	return path, nil
}

// formatDuration produces a human-readable duration string such as "25m"
// or "3h 20m". Sub-minute durations are shown in seconds.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
