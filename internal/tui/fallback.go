package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/berth-dev/focus/internal/core"
	"github.com/berth-dev/focus/internal/store"
)

// runFallback handles non-TTY execution by printing the dashboard as plain
// text and pointing at the CLI commands.
func runFallback(ctx context.Context, a *core.App, w io.Writer) error {
	qs, err := a.Tasks.ListByQuadrant(ctx)
	if err != nil {
		return err
	}
	today, err := a.Stats.DailyCount(ctx, store.Today())
	if err != nil {
		return err
	}

	snap := a.Engine.Snapshot()
	fmt.Fprintf(w, "Session: %s (%s)\n", snap.State, snap.Clock())
	fmt.Fprintf(w, "Completed today: %d\n", today)
	for _, q := range store.Quadrants {
		fmt.Fprintf(w, "%s: %d open\n", quadrantTitles[q], len(qs[q]))
	}
	fmt.Fprintln(w, "Non-TTY environment detected.")
	fmt.Fprintln(w, "Use 'focus start' for a line-mode session.")
	return nil
}
