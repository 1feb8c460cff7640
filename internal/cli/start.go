// start.go implements the "focus start", "focus recover" and "focus status"
// commands that drive the session engine from the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/berth-dev/focus/internal/core"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/timer"
	"github.com/berth-dev/focus/internal/ui"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a focus session in the foreground",
	Long: `Start a focus session and show a countdown until it completes.
Ctrl+C abandons the session, or force-completes it with --force.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Resolve a session interrupted by an earlier exit",
	Long: `A session still running when focus exited is restored as
interrupted. Resume it, complete it or abandon it. A session record
that could not be saved is retried first.`,
	Args: cobra.NoArgs,
	RunE: runRecover,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session engine state and today's count",
	Long: `Show the session engine state, today's completed sessions and the
streak. Tasks whose session counter disagrees with their recorded sessions
are listed as drift.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// interruptSignals end a foreground session.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func init() {
	startCmd.Flags().Int64("task", 0, "Task id to focus on")
	startCmd.Flags().Int("minutes", 0, "Session length in minutes (default from config)")
	startCmd.Flags().Bool("force", false, "Force-complete instead of abandoning on Ctrl+C")

	recoverCmd.Flags().Bool("resume", false, "Resume the countdown in the foreground")
	recoverCmd.Flags().Bool("complete", false, "Force-complete the interrupted session")
	recoverCmd.Flags().Bool("abandon", false, "Abandon the interrupted session")
	recoverCmd.Flags().Bool("force", false, "With --resume, force-complete instead of abandoning on Ctrl+C")
	recoverCmd.MarkFlagsMutuallyExclusive("resume", "complete", "abandon")
}

func runStart(cmd *cobra.Command, args []string) error {
	minutes, _ := cmd.Flags().GetInt("minutes")
	force, _ := cmd.Flags().GetBool("force")
	if minutes < 0 {
		return fmt.Errorf("%w: %d minutes", timer.ErrInvalidDuration, minutes)
	}
	var taskID *int64
	if cmd.Flags().Changed("task") {
		id, _ := cmd.Flags().GetInt64("task")
		taskID = &id
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	label := "untethered session"
	if taskID != nil {
		t, err := a.Tasks.Get(ctx, *taskID)
		if err != nil {
			return err
		}
		label = t.Description
	}

	events, unsubscribe := a.Engine.Subscribe()
	defer unsubscribe()

	err = a.Engine.Start(ctx, taskID, time.Duration(minutes)*time.Minute)
	if errors.Is(err, timer.ErrInvalidState) && a.Engine.Snapshot().State == timer.Interrupted {
		return errors.New("an interrupted session is waiting; run 'focus recover --resume', '--complete' or '--abandon'")
	}
	if err != nil {
		return err
	}

	snap := a.Engine.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Focus: %s (%s)\n", label, snap.Duration)
	return followSession(ctx, cmd, a, events, label, force)
}

func runRecover(cmd *cobra.Command, args []string) error {
	resume, _ := cmd.Flags().GetBool("resume")
	complete, _ := cmd.Flags().GetBool("complete")
	abandon, _ := cmd.Flags().GetBool("abandon")
	force, _ := cmd.Flags().GetBool("force")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	snap := a.Engine.Snapshot()

	if snap.Pending != nil {
		if err := a.Engine.RetryPending(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s session from %s\n", snap.Pending.Status, snap.Pending.StartedAt.Local().Format("2006-01-02 15:04"))
		return nil
	}
	if snap.State != timer.Interrupted {
		fmt.Fprintln(out, "Nothing to recover.")
		return nil
	}

	label := "untethered session"
	if snap.TaskID != nil {
		if t, err := a.Tasks.Get(ctx, *snap.TaskID); err == nil {
			label = t.Description
		}
	}

	switch {
	case complete:
		if err := a.Engine.ForceComplete(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		fmt.Fprintf(out, "Force-completed: %s\n", label)
	case abandon:
		if err := a.Engine.Stop(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Abandoned: %s\n", label)
	case resume:
		events, unsubscribe := a.Engine.Subscribe()
		defer unsubscribe()
		if err := a.Engine.Resume(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Resuming: %s (%s left)\n", label, snap.Clock())
		return followSession(ctx, cmd, a, events, label, force)
	default:
		fmt.Fprintf(out, "Interrupted session: %s\n", label)
		fmt.Fprintf(out, "Started %s, %s of %s left\n",
			snap.StartedAt.Local().Format("2006-01-02 15:04"), snap.Clock(), snap.Duration)
		fmt.Fprintln(out, "Run 'focus recover --resume', '--complete' or '--abandon'.")
	}
	return nil
}

// followSession renders the countdown until the session is resolved. An
// interrupt signal abandons the session, or force-completes it when force
// is set.
func followSession(ctx context.Context, cmd *cobra.Command, a *core.App, events <-chan timer.Event, label string, force bool) error {
	out := cmd.OutOrStdout()
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	cd := ui.NewCountdownTo(out, label, isTTY)
	defer cd.Finish()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, interruptSignals...)
	defer signal.Stop(sigs)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			cd.Handle(ev)
			switch ev.Kind {
			case timer.EventResolved:
				return nil
			case timer.EventPersistFailed:
				return ev.Err
			}

		case <-sigs:
			cd.Finish()
			var err error
			if force {
				err = a.Engine.ForceComplete(ctx)
			} else {
				err = a.Engine.Stop(ctx)
			}
			// The outcome, including storage failures, arrives as an event.
			// An invalid state means the session resolved on its own first.
			if errors.Is(err, timer.ErrClosed) {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	snap := a.Engine.Snapshot()

	fmt.Fprintf(out, "Engine:  %s\n", snap.State)
	if snap.State.Active() {
		fmt.Fprintf(out, "Left:    %s of %s (%.0f%%)\n", snap.Clock(), snap.Duration, snap.Progress())
	}
	if snap.TaskID != nil {
		fmt.Fprintf(out, "Task:    %d\n", *snap.TaskID)
	}
	if snap.Pending != nil {
		fmt.Fprintf(out, "Unsaved: %s session, run 'focus recover' to retry\n", snap.Pending.Status)
	}
	fmt.Fprintf(out, "Default: %s sessions\n", a.Engine.DefaultSessionDuration())

	today, err := a.Stats.DailyCount(ctx, store.Today())
	if err != nil {
		return err
	}
	streak, err := a.Stats.Streak(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Today:   %d completed\n", today)
	fmt.Fprintf(out, "Streak:  %d days (longest %d)\n", streak.Current, streak.Longest)
	return printDrift(cmd, a, out)
}

// printDrift reports every task whose session counter disagrees with its
// completed session records. Nothing is printed when they all agree.
func printDrift(cmd *cobra.Command, a *core.App, out io.Writer) error {
	drift, err := a.Tasks.Audit(cmd.Context())
	if err != nil {
		return err
	}
	for _, d := range drift {
		fmt.Fprintf(out, "Drift:   task %d counts %d sessions, records show %d\n", d.TaskID, d.Stored, d.Recorded)
	}
	return nil
}
