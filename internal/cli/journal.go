// journal.go implements the "focus log", "focus logs" and "focus reflect"
// commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berth-dev/focus/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log [text]",
	Short: "Append an entry to today's log",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLog,
}

var logsCmd = &cobra.Command{
	Use:   "logs [YYYY-MM-DD]",
	Short: "Show log entries",
	Long: `Show the log for a day (today by default), the most recent entries
with --recent, the entries of one task with --task, or search with
--search.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var reflectCmd = &cobra.Command{
	Use:   "reflect [YYYY-MM-DD] [text]",
	Short: "Write or show a daily reflection",
	Long: `With text, write the reflection for the day (today unless a date is
given first), replacing any earlier one. Without text, show it.
--list shows every reflection.`,
	RunE: runReflect,
}

func init() {
	logCmd.Flags().Int64("task", 0, "Attach the entry to a task")

	logsCmd.Flags().Int("recent", 0, "Show the N most recent entries")
	logsCmd.Flags().Int64("task", 0, "Show the entries of one task")
	logsCmd.Flags().String("search", "", "Show entries containing a keyword")

	reflectCmd.Flags().Bool("list", false, "List every reflection")
}

func runLog(cmd *cobra.Command, args []string) error {
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

	e, err := a.Journal.Append(cmd.Context(), strings.Join(args, " "), taskID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged at %s\n", formatClockTime(e.Timestamp))
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	recent, _ := cmd.Flags().GetInt("recent")
	search := mustString(cmd, "search")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	var entries []store.LogEntry
	switch {
	case cmd.Flags().Changed("task"):
		id, _ := cmd.Flags().GetInt64("task")
		entries, err = a.Journal.ByTask(ctx, id)
	case search != "":
		var d store.Date
		if len(args) == 1 {
			if d, err = store.ParseDate(args[0]); err != nil {
				return err
			}
		}
		entries, err = a.Journal.Search(ctx, search, d)
	case recent > 0:
		entries, err = a.Journal.Recent(ctx, recent)
	default:
		var d store.Date
		if d, err = parseDateArg(args, 0); err != nil {
			return err
		}
		entries, err = a.Journal.ByDate(ctx, d)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No log entries.")
		return nil
	}
	for _, e := range entries {
		printLogLine(out, e)
	}
	return nil
}

// printLogLine writes one log entry with its date, time and task.
func printLogLine(out io.Writer, e store.LogEntry) {
	task := ""
	if e.TaskID != nil {
		task = fmt.Sprintf(" [task %d]", *e.TaskID)
	}
	fmt.Fprintf(out, "  %s %s%s  %s\n", e.Date, formatClockTime(e.Timestamp), task, e.Content)
}

func runReflect(cmd *cobra.Command, args []string) error {
	list, _ := cmd.Flags().GetBool("list")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if list {
		all, err := a.Journal.Reflections(ctx)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintln(out, "No reflections.")
		}
		for _, r := range all {
			fmt.Fprintf(out, "%s  %s\n", r.Date, r.Content)
		}
		return nil
	}

	d := store.Today()
	if len(args) > 0 {
		if parsed, err := store.ParseDate(args[0]); err == nil {
			d = parsed
			args = args[1:]
		}
	}

	if len(args) == 0 {
		r, err := a.Journal.Reflection(ctx, d)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(out, "No reflection for %s.\n", d)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n%s\n", r.Date, r.Content)
		return nil
	}

	r, err := a.Journal.Reflect(ctx, d, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved reflection for %s\n", r.Date)
	return nil
}
