// task.go implements the "focus task" commands for the priority matrix.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/tasks"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks in the priority matrix",
	Long: `Add, list, edit, move, complete and remove tasks. Quadrants are
given by index (0-3) or name: urgent-important, important-not-urgent,
urgent-not-important, neither.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [description]",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks grouped by quadrant",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit an open task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move [id] [quadrant]",
	Short: "Move an open task to another quadrant",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskMove,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [id]",
	Short: "Mark a task complete",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a task (its session history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a task and its session history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

func init() {
	taskAddCmd.Flags().StringP("quadrant", "q", "urgent-important", "Quadrant index or name")
	taskAddCmd.Flags().IntP("estimate", "e", 1, "Estimated focus sessions")

	taskListCmd.Flags().Bool("all", false, "Include completed tasks")
	taskListCmd.Flags().StringP("quadrant", "q", "", "Only this quadrant")

	taskEditCmd.Flags().String("desc", "", "New description")
	taskEditCmd.Flags().IntP("estimate", "e", 0, "New estimate")
	taskEditCmd.Flags().StringP("quadrant", "q", "", "New quadrant")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskEditCmd, taskMoveCmd, taskDoneCmd, taskRmCmd, taskShowCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	q, err := store.ParseQuadrant(mustString(cmd, "quadrant"))
	if err != nil {
		return err
	}
	estimate, _ := cmd.Flags().GetInt("estimate")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	t, err := a.Tasks.Create(cmd.Context(), strings.Join(args, " "), q, estimate)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added task %d to %s: %s\n", t.ID, t.Quadrant, t.Description)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	f := store.TaskFilter{OpenOnly: !all}
	if s := mustString(cmd, "quadrant"); s != "" {
		q, err := store.ParseQuadrant(s)
		if err != nil {
			return err
		}
		f.Quadrant = &q
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	list, err := a.Tasks.List(cmd.Context(), f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No tasks. Add one with: focus task add \"description\"")
		return nil
	}

	byQuadrant := make(map[store.Quadrant][]store.Task)
	for _, t := range list {
		byQuadrant[t.Quadrant] = append(byQuadrant[t.Quadrant], t)
	}
	now := time.Now()
	for _, q := range store.Quadrants {
		ts := byQuadrant[q]
		if len(ts) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s (%d)\n", q, len(ts))
		for _, t := range ts {
			printTaskLine(out, t, now)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// printTaskLine writes one task row: id, done mark, sessions, age and
// description.
func printTaskLine(out io.Writer, t store.Task, now time.Time) {
	mark := " "
	if t.Completed {
		mark = "✓"
	}
	age := units.HumanDuration(now.Sub(t.CreatedAt)) + " old"
	fmt.Fprintf(out, "  %4d %s  %2d/%-2d  %-16s  %s\n", t.ID, mark, t.ActualSessions, t.Estimate, age, t.Description)
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	var u tasks.Update
	if cmd.Flags().Changed("desc") {
		d := mustString(cmd, "desc")
		u.Description = &d
	}
	if cmd.Flags().Changed("estimate") {
		e, _ := cmd.Flags().GetInt("estimate")
		u.Estimate = &e
	}
	if cmd.Flags().Changed("quadrant") {
		q, err := store.ParseQuadrant(mustString(cmd, "quadrant"))
		if err != nil {
			return err
		}
		u.Quadrant = &q
	}
	if u == (tasks.Update{}) {
		return errors.New("nothing to change; pass --desc, --estimate or --quadrant")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	t, err := a.Tasks.Update(cmd.Context(), id, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d: %s [%s, estimate %d]\n", t.ID, t.Description, t.Quadrant, t.Estimate)
	return nil
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	q, err := store.ParseQuadrant(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	t, err := a.Tasks.Reassign(cmd.Context(), id, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now in %s\n", t.ID, t.Quadrant)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	t, err := a.Tasks.MarkComplete(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed task %d: %s (%d/%d sessions, %d days)\n",
		t.ID, t.Description, t.ActualSessions, t.Estimate, tasks.DurationDays(*t, time.Now()))
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if err := a.Tasks.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ts, err := a.Stats.TaskStats(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	t := ts.Task
	status := "open"
	if t.Completed {
		status = "completed " + t.CompletedAt.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(out, "Task %d: %s\n", t.ID, t.Description)
	fmt.Fprintf(out, "Quadrant: %s\n", t.Quadrant)
	fmt.Fprintf(out, "Status:   %s\n", status)
	fmt.Fprintf(out, "Created:  %s (%d days)\n", t.CreatedAt.Local().Format("2006-01-02 15:04"), tasks.DurationDays(t, time.Now()))
	fmt.Fprintf(out, "Sessions: %d/%d completed, %d abandoned, %d force completed\n",
		ts.Completed, t.Estimate, ts.Abandoned, ts.ForceCompleted)
	fmt.Fprintf(out, "Focused:  %s\n", ts.Focused)

	entries, err := a.Journal.ByTask(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		fmt.Fprintln(out, "\nLog:")
		for _, e := range entries {
			printLogLine(out, e)
		}
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
