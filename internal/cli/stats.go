// stats.go implements the "focus stats" commands.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/focus/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show focus statistics",
	Long: `Daily detail, monthly calendar, arbitrary date ranges, streaks and
the quadrant distribution, all computed from the recorded sessions.`,
}

var statsDayCmd = &cobra.Command{
	Use:   "day [YYYY-MM-DD]",
	Short: "Show one day: sessions, completed tasks, backlog, logs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatsDay,
}

var statsMonthCmd = &cobra.Command{
	Use:   "month [YYYY-MM]",
	Short: "Show a month as a calendar grid",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatsMonth,
}

var statsCalendarCmd = &cobra.Command{
	Use:   "calendar FROM TO",
	Short: "List completed sessions for every day in a range",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatsCalendar,
}

var statsStreakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the current and longest streak of active days",
	Args:  cobra.NoArgs,
	RunE:  runStatsStreak,
}

var statsQuadrantsCmd = &cobra.Command{
	Use:   "quadrants",
	Short: "Show pending and completed tasks per quadrant",
	Args:  cobra.NoArgs,
	RunE:  runStatsQuadrants,
}

func init() {
	statsCmd.AddCommand(statsDayCmd, statsMonthCmd, statsCalendarCmd, statsStreakCmd, statsQuadrantsCmd)
}

func runStatsDay(cmd *cobra.Command, args []string) error {
	d, err := parseDateArg(args, 0)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	detail, err := a.Stats.DateDetail(cmd.Context(), d)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s (%s)\n", d, d.Start().Weekday())
	fmt.Fprintf(out, "Completed sessions: %d\n", detail.Total)

	fmt.Fprintln(out, "\nTasks completed:")
	if len(detail.Completed) == 0 {
		fmt.Fprintln(out, "  none")
	}
	for _, td := range detail.Completed {
		fmt.Fprintf(out, "  %4d  %-20s  %d sessions  %s\n", td.Task.ID, td.Task.Quadrant, td.Sessions, td.Task.Description)
	}

	fmt.Fprintln(out, "\nOpen at end of day:")
	for _, q := range store.Quadrants {
		fmt.Fprintf(out, "  %-20s  %d\n", q, detail.Open[q])
	}

	if len(detail.Logs) > 0 {
		fmt.Fprintln(out, "\nLog:")
		for _, e := range detail.Logs {
			printLogLine(out, e)
		}
	}
	if detail.Reflection != nil {
		fmt.Fprintf(out, "\nReflection:\n  %s\n", detail.Reflection.Content)
	}
	return nil
}

func runStatsMonth(cmd *cobra.Command, args []string) error {
	ym := store.YearMonthOf(store.Today())
	if len(args) == 1 {
		var err error
		if ym, err = store.ParseYearMonth(args[0]); err != nil {
			return err
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	grid, err := a.Stats.MonthGrid(ctx, ym)
	if err != nil {
		return err
	}
	summary, err := a.Stats.Month(ctx, ym)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	first := ym.First().Start()
	fmt.Fprintf(out, "%s %d\n", first.Month(), first.Year())
	printMonthGrid(out, grid)
	fmt.Fprintf(out, "\nTotal: %d sessions on %d days (%.1f per active day)\n",
		summary.Total, summary.ActiveDays, summary.Average())
	return nil
}

// printMonthGrid writes a Monday-first calendar. Each cell shows the day of
// the month and its completed count.
func printMonthGrid(out io.Writer, grid [][7]int) {
	fmt.Fprintln(out, "  Mon    Tue    Wed    Thu    Fri    Sat    Sun")
	day := 1
	for _, week := range grid {
		var b strings.Builder
		for _, n := range week {
			if n < 0 {
				b.WriteString("       ")
				continue
			}
			cell := fmt.Sprintf("%2d", day)
			if n > 0 {
				cell += fmt.Sprintf(":%-2d", n)
			} else {
				cell += " · "
			}
			b.WriteString(fmt.Sprintf(" %-6s", cell))
			day++
		}
		fmt.Fprintln(out, strings.TrimRight(b.String(), " "))
	}
}

func runStatsCalendar(cmd *cobra.Command, args []string) error {
	from, err := store.ParseDate(args[0])
	if err != nil {
		return err
	}
	to, err := store.ParseDate(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	out := cmd.OutOrStdout()
	total := 0
	for dc, err := range a.Stats.CalendarRange(cmd.Context(), from, to) {
		if err != nil {
			return err
		}
		total += dc.Count
		fmt.Fprintf(out, "%s  %s  %3d %s\n", dc.Date, dc.Date.Start().Weekday().String()[:3], dc.Count, strings.Repeat("■", min(dc.Count, 40)))
	}
	fmt.Fprintf(out, "Total: %d\n", total)
	return nil
}

func runStatsStreak(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	s, err := a.Stats.Streak(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current streak: %d days\nLongest streak: %d days\n", s.Current, s.Longest)
	return nil
}

func runStatsQuadrants(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	dist, err := a.Stats.QuadrantDistribution(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-22s %7s %9s %5s %6s\n", "quadrant", "pending", "completed", "total", "rate")
	for _, q := range store.Quadrants {
		d := dist[q]
		fmt.Fprintf(out, "%-22s %7d %9d %5d %5.0f%%\n", q, d.Pending, d.Completed, d.Total, d.Rate())
	}
	return nil
}

// formatClockTime formats a timestamp as local wall-clock time.
func formatClockTime(t time.Time) string {
	return t.Local().Format("15:04")
}
