// report.go implements the "focus report" command.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/berth-dev/focus/internal/cleanup"
	"github.com/berth-dev/focus/internal/log"
	"github.com/berth-dev/focus/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [YYYY-MM-DD]",
	Short: "Show the weekly review for the week containing a date",
	Long: `Summarize the Monday-to-Sunday week containing the given date (this
week by default): sessions per day, tasks completed, reflections and time
focused. --write also saves it under reports/ in the data directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var reportPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove saved weekly reports",
	Long: `Remove reports saved with --write. Use --older-than to prune by age
or --keep to retain only the most recent N.`,
	Args: cobra.NoArgs,
	RunE: runReportPrune,
}

func init() {
	reportCmd.Flags().Bool("write", false, "Save the report as Markdown in the data directory")

	reportPruneCmd.Flags().Int("older-than", 0, "Remove reports for weeks older than N days")
	reportPruneCmd.Flags().Int("keep", 0, "Keep only the N most recent reports")
	reportPruneCmd.Flags().Bool("dry-run", false, "Show what would be removed without deleting")
	reportPruneCmd.MarkFlagsMutuallyExclusive("older-than", "keep")

	reportCmd.AddCommand(reportPruneCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	d, err := parseDateArg(args, 0)
	if err != nil {
		return err
	}
	write, _ := cmd.Flags().GetBool("write")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	var events []log.LogEvent
	if a.Events != nil {
		if events, err = a.Events.ReadAll(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: reading event log: %v\n", err)
			events = nil
		}
	}

	r, err := report.Generate(cmd.Context(), a.Stats, events, d)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, report.FormatReport(r))

	if write {
		path, err := report.WriteReport(a.Dir, r)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSaved %s\n", path)
	}
	return nil
}

func runReportPrune(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetInt("older-than")
	keep, _ := cmd.Flags().GetInt("keep")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	dir, err := resolveDir()
	if err != nil {
		return err
	}
	reportsDir := filepath.Join(dir, report.Dir)

	var pruned []string
	switch {
	case cmd.Flags().Changed("older-than") && olderThan >= 0:
		pruned, err = cleanup.PruneByAge(reportsDir, olderThan, dryRun)
	case cmd.Flags().Changed("keep") && keep >= 0:
		pruned, err = cleanup.PruneKeepRecent(reportsDir, keep, dryRun)
	default:
		return errors.New("pass --older-than DAYS or --keep N")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(pruned) == 0 {
		fmt.Fprintln(out, "No reports to prune.")
		return nil
	}
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	for _, name := range pruned {
		fmt.Fprintf(out, "%s %s\n", verb, name)
	}
	return nil
}
