// transfer.go implements the "focus export" and "focus import" commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write every task, session, log entry and reflection as JSON",
	Long:  `Export the whole store as one JSON document. Use - for stdout.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a JSON export into an empty store",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if args[0] == "-" {
		return a.Store.Export(cmd.Context(), cmd.OutOrStdout())
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := a.Store.Export(cmd.Context(), f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if err := a.Store.Import(cmd.Context(), f); err != nil {
		return err
	}
	a.Stats.Invalidate()
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
	return printDrift(cmd, a, cmd.ErrOrStderr())
}
