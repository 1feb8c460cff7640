// init.go implements the "focus init" command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/berth-dev/focus/internal/config"
	"github.com/berth-dev/focus/internal/core"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory and a default config",
	Long: `Initialize the data directory with config.yaml and an empty
database. An existing config is kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing config.yaml")
	initCmd.Flags().Int("minutes", 0, "Default session length in minutes")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	force, _ := cmd.Flags().GetBool("force")
	minutes, _ := cmd.Flags().GetInt("minutes")

	cfg := config.DefaultConfig()
	if minutes > 0 {
		cfg.Timer.DurationMinutes = minutes
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := config.Path(dir)
	if _, statErr := os.Stat(path); statErr == nil && !force {
		fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite).\n", path)
	} else {
		if err := config.WriteConfig(dir, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}

	// Opening the app creates the database.
	a, err := core.Open(dir, core.Options{Warnings: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	fmt.Fprintf(out, "Database: %s\n", a.Config.DatabasePath(dir))
	fmt.Fprintf(out, "Session length: %s\n", a.Config.SessionDuration())
	return nil
}
