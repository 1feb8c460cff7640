// Package cli defines Cobra command definitions for the focus CLI.
// This file contains the root command, version flag, and shared helpers.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/berth-dev/focus/internal/config"
	"github.com/berth-dev/focus/internal/core"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/tui"
)

var (
	dataDir string
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "focus",
	Short: "Pomodoro timer with an Eisenhower task matrix",
	Long: `Focus runs timed focus sessions against tasks sorted into the four
quadrants of the priority matrix, and keeps daily statistics, a work
log and reflections.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// When no subcommand is provided, launch TUI if TTY, show help otherwise
		if !tui.IsTTY() {
			return cmd.Help()
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		return tui.Run(cmd.Context(), a)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "Data directory (default $FOCUS_HOME or ~/.focus)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reportCmd)
}

// resolveDir returns the data directory selected by --dir or the
// environment.
func resolveDir() (string, error) {
	return config.DataDir(dataDir)
}

// openApp loads the config and wires every component for one command.
func openApp(cmd *cobra.Command) (*core.App, error) {
	dir, err := resolveDir()
	if err != nil {
		return nil, err
	}
	return core.Open(dir, core.Options{Warnings: cmd.ErrOrStderr()})
}

// closeApp releases a, reporting a failed checkpoint as a warning.
func closeApp(cmd *cobra.Command, a *core.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// parseDateArg parses args[i] as a date, defaulting to today.
func parseDateArg(args []string, i int) (store.Date, error) {
	if len(args) <= i {
		return store.Today(), nil
	}
	return store.ParseDate(args[i])
}
