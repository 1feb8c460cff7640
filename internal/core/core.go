// Package core owns the lifecycle of one focus process: it opens the store,
// builds the registry, aggregator, journal and event log around it, and runs
// the single session engine.
package core

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/berth-dev/focus/internal/config"
	"github.com/berth-dev/focus/internal/journal"
	"github.com/berth-dev/focus/internal/log"
	"github.com/berth-dev/focus/internal/stats"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/tasks"
	"github.com/berth-dev/focus/internal/timer"
)

// App is the wired set of components. Build it with Open and release it
// with Close.
type App struct {
	Dir     string
	Config  *config.Config
	Store   *store.Store
	Tasks   *tasks.Registry
	Stats   *stats.Aggregator
	Journal *journal.Journal
	Events  *log.Logger // nil when the event log is disabled
	Engine  *timer.Engine
}

// Options tweaks Open.
type Options struct {
	// Warnings receives non-fatal engine warnings (os.Stderr when nil).
	Warnings io.Writer
}

// Open loads the config in dir and builds every component. An unresolved
// session left by a previous process is restored into the engine.
func Open(dir string, opts Options) (*App, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(dir, cfg, opts)
}

// OpenWithConfig builds every component from an already loaded config.
func OpenWithConfig(dir string, cfg *config.Config, opts Options) (*App, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if opts.Warnings == nil {
		opts.Warnings = os.Stderr
	}

	s, err := store.Open(cfg.DatabasePath(dir))
	if err != nil {
		return nil, err
	}

	a := &App{
		Dir:     dir,
		Config:  cfg,
		Store:   s,
		Tasks:   tasks.New(s),
		Stats:   stats.New(s),
		Journal: journal.New(s),
	}

	engineOpts := timer.Options{
		Recorder:      s,
		Linker:        a.Tasks,
		Totals:        a.Stats,
		Duration:      cfg.SessionDuration(),
		Tick:          cfg.Tick(),
		CheckpointDir: dir,
		Warnings:      opts.Warnings,
	}
	if cfg.Log.Events {
		a.Events, err = log.NewLogger(dir)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		engineOpts.Events = a.Events
	}

	a.Engine, err = timer.New(engineOpts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the engine, checkpointing any unresolved session, and closes
// the store.
func (a *App) Close() error {
	var errs []error
	if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	return errors.Join(errs...)
}
