// Package tui implements the terminal dashboard using Bubble Tea.
package tui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/berth-dev/focus/internal/config"
	"github.com/berth-dev/focus/internal/core"
	"github.com/berth-dev/focus/internal/timer"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the dashboard for a. If stdout is a TTY it runs in alternate
// screen mode alongside the engine event forwarder and the config watcher;
// otherwise it prints today's summary.
func Run(ctx context.Context, a *core.App) error {
	if !IsTTY() {
		return runFallback(ctx, a, os.Stdout)
	}

	events, unsubscribe := a.Engine.Subscribe()
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(NewModel(a), tea.WithAltScreen(), tea.WithContext(gctx))
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() == nil {
			// Killed because another member failed; report that error instead.
			return nil
		}
		return err
	})
	g.Go(func() error {
		forwardEvents(done, events, p.Send)
		return nil
	})
	g.Go(func() error {
		cw, err := newConfigWatcher(a.Dir)
		if err != nil {
			p.Send(ConfigReloadedMsg{Err: err})
			return nil
		}
		stop, cancel := context.WithCancel(gctx)
		defer cancel()
		go func() {
			select {
			case <-done:
				cancel()
			case <-stop.Done():
			}
		}()
		return cw.run(stop,
			func() { p.Send(reloadConfig(a)) },
			func(err error) { p.Send(ConfigReloadedMsg{Err: err}) },
		)
	})
	return g.Wait()
}

// forwardEvents relays engine events into the program until done closes.
func forwardEvents(done <-chan struct{}, events <-chan timer.Event, send func(tea.Msg)) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			send(EngineEventMsg{Event: ev})
		}
	}
}

// reloadConfig re-reads the config and applies the new default session
// length to the engine. A running session keeps its length.
func reloadConfig(a *core.App) tea.Msg {
	cfg, err := config.Load(a.Dir)
	if err != nil {
		return ConfigReloadedMsg{Err: err}
	}
	if err := a.Engine.SetDefaultDuration(cfg.SessionDuration()); err != nil {
		return ConfigReloadedMsg{Err: err}
	}
	return ConfigReloadedMsg{Config: cfg}
}
