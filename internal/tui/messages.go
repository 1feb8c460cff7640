package tui

import (
	"github.com/berth-dev/focus/internal/config"
	"github.com/berth-dev/focus/internal/stats"
	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/timer"
)

// ============================================================================
// Engine Messages
// ============================================================================

// EngineEventMsg wraps one session engine notification.
type EngineEventMsg struct {
	Event timer.Event
}

// ActionDoneMsg reports the outcome of an engine command run off the
// update loop.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// ============================================================================
// Data Messages
// ============================================================================

// DataLoadedMsg carries the dashboard's task and statistics data.
type DataLoadedMsg struct {
	Quadrants map[store.Quadrant][]store.Task
	Today     int
	Streak    stats.Streak
	Err       error
}

// ConfigReloadedMsg is sent after config.yaml changed on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// CtrlCResetMsg clears the pending Ctrl+C confirmation.
type CtrlCResetMsg struct{}
