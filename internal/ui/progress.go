// Package ui provides terminal UI components for focus.
// This file implements the countdown line shown by `focus start`.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/berth-dev/focus/internal/timer"
)

const barWidth = 24

// Countdown renders engine events as a live-updating countdown line.
type Countdown struct {
	mu          sync.Mutex
	out         io.Writer
	label       string
	isTTY       bool
	drawn       bool // a TTY line is on screen without a trailing newline
	lastPrinted timer.State
	printedAny  bool
	lastMinute  int64 // last remaining minute printed (non-TTY)
}

// NewCountdown creates a Countdown on stdout for the given session label.
func NewCountdown(label string) *Countdown {
	return NewCountdownTo(os.Stdout, label, term.IsTerminal(int(os.Stdout.Fd())))
}

// NewCountdownTo creates a Countdown writing to w. tty selects in-place
// redraws over one line per change.
func NewCountdownTo(w io.Writer, label string, tty bool) *Countdown {
	return &Countdown{out: w, label: label, isTTY: tty, lastMinute: -1}
}

// Handle renders one engine event.
func (c *Countdown) Handle(ev timer.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case timer.EventTick:
		c.render(ev.State, ev.Remaining, ev.Duration)
	case timer.EventStateChanged:
		if ev.State == timer.Ready || ev.State.Terminal() {
			return
		}
		c.render(ev.State, ev.Remaining, ev.Duration)
	case timer.EventResolved:
		c.endLine()
		c.summary(ev)
	case timer.EventPersistFailed:
		c.endLine()
		fmt.Fprintf(c.out, "\033[31m❌ Failed to save session: %v\033[0m\n", ev.Err)
		fmt.Fprintln(c.out, "   It will be retried before the next session starts.")
	}
}

// Finish moves the cursor below the countdown line.
func (c *Countdown) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLine()
}

func (c *Countdown) endLine() {
	if c.drawn {
		fmt.Fprint(c.out, "\n")
		c.drawn = false
	}
}

// render draws or redraws the countdown.
func (c *Countdown) render(state timer.State, remaining, total time.Duration) {
	if !c.isTTY {
		c.renderPlain(state, remaining)
		return
	}
	c.renderTTY(state, remaining, total)
}

// renderTTY redraws the countdown in place.
func (c *Countdown) renderTTY(state timer.State, remaining, total time.Duration) {
	var buf strings.Builder
	buf.WriteString("\r\033[2K")
	buf.WriteString(formatLine(c.label, state, remaining, total))
	fmt.Fprint(c.out, buf.String())
	c.drawn = true
}

// renderPlain writes non-TTY output (for CI/piping).
// Prints on state transitions and once per remaining minute.
func (c *Countdown) renderPlain(state timer.State, remaining time.Duration) {
	minute := int64(remaining / time.Minute)
	if c.printedAny && c.lastPrinted == state && (state != timer.Running || minute == c.lastMinute) {
		return
	}
	fmt.Fprintf(c.out, "[%s] %s - %s remaining\n", strings.ToUpper(state.String()), c.label, timer.FormatClock(remaining))
	c.printedAny = true
	c.lastPrinted = state
	c.lastMinute = minute
}

func (c *Countdown) summary(ev timer.Event) {
	rec := ev.Record
	if rec == nil {
		return
	}
	fmt.Fprintf(c.out, "%s Session %s", statusIcon(ev.State), strings.ReplaceAll(string(rec.Status), "_", " "))
	if rec.EndedAt != nil {
		fmt.Fprintf(c.out, " after %s", formatDuration(rec.EndedAt.Sub(rec.StartedAt)))
	}
	if ev.DayCount >= 0 {
		fmt.Fprintf(c.out, " • %d completed today", ev.DayCount)
	}
	fmt.Fprintln(c.out)
	if ev.Err != nil {
		fmt.Fprintf(c.out, "\033[33mWarning: %v\033[0m\n", ev.Err)
	}
}

// formatLine formats the countdown with a status icon and progress bar.
func formatLine(label string, state timer.State, remaining, total time.Duration) string {
	pct := 0.0
	if total > 0 {
		pct = float64(total-remaining) / float64(total)
	}
	pct = min(max(pct, 0), 1)
	filled := int(pct * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	if len(label) > 40 {
		label = label[:37] + "..."
	}
	return fmt.Sprintf("%s %s  %s  %s %3.0f%%  %s",
		statusIcon(state), label, timer.FormatClock(remaining), bar, pct*100, stateDetail(state))
}

// statusIcon returns the icon for an engine state.
func statusIcon(state timer.State) string {
	switch state {
	case timer.Completed:
		return "\033[32m✅\033[0m" // green checkmark
	case timer.ForceCompleted:
		return "\033[32m✔\033[0m" // green tick
	case timer.Running:
		return "\033[33m⏳\033[0m" // yellow hourglass
	case timer.Abandoned:
		return "\033[31m❌\033[0m" // red X
	case timer.Paused, timer.Interrupted:
		return "\033[90m⏸\033[0m" // dim pause
	default:
		return "\033[90m○\033[0m" // dim circle
	}
}

// stateDetail returns the right-side hint for a state.
func stateDetail(state timer.State) string {
	switch state {
	case timer.Paused:
		return "\033[90m[paused]\033[0m"
	case timer.Interrupted:
		return "\033[90m[interrupted]\033[0m"
	default:
		return ""
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", h, m, s)
}
