// Package monitor renders a periodic console status table over every
// registered bot.
package monitor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/coder/quartz"

	"cardfarm/internal/bot"
)

// DefaultRefreshInterval is how often the table is redrawn.
const DefaultRefreshInterval = 30 * time.Second

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true)

	farmingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// Monitor periodically writes a status table for all bots in the registry.
type Monitor struct {
	registry *bot.Registry
	out      io.Writer
	clock    quartz.Clock
	interval time.Duration
}

// New creates a monitor over the registry writing to out.
func New(registry *bot.Registry, out io.Writer, clock quartz.Clock, interval time.Duration) *Monitor {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Monitor{
		registry: registry,
		out:      out,
		clock:    clock,
		interval: interval,
	}
}

// Run redraws the table every interval until the context ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintln(m.out, m.Render())
		}
	}
}

// Render builds the current status table.
func (m *Monitor) Render() string {
	bots := m.registry.Snapshot()

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf(" %-16s %-10s %8s %8s %8s ",
		"BOT", "STATE", "FARMING", "QUEUED", "CARDS")))
	sb.WriteByte('\n')

	for _, b := range bots {
		st := b.Status()
		line := fmt.Sprintf(" %-16s %-10s %8d %8d %8d ",
			st.Name, stateName(st), st.CurrentGames, st.GamesToFarm, st.CardsRemaining)
		sb.WriteString(stateStyle(st).Render(line))
		sb.WriteByte('\n')
	}

	sb.WriteString(idleStyle.Render(fmt.Sprintf(" %d bots registered ", len(bots))))
	return sb.String()
}

func stateName(st bot.Status) string {
	switch {
	case st.Paused:
		return "paused"
	case st.Farming:
		return "farming"
	case st.LoggedOn:
		return "idle"
	case st.Running:
		return "connecting"
	default:
		return "offline"
	}
}

func stateStyle(st bot.Status) lipgloss.Style {
	switch {
	case st.Paused:
		return pausedStyle
	case st.Farming:
		return farmingStyle
	case !st.Running:
		return offlineStyle
	default:
		return idleStyle
	}
}
