package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	// Runtime is the last StatusUpdate code; -1 until one arrives.
	Runtime int
	Running int
	Other   int
	System  *protocol.SystemStatus
	Width   int
}

// New creates a status bar model.
func New() Model {
	return Model{Runtime: -1}
}

// SetCounts updates the container counts.
func (m *Model) SetCounts(running, other int) {
	m.Running = running
	m.Other = other
}

// RuntimeLabel names a StatusUpdate code.
func RuntimeLabel(code int) string {
	switch code {
	case protocol.StatusOK:
		return "runtime ok"
	case protocol.StatusUnreachable:
		return "runtime unreachable"
	case protocol.StatusError:
		return "runtime error"
	default:
		return "runtime ?"
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	rtColor := theme.ColorDimmed
	if m.Runtime >= 0 {
		rtColor = theme.RuntimeColor(m.Runtime)
	}
	rtStr := lipgloss.NewStyle().Foreground(rtColor).Render(RuntimeLabel(m.Runtime))

	counts := fmt.Sprintf("%d running  %d stopped", m.Running, m.Other)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + rtStr + sep + counts
	if s := m.System; s != nil {
		cpu := lipgloss.NewStyle().Foreground(theme.UsageColor(s.CPUPercent)).Render(fmt.Sprintf("cpu %.0f%%", s.CPUPercent))
		mem := lipgloss.NewStyle().Foreground(theme.UsageColor(s.MemoryPercent)).Render(fmt.Sprintf("mem %.0f%%", s.MemoryPercent))
		content += sep + s.Hostname + " " + cpu + " " + mem + fmt.Sprintf(" load %.2f", s.Load1)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
