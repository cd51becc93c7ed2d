// Package theme provides the Lip Gloss color palette and reusable styles
// for the admin TUI. It is a leaf package with no internal imports to
// avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Container state colors.
var (
	ColorRunning    = lipgloss.Color("#16a34a")
	ColorPaused     = lipgloss.Color("#d97706")
	ColorRestarting = lipgloss.Color("#7c3aed")
	ColorCreated    = lipgloss.Color("#2563eb")
	ColorExited     = lipgloss.Color("#4b5563")
	ColorDead       = lipgloss.Color("#dc2626")
	ColorDefault    = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#06b6d4")
)

// StateColor returns the color for a container state such as "running".
func StateColor(state string) lipgloss.Color {
	switch strings.ToLower(state) {
	case "running":
		return ColorRunning
	case "paused", "pmsuspended":
		return ColorPaused
	case "restarting":
		return ColorRestarting
	case "created":
		return ColorCreated
	case "exited", "shutoff", "shutdown":
		return ColorExited
	case "dead", "crashed", "removing":
		return ColorDead
	default:
		return ColorDefault
	}
}

// StateGlyph returns a Unicode glyph for a container state.
func StateGlyph(state string) string {
	switch strings.ToLower(state) {
	case "running":
		return "●"
	case "paused", "pmsuspended":
		return "◌"
	case "restarting":
		return "◎"
	case "created":
		return "○"
	case "exited", "shutoff", "shutdown":
		return "■"
	case "dead", "crashed":
		return "✗"
	default:
		return "·"
	}
}

// TagColor returns the color for an envelope tag: lifecycle tags take the
// color of the state they lead to.
func TagColor(tag string) lipgloss.Color {
	switch tag {
	case "ContainerStart", "ContainerRestart", "ContainerUnpause":
		return ColorRunning
	case "ContainerStop", "ContainerDie":
		return ColorExited
	case "ContainerKill", "ContainerOom", "ContainerDestroy", "CommandError":
		return ColorDead
	case "ContainerPause":
		return ColorPaused
	case "ContainerCreate", "ContainerRename":
		return ColorCreated
	case "ContainerHealthStatus":
		return ColorRestarting
	default:
		return ColorInfo
	}
}

// RuntimeColor returns the color for a StatusUpdate code.
func RuntimeColor(status int) lipgloss.Color {
	switch status {
	case 1:
		return ColorHealthy
	case 2:
		return ColorWarning
	default:
		return ColorDanger
	}
}

// UsageColor returns the color for a utilization percentage (0-100).
func UsageColor(pct float64) lipgloss.Color {
	switch {
	case pct > 80:
		return ColorDanger
	case pct > 50:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
