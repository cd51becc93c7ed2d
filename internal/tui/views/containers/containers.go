// Package containers renders the container table.
package containers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/tui/theme"
)

const (
	nameWidth  = 24
	imageWidth = 22
	stateWidth = 11
)

// Model is the list of containers last reported by the relay.
type Model struct {
	Items    []protocol.ContainerSummary
	Selected int
	Width    int
}

func New() Model {
	return Model{}
}

// SetItems replaces the list, keeping the selection on the same container
// when it is still present.
func (m *Model) SetItems(items []protocol.ContainerSummary) {
	var keep string
	if cur, ok := m.Current(); ok {
		keep = cur.ID
	}
	m.Items = items
	m.Selected = 0
	for i, c := range items {
		if c.ID == keep {
			m.Selected = i
			break
		}
	}
}

// Current returns the selected container.
func (m Model) Current() (protocol.ContainerSummary, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Items) {
		return protocol.ContainerSummary{}, false
	}
	return m.Items[m.Selected], true
}

func (m *Model) Next() {
	if len(m.Items) > 0 {
		m.Selected = (m.Selected + 1) % len(m.Items)
	}
}

func (m *Model) Prev() {
	if len(m.Items) > 0 {
		m.Selected = (m.Selected - 1 + len(m.Items)) % len(m.Items)
	}
}

// SetState updates the state of container id in place, as lifecycle events
// arrive between full list refreshes.
func (m *Model) SetState(id, state string) bool {
	for i := range m.Items {
		if m.Items[i].ID == id {
			m.Items[i].State = state
			return true
		}
	}
	return false
}

// Counts returns how many containers are running and how many are not.
func (m Model) Counts() (running, other int) {
	for _, c := range m.Items {
		if strings.EqualFold(c.State, "running") {
			running++
		} else {
			other++
		}
	}
	return running, other
}

func (m Model) View() string {
	header := theme.StyleHeader.Render(fmt.Sprintf("  %-*s %-*s %-*s %s",
		nameWidth+2, "NAME", imageWidth, "IMAGE", stateWidth, "STATE", "STATUS"))
	lines := []string{header}

	if len(m.Items) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No containers reported"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for i, c := range m.Items {
		prefix := "  "
		if i == m.Selected {
			prefix = "> "
		}
		lines = append(lines, prefix+renderRow(c, i == m.Selected))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderRow(c protocol.ContainerSummary, selected bool) string {
	color := theme.StateColor(c.State)
	glyph := lipgloss.NewStyle().Foreground(color).Render(theme.StateGlyph(c.State))

	name := pad(DisplayName(c), nameWidth)
	if selected {
		name = theme.StyleSelected.Render(name)
	}
	state := lipgloss.NewStyle().Foreground(color).Render(pad(c.State, stateWidth))

	return fmt.Sprintf("%s %s %s %s %s", glyph, name, pad(c.Image, imageWidth), state,
		theme.StyleDimmed.Render(c.Status))
}

// DisplayName returns the first name without Docker's leading slash, or a
// short ID when the container has no name.
func DisplayName(c protocol.ContainerSummary) string {
	for _, n := range c.Names {
		if n = strings.TrimPrefix(n, "/"); n != "" {
			return n
		}
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

func pad(s string, width int) string {
	if len(s) > width {
		return s[:width-1] + "…"
	}
	return s + strings.Repeat(" ", width-len(s))
}
