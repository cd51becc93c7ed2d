// Package detail renders the container inspect overlay.
package detail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/tui/theme"
	"github.com/BryanFRD/admin-api/internal/tui/views/containers"
)

const (
	panelWidth = 76
	labelWidth = 10
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleSectionHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorDimmed)
)

// Model holds the container being inspected. Summary is whatever the list
// knew about it; Lines is the runtime's inspect document, indented.
type Model struct {
	Summary protocol.ContainerSummary
	Lines   []string
	Offset  int
}

// New builds the overlay from an inspect reply.
func New(summary protocol.ContainerSummary, reply protocol.ContainerInspect) Model {
	if summary.ID == "" {
		summary.ID = reply.ContainerID
	}
	return Model{Summary: summary, Lines: indentLines(reply.Container)}
}

func indentLines(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return strings.Split(string(raw), "\n")
	}
	return strings.Split(buf.String(), "\n")
}

func (m *Model) ScrollDown(n int) {
	m.Offset += n
	if limit := len(m.Lines) - 1; m.Offset > limit {
		m.Offset = max(limit, 0)
	}
}

func (m *Model) ScrollUp(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the panel within height rows.
func (m Model) View(height int) string {
	var b strings.Builder
	s := m.Summary

	b.WriteString(styleTitle.Render("Container: "+containers.DisplayName(s)) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "ID", truncate(s.ID, 64))
	if s.Image != "" {
		writeRow(&b, "Image", truncate(s.Image, 60))
	}
	if s.State != "" {
		writeRow(&b, "State", lipgloss.NewStyle().Foreground(theme.StateColor(s.State)).Render(s.State))
	}
	if s.Status != "" {
		writeRow(&b, "Status", s.Status)
	}
	if s.Created > 0 {
		writeRow(&b, "Created", formatAge(time.Unix(s.Created, 0)))
	}
	if len(s.Ports) > 0 {
		writeRow(&b, "Ports", formatPorts(s.Ports))
	}

	b.WriteString("\n")
	b.WriteString(styleSectionHeader.Render("Inspect") + "\n")

	body := height - 14
	if body < 3 {
		body = 3
	}
	if len(m.Lines) == 0 {
		b.WriteString(theme.StyleDimmed.Render("  waiting for runtime…") + "\n")
	} else {
		end := min(m.Offset+body, len(m.Lines))
		for _, line := range m.Lines[m.Offset:end] {
			b.WriteString(truncate(line, panelWidth-4) + "\n")
		}
		if end < len(m.Lines) {
			b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("  ↓ %d more", len(m.Lines)-end)) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render("j/k:scroll  s:start  x:stop  R:restart  esc:close"))

	return stylePanel.Width(panelWidth).Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

func formatPorts(ports []protocol.Port) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.PublicPort > 0 {
			parts = append(parts, fmt.Sprintf("%d→%d/%s", p.PublicPort, p.PrivatePort, p.Type))
		} else {
			parts = append(parts, fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
		}
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-1] + "…"
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh %dm ago", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}
