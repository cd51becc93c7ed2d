// Package eventlog keeps the envelopes the client saw or sent, plus its
// own connection notes, and renders them as a table overlay.
package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/tui/theme"
)

// Capacity is the number of entries kept; older ones fall off the front.
const Capacity = 500

// Direction tells where an entry came from.
type Direction int

const (
	Local    Direction = iota // client-side note, no envelope
	Inbound                   // envelope from the relay
	Outbound                  // command sent to the relay
)

func (d Direction) arrow() string {
	switch d {
	case Inbound:
		return "←"
	case Outbound:
		return "→"
	default:
		return "·"
	}
}

// Entry is one row. Tag is empty for local notes.
type Entry struct {
	At        time.Time
	Direction Direction
	Tag       protocol.Tag
	Subject   string // container name or id
	Detail    string
	Fault     bool
}

// Model is the log plus its viewport. Top is the index of the first row
// shown while Follow is off.
type Model struct {
	Entries []Entry
	Top     int
	Follow  bool
	now     func() time.Time
}

func New() Model {
	return Model{Follow: true, now: time.Now}
}

// Inbound records an envelope received from the relay.
func (m *Model) Inbound(ev protocol.Event) {
	m.push(describe(ev, Inbound))
}

// Outbound records a command sent to the relay.
func (m *Model) Outbound(ev protocol.Event) {
	m.push(describe(ev, Outbound))
}

// Note records a client-side message such as a reconnect.
func (m *Model) Note(detail string) {
	m.push(Entry{Direction: Local, Detail: detail})
}

// Fault records a client-side failure tied to tag, which may be empty.
func (m *Model) Fault(tag protocol.Tag, err error) {
	m.push(Entry{Direction: Local, Tag: tag, Detail: err.Error(), Fault: true})
}

func (m *Model) push(e Entry) {
	if m.now == nil {
		m.now = time.Now
	}
	e.At = m.now()
	m.Entries = append(m.Entries, e)
	if over := len(m.Entries) - Capacity; over > 0 {
		m.Entries = append(m.Entries[:0:0], m.Entries[over:]...)
		m.Top = max(m.Top-over, 0)
	}
}

// Last returns the newest entry.
func (m Model) Last() (Entry, bool) {
	if len(m.Entries) == 0 {
		return Entry{}, false
	}
	return m.Entries[len(m.Entries)-1], true
}

// Scroll moves the viewport by delta rows; scrolling past the end turns
// Follow back on.
func (m *Model) Scroll(delta, rows int) {
	if m.Follow {
		m.Top = max(len(m.Entries)-rows, 0)
	}
	m.Top = max(m.Top+delta, 0)
	bottom := max(len(m.Entries)-rows, 0)
	m.Follow = m.Top >= bottom
	if m.Follow {
		m.Top = bottom
	}
}

func describe(ev protocol.Event, dir Direction) Entry {
	e := Entry{Direction: dir}
	if ev == nil {
		return e
	}
	e.Tag = ev.Tag()
	switch v := ev.(type) {
	case protocol.ContainerEvent:
		e.Subject = v.Name
		if e.Subject == "" {
			e.Subject = v.ContainerID
		}
		if status := v.Attributes["status"]; status != "" {
			e.Detail = status
		} else if v.Image != "" {
			e.Detail = v.Image
		}
	case protocol.ContainerInspect:
		e.Subject = v.ContainerID
		if len(v.Container) > 0 {
			e.Detail = fmt.Sprintf("%d bytes", len(v.Container))
		}
	case protocol.ContainerList:
		if dir == Inbound {
			e.Detail = fmt.Sprintf("%d containers", len(v.Containers))
		}
	case protocol.StatusUpdate:
		e.Detail = fmt.Sprintf("status %d", v.Status)
		e.Fault = v.Status != protocol.StatusOK
	case protocol.SystemStatus:
		e.Subject = v.Hostname
	case protocol.CommandError:
		e.Subject = v.ContainerID
		e.Detail = fmt.Sprintf("%s: %s", v.Command, v.Message)
		e.Fault = true
	}
	return e
}

func tagColor(e Entry) lipgloss.Color {
	if e.Fault {
		return theme.ColorDanger
	}
	if e.Tag == "" {
		return theme.ColorDimmed
	}
	return theme.TagColor(string(e.Tag))
}

// View renders the overlay in width × height cells.
func (m Model) View(width, height int) string {
	inner := max(width-4, 30)
	rows := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d/%d entries", len(m.Entries), Capacity))

	var body string
	if len(m.Entries) == 0 {
		body = theme.StyleDimmed.Render("  Nothing received yet.")
	} else {
		top := m.Top
		if m.Follow {
			top = max(len(m.Entries)-rows, 0)
		}
		end := min(top+rows, len(m.Entries))
		lines := make([]string, 0, end-top)
		for _, e := range m.Entries[top:end] {
			lines = append(lines, renderEntry(e, inner))
		}
		body = strings.Join(lines, "\n")
	}

	return lipgloss.NewStyle().
		Width(inner).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body, "", help))
}

func renderEntry(e Entry, width int) string {
	tag := string(e.Tag)
	if tag == "" {
		tag = "client"
	}
	row := fmt.Sprintf("%s %s %s %s %s",
		theme.StyleDimmed.Render(e.At.Format("15:04:05.000")),
		e.Direction.arrow(),
		lipgloss.NewStyle().Foreground(tagColor(e)).Width(22).Render(tag),
		lipgloss.NewStyle().Width(16).Render(clip(e.Subject, 16)),
		clip(e.Detail, max(width-58, 10)),
	)
	return row
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
