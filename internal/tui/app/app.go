// Package app is the root Bubble Tea model of the admin TUI.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/tui/client"
	"github.com/BryanFRD/admin-api/internal/tui/theme"
	"github.com/BryanFRD/admin-api/internal/tui/views/containers"
	"github.com/BryanFRD/admin-api/internal/tui/views/detail"
	"github.com/BryanFRD/admin-api/internal/tui/views/eventlog"
	"github.com/BryanFRD/admin-api/internal/tui/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayLog
)

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	list      containers.Model
	statusBar status.Model
	log       eventlog.Model
	detail    detail.Model
	overlay   Overlay

	connected bool
	// inspecting is the container an inspect request is outstanding for.
	inspecting string
}

// New creates the root model.
func New(ws *client.WSClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		list:      containers.New(),
		statusBar: status.New(),
		log:       eventlog.New(),
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx, 0)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.ConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.log.Note("connected")
		return m, tea.Batch(
			m.ws.ReadLoop(),
			m.send(protocol.StatusQuery{}),
			m.send(protocol.ContainerList{}),
		)

	case client.DialFailedMsg:
		m.log.Note(fmt.Sprintf("dial failed: %v (retry in %v)", msg.Err, msg.Retry))
		return m, m.ws.Listen(m.ctx, msg.Retry)

	case client.DisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.log.Note(fmt.Sprintf("disconnected: %v", msg.Err))
		return m, m.ws.Listen(m.ctx, client.NextDelay(0))

	case client.DecodeErrorMsg:
		m.log.Fault("", msg.Err)
		return m, m.ws.ReadLoop()

	case client.SendErrorMsg:
		m.log.Fault(msg.Tag, msg.Err)
		return m, nil

	case client.EventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(m.ws.ReadLoop(), cmd)
	}

	return m, nil
}

// handleEvent folds one relay envelope into the model and returns any
// follow-up command.
func (m *Model) handleEvent(ev protocol.Event) tea.Cmd {
	m.log.Inbound(ev)
	switch e := ev.(type) {
	case protocol.StatusUpdate:
		m.statusBar.Runtime = e.Status
		if e.Status == protocol.StatusOK {
			return m.send(protocol.ContainerList{})
		}

	case protocol.ContainerList:
		m.list.SetItems(e.Containers)
		m.updateCounts()

	case protocol.ContainerInspect:
		if e.ContainerID == "" || e.ContainerID != m.inspecting {
			return nil
		}
		summary, _ := m.list.Current()
		if summary.ID != e.ContainerID {
			summary = protocol.ContainerSummary{ID: e.ContainerID}
		}
		m.detail = detail.New(summary, e)
		m.overlay = OverlayDetail
		m.inspecting = ""

	case protocol.SystemStatus:
		snap := e
		m.statusBar.System = &snap

	case protocol.ContainerEvent:
		if state, ok := lifecycleState(e.Kind); ok && m.list.SetState(e.ContainerID, state) {
			m.updateCounts()
		}
		// Create/destroy/rename change the set itself, and the runtime's
		// status text moves on every event.
		return m.send(protocol.ContainerList{})
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayLog:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Log):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.log.Scroll(-1, m.logRows())
		case key.Matches(msg, m.keys.Down):
			m.log.Scroll(1, m.logRows())
		}
		return m, nil
	case OverlayDetail:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.detail.ScrollUp(1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.detail.ScrollDown(1)
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		m.list.Next()
	case key.Matches(msg, m.keys.Up):
		m.list.Prev()
	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayLog
	case key.Matches(msg, m.keys.Refresh):
		return m, m.send(protocol.ContainerList{})
	case key.Matches(msg, m.keys.System):
		return m, m.send(protocol.SystemStatus{})
	case key.Matches(msg, m.keys.Inspect):
		if c, ok := m.currentTarget(); ok {
			m.inspecting = c.ID
			return m, m.send(protocol.ContainerInspect{ContainerID: c.ID})
		}
	case key.Matches(msg, m.keys.Start):
		return m, m.control(protocol.TagContainerStart)
	case key.Matches(msg, m.keys.Stop):
		return m, m.control(protocol.TagContainerStop)
	case key.Matches(msg, m.keys.Restart):
		return m, m.control(protocol.TagContainerRestart)
	}
	return m, nil
}

// currentTarget is the container commands apply to: the one in the detail
// overlay when open, else the list selection.
func (m Model) currentTarget() (protocol.ContainerSummary, bool) {
	if m.overlay == OverlayDetail && m.detail.Summary.ID != "" {
		return m.detail.Summary, true
	}
	return m.list.Current()
}

func (m *Model) control(tag protocol.Tag) tea.Cmd {
	c, ok := m.currentTarget()
	if !ok {
		return nil
	}
	ev := protocol.ContainerEvent{Kind: tag, ContainerID: c.ID}
	shown := ev
	shown.Name = containers.DisplayName(c)
	m.log.Outbound(shown)
	return m.send(ev)
}

// logRows matches the row count the log overlay renders.
func (m Model) logRows() int {
	return max(m.height-4-6, 3)
}

func (m Model) send(ev protocol.Event) tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.SendCmd(ev)
}

func (m *Model) updateCounts() {
	m.statusBar.SetCounts(m.list.Counts())
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayDetail:
		body = m.detail.View(m.height - 4)
	case OverlayLog:
		body = m.log.View(m.width, m.height-4)
	default:
		body = m.list.View()
	}
	if !m.connected {
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderDisconnected(), body)
	}

	sections := []string{
		m.statusBar.View(),
		body,
		theme.StyleDimmed.Render("  j/k:move  s:start  x:stop  R:restart  i:inspect  l:refresh  y:system  d:log  q:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorDanger).
		Bold(true).
		Render("  DISCONNECTED · Reconnecting to relay...")
}

// lifecycleState maps a lifecycle tag to the container state it implies.
func lifecycleState(tag protocol.Tag) (string, bool) {
	switch tag {
	case protocol.TagContainerStart, protocol.TagContainerRestart, protocol.TagContainerUnpause:
		return "running", true
	case protocol.TagContainerStop, protocol.TagContainerDie, protocol.TagContainerKill, protocol.TagContainerOom:
		return "exited", true
	case protocol.TagContainerPause:
		return "paused", true
	case protocol.TagContainerCreate:
		return "created", true
	}
	return "", false
}
