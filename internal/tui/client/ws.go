// Package client speaks the relay's envelope protocol over WebSocket and
// turns inbound envelopes into Bubble Tea messages.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("not connected")

// WSClient manages the WebSocket connection to the relay.
type WSClient struct {
	url string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (ping, commands)
	conn    *websocket.Conn
	pingCtx context.CancelFunc
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url string) *WSClient {
	return &WSClient{url: url}
}

// --- Bubble Tea messages ---

// ConnectedMsg is sent when the WebSocket connects.
type ConnectedMsg struct{}

// DisconnectedMsg is sent when the connection drops.
type DisconnectedMsg struct{ Err error }

// DialFailedMsg reports one failed connection attempt; Listen keeps trying.
type DialFailedMsg struct {
	Err   error
	Retry time.Duration
}

// EventMsg delivers one decoded envelope.
type EventMsg struct{ Event protocol.Event }

// DecodeErrorMsg reports a frame that was not a valid envelope.
type DecodeErrorMsg struct{ Err error }

// SendErrorMsg reports a command that could not be written.
type SendErrorMsg struct {
	Tag protocol.Tag
	Err error
}

// Listen returns a command that dials until it connects or ctx is done.
// delay is the wait before the attempt; pass zero for the first one.
func (c *WSClient) Listen(ctx context.Context, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return DialFailedMsg{Err: err, Retry: NextDelay(delay)}
		}

		c.mu.Lock()
		if c.pingCtx != nil {
			c.pingCtx()
		}
		pingCtx, pingCancel := context.WithCancel(ctx)
		c.conn = conn
		c.pingCtx = pingCancel
		c.mu.Unlock()

		go c.pingLoop(pingCtx, conn)

		return ConnectedMsg{}
	}
}

// NextDelay doubles the reconnect delay up to the cap.
func NextDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return reconnectBaseDelay
	}
	return min(prev*2, reconnectMaxDelay)
}

// ReadLoop returns a command that reads until one message is available.
// Re-issue it after every message it returns.
func (c *WSClient) ReadLoop() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return DisconnectedMsg{Err: ErrNotConnected}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn)
			return DisconnectedMsg{Err: err}
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			return DecodeErrorMsg{Err: err}
		}
		return EventMsg{Event: ev}
	}
}

// Send writes ev to the relay.
func (c *WSClient) Send(ev protocol.Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, protocol.Encode(ev))
}

// SendCmd wraps Send as a command that only produces a message on failure.
func (c *WSClient) SendCmd(ev protocol.Event) tea.Cmd {
	return func() tea.Msg {
		if err := c.Send(ev); err != nil {
			return SendErrorMsg{Tag: ev.Tag(), Err: err}
		}
		return nil
	}
}

// Close drops the current connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.drop(conn)
	}
}

func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.pingCtx != nil {
			c.pingCtx()
			c.pingCtx = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
