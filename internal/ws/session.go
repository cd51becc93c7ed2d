package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BryanFRD/admin-api/internal/bus"
	"github.com/BryanFRD/admin-api/internal/config"
	"github.com/BryanFRD/admin-api/internal/dispatch"
	"github.com/BryanFRD/admin-api/internal/metrics"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/session"
)

// Session is one connected client. Relay, command and keepalive tasks share
// the connection; every data frame goes through write so gorilla's single
// writer rule holds.
type Session struct {
	id           string
	conn         *websocket.Conn
	cursor       *bus.Cursor
	dispatcher   *dispatch.Dispatcher
	store        *session.Store
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       zerolog.Logger

	writeMu sync.Mutex
}

// maxFrameSize caps one inbound frame. Commands are small; anything larger
// closes the session.
const maxFrameSize = 1 << 20

func newSession(id string, conn *websocket.Conn, cursor *bus.Cursor, deps Deps, cfg config.ServerConfig, logger zerolog.Logger) *Session {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	conn.SetReadLimit(maxFrameSize)
	return &Session{
		id:           id,
		conn:         conn,
		cursor:       cursor,
		dispatcher:   deps.Dispatcher,
		store:        deps.Store,
		writeTimeout: writeTimeout,
		pingInterval: cfg.PingInterval,
		logger:       logger.With().Str("session", id).Logger(),
	}
}

// Run blocks until the session ends: the client disconnects, a write
// fails, the bus closes, or ctx is cancelled. The first task to stop takes
// the others down with it.
func (s *Session) Run(ctx context.Context) error {
	defer s.cursor.Close()
	defer s.conn.Close()

	ctx = s.logger.WithContext(ctx)
	if s.pingInterval > 0 {
		s.armReadDeadline()
		s.conn.SetPongHandler(func(string) error {
			s.armReadDeadline()
			return nil
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.relay(gctx) })
	g.Go(func() error { return s.commands(gctx) })
	if s.pingInterval > 0 {
		g.Go(func() error { return s.keepalive(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		s.closeConn(ctx)
		return nil
	})

	err := g.Wait()
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, context.Canceled),
		errors.Is(err, bus.ErrClosed):
		s.logger.Info().Msg("session closed")
	default:
		s.logger.Info().Err(err).Msg("session ended")
	}
	return err
}

// relay copies bus messages to the client in publish order.
func (s *Session) relay(ctx context.Context) error {
	for {
		msg, err := s.cursor.Next(ctx)
		if err != nil {
			return err
		}
		if msg.Missed > 0 {
			s.logger.Warn().Uint64("missed", msg.Missed).Msg("session lagged behind the bus")
			metrics.RecordMissed(msg.Missed)
		}
		if err := s.write(msg.Data); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
		s.store.RecordDelivery(s.id, msg.Missed)
	}
}

// commands decodes each inbound frame as exactly one envelope and runs it
// before reading the next one.
func (s *Session) commands(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := protocol.Decode(data)
		if err != nil {
			if err := s.dispatcher.Reject(ctx, err, s); err != nil {
				return err
			}
			continue
		}
		s.store.RecordCommand(s.id)
		if err := s.dispatcher.Dispatch(ctx, ev, s); err != nil {
			return err
		}
	}
}

func (s *Session) keepalive(ctx context.Context) error {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// Send implements dispatch.Responder.
func (s *Session) Send(_ context.Context, ev protocol.Event) error {
	if err := s.write(protocol.Encode(ev)); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) armReadDeadline() {
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
}

// closeConn sends a close frame when the server is the side ending the
// session, then drops the connection.
func (s *Session) closeConn(parent context.Context) {
	if parent.Err() != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	_ = s.conn.Close()
}
