// Package ws serves client sessions over WebSocket plus the HTTP control
// surface that sits next to them.
package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BryanFRD/admin-api/internal/bus"
	"github.com/BryanFRD/admin-api/internal/config"
	"github.com/BryanFRD/admin-api/internal/dispatch"
	"github.com/BryanFRD/admin-api/internal/metrics"
	"github.com/BryanFRD/admin-api/internal/runtime"
	"github.com/BryanFRD/admin-api/internal/session"
	"github.com/BryanFRD/admin-api/internal/upstream"
)

// StateReporter exposes the upstream subscription state for health output.
type StateReporter interface {
	State() upstream.State
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Bus        *bus.Bus
	Dispatcher *dispatch.Dispatcher
	Runtime    runtime.Client
	Store      *session.Store
	Upstream   StateReporter
	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
}

type Server struct {
	cfg            config.ServerConfig
	deps           Deps
	logger         zerolog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		deps:           deps,
		logger:         logger.With().Str("component", "ws").Logger(),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/containers", s.handleListContainers)
	mux.HandleFunc("GET /api/containers/{id}", s.handleInspectContainer)
	mux.HandleFunc("POST /api/containers/{id}/{action}", s.handleContainerAction)

	if s.deps.MetricsPath != "" {
		mux.Handle("GET "+s.deps.MetricsPath, metrics.Handler())
	}
}

// Handler returns the full route tree wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(s.cors(instrument(mux)))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Store.Add(session.Info{
		ID:          session.NewID(),
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		ConnectedAt: time.Now(),
	})
	if errors.Is(err, session.ErrTooManyConnections) {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("rejecting session: connection limit reached")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	defer s.deps.Store.Remove(info.ID)

	// Subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed.
	cursor := s.deps.Bus.Subscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cursor.Close()
		s.logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	sess := newSession(info.ID, conn, cursor, s.deps, s.cfg, s.logger)
	metrics.SessionOpened()
	defer metrics.SessionClosed()

	sess.logger.Info().Str("remote", r.RemoteAddr).Int("number", info.Number).Msg("session opened")
	sess.Run(r.Context())
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.originAllowed(origin, r.Host)
}

func (s *Server) originAllowed(origin, requestHost string) bool {
	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == requestHost {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// ListenAndServe serves until ctx is cancelled and then shuts the listener
// down. Sessions end on their own since their contexts derive from ctx.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLSEnabled() {
			s.logger.Info().Str("addr", addr).Str("cert", s.cfg.TLSCert).Msg("listening (tls)")
			errc <- srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
			return
		}
		s.logger.Info().Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
