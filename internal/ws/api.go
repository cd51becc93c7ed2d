package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BryanFRD/admin-api/internal/jsoncodec"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
	"github.com/BryanFRD/admin-api/internal/upstream"
)

type healthResponse struct {
	Runtime     int    `json:"runtime"`
	RuntimeName string `json:"runtimeStatus"`
	Upstream    string `json:"upstream"`
	Sessions    int    `json:"sessions"`
	Subscribers int    `json:"subscribers"`
}

type containerList struct {
	Containers []protocol.ContainerSummary `json:"containers"`
}

type containerDetail struct {
	Container json.RawMessage `json:"container"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Runtime.Ping(r.Context())
	state := upstream.Disconnected
	if s.deps.Upstream != nil {
		state = s.deps.Upstream.State()
	}

	code := http.StatusOK
	if status != runtime.StatusOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Runtime:     int(status),
		RuntimeName: status.String(),
		Upstream:    state.String(),
		Sessions:    s.deps.Store.Count(),
		Subscribers: s.deps.Bus.Subscribers(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Store.GetAll())
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Runtime.List(r.Context())
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}
	if list == nil {
		list = []protocol.ContainerSummary{}
	}
	writeJSON(w, http.StatusOK, containerList{Containers: list})
}

func (s *Server) handleInspectContainer(w http.ResponseWriter, r *http.Request) {
	detail, err := s.deps.Runtime.Inspect(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, containerDetail{Container: json.RawMessage(detail)})
}

func (s *Server) handleContainerAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		call    func(context.Context, string) error
		message string
	)
	switch r.PathValue("action") {
	case "start":
		call, message = s.deps.Runtime.Start, "Container started"
	case "stop":
		call, message = s.deps.Runtime.Stop, "Container stopped"
	case "restart":
		call, message = s.deps.Runtime.Restart, "Container restarted"
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	if err := call(r.Context(), id); err != nil {
		s.writeRuntimeError(w, err)
		return
	}
	s.logger.Info().Str("container", id).Str("action", r.PathValue("action")).Msg("container action via http")
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) writeRuntimeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, runtime.ErrUnreachable) {
		code = http.StatusServiceUnavailable
	}
	s.logger.Warn().Err(err).Msg("runtime call failed")
	writeError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = jsoncodec.Encode(w, v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
