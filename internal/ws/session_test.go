package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanFRD/admin-api/internal/bus"
	"github.com/BryanFRD/admin-api/internal/config"
	"github.com/BryanFRD/admin-api/internal/dispatch"
	"github.com/BryanFRD/admin-api/internal/mock"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/session"
	"github.com/BryanFRD/admin-api/internal/upstream"
)

type harness struct {
	srv   *httptest.Server
	rt    *mock.Runtime
	bus   *bus.Bus
	store *session.Store
}

type fakeSys struct{}

func (fakeSys) Snapshot(context.Context) (protocol.SystemStatus, error) {
	return protocol.SystemStatus{Hostname: "node-1", CPUCount: 4}, nil
}

func newHarness(t *testing.T, cfg config.ServerConfig) *harness {
	t.Helper()

	rt := mock.New(
		mock.Container{ID: "c1", Name: "web", Image: "nginx", State: mock.StateRunning},
		mock.Container{ID: "c2", Name: "db", Image: "postgres", State: mock.StateExited},
	)
	h := &harness{
		rt:    rt,
		bus:   bus.New(16),
		store: session.NewStore(cfg.MaxConnections),
	}
	s := NewServer(cfg, Deps{
		Bus:         h.bus,
		Dispatcher:  dispatch.New(rt, fakeSys{}, dispatch.Options{}, zerolog.Nop()),
		Runtime:     rt,
		Store:       h.store,
		MetricsPath: "/metrics",
	}, zerolog.Nop())

	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		h.bus.Close()
		h.srv.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *harness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.Decode(data)
	require.NoError(t, err)
	return ev
}

func send(t *testing.T, conn *websocket.Conn, ev protocol.Event) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.Encode(ev)))
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected message %s", data)
}

func TestBroadcastReachesEverySession(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	a := h.dial(t)
	b := h.dial(t)

	payload := protocol.Encode(protocol.ContainerEvent{Kind: protocol.TagContainerDie, ContainerID: "c1"})
	h.bus.Publish(payload)

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	}
}

func TestBroadcastKeepsPublishOrder(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		h.bus.Publish(protocol.Encode(protocol.ContainerEvent{Kind: protocol.TagContainerStart, ContainerID: id}))
	}
	for _, id := range ids {
		ev := readEvent(t, conn)
		require.IsType(t, protocol.ContainerEvent{}, ev)
		assert.Equal(t, id, ev.(protocol.ContainerEvent).ContainerID)
	}
}

func TestUnreachableListRepliesOnlyToRequester(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	h.rt.SetReachable(false)
	requester := h.dial(t)
	bystander := h.dial(t)

	send(t, requester, protocol.ContainerList{})

	assert.Equal(t, protocol.StatusUpdate{Status: protocol.StatusUnreachable}, readEvent(t, requester))
	list := readEvent(t, requester)
	require.IsType(t, protocol.ContainerList{}, list)
	assert.Empty(t, list.(protocol.ContainerList).Containers)

	assertSilent(t, bystander)
}

func TestMalformedMessageIsDropped(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	send(t, conn, protocol.StatusQuery{})

	assert.Equal(t, protocol.StatusUpdate{Status: protocol.StatusOK}, readEvent(t, conn))
	assertSilent(t, conn)
}

func TestBinaryFramesAreCommands(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(protocol.SystemStatus{})))

	ev := readEvent(t, conn)
	require.IsType(t, protocol.SystemStatus{}, ev)
	assert.Equal(t, "node-1", ev.(protocol.SystemStatus).Hostname)
}

func TestSessionCleanup(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	require.Eventually(t, func() bool { return h.store.Count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.bus.Subscribers())

	conn.Close()

	require.Eventually(t, func() bool {
		return h.store.Count() == 0 && h.bus.Subscribers() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBusCloseEndsSession(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	h.bus.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "session should end, not idle")
	}
	require.Eventually(t, func() bool { return h.store.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestConnectionLimit(t *testing.T) {
	h := newHarness(t, config.ServerConfig{MaxConnections: 1})
	h.dial(t)

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, h.bus.Subscribers())
}

func TestSessionRecordsDeliveries(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	h.bus.Publish(protocol.Encode(protocol.StatusUpdate{Status: protocol.StatusOK}))
	readEvent(t, conn)
	send(t, conn, protocol.StatusQuery{})
	readEvent(t, conn)

	require.Eventually(t, func() bool {
		all := h.store.GetAll()
		return len(all) == 1 && all[0].Delivered == 1 && all[0].Commands == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUndecodableFrameIsNotCountedAsCommand(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Nope"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	send(t, conn, protocol.StatusQuery{})
	assert.Equal(t, protocol.StatusUpdate{Status: protocol.StatusOK}, readEvent(t, conn))

	require.Eventually(t, func() bool {
		all := h.store.GetAll()
		return len(all) == 1 && all[0].Commands == 1
	}, time.Second, 5*time.Millisecond)
}

func TestOversizedFrameEndsSession(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)

	big := make([]byte, maxFrameSize+1)
	for i := range big {
		big[i] = 'a'
	}
	// The server may hang up mid-write, so the write error is not checked.
	_ = conn.WriteMessage(websocket.TextMessage, big)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(h.store.GetAll()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCommandBroadcastsRuntimeEvent(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := h.dial(t)
	watcher := h.dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := upstream.New(h.rt, h.bus, upstream.Options{RetryInterval: 20 * time.Millisecond}, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	for _, c := range []*websocket.Conn{conn, watcher} {
		assert.Equal(t, protocol.StatusUpdate{Status: protocol.StatusOK}, readEvent(t, c))
	}

	send(t, conn, protocol.ContainerEvent{Kind: protocol.TagContainerStart, ContainerID: "c2"})

	for _, c := range []*websocket.Conn{conn, watcher} {
		ev := readEvent(t, c)
		require.IsType(t, protocol.ContainerEvent{}, ev)
		started := ev.(protocol.ContainerEvent)
		assert.Equal(t, protocol.TagContainerStart, started.Kind)
		assert.Equal(t, "c2", started.ContainerID)
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("upstream did not stop")
	}
}
