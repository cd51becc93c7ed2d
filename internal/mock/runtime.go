// Package mock provides an in-memory container runtime. It backs --mock mode
// and doubles as the runtime used by tests across the module.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BryanFRD/admin-api/internal/jsoncodec"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
)

// ErrNoSuchContainer is returned for ids the runtime does not know.
var ErrNoSuchContainer = errors.New("no such container")

// Container states.
const (
	StateRunning = "running"
	StateExited  = "exited"
	StatePaused  = "paused"
)

// Container is one synthetic container.
type Container struct {
	ID      string
	Name    string
	Image   string
	Command string
	State   string
	Pattern string // churn behaviour, see Generator
	Created time.Time
	Started time.Time
	Ports   []protocol.Port
	Labels  map[string]string
}

// Call records one command received by the runtime.
type Call struct {
	Op string
	ID string
}

type feed struct {
	out  chan runtime.RawEvent
	errc chan error
	stop chan struct{}
}

// Runtime implements runtime.Client in memory.
type Runtime struct {
	mu         sync.Mutex
	containers map[string]*Container
	reachable  bool
	status     runtime.Status
	failures   map[string]error
	calls      []Call
	feeds      map[*feed]struct{}
	now        func() time.Time
}

var _ runtime.Client = (*Runtime)(nil)

// New returns a reachable runtime holding containers.
func New(containers ...Container) *Runtime {
	r := &Runtime{
		containers: make(map[string]*Container, len(containers)),
		reachable:  true,
		status:     runtime.StatusOK,
		failures:   make(map[string]error),
		feeds:      make(map[*feed]struct{}),
		now:        time.Now,
	}
	for i := range containers {
		c := containers[i]
		r.containers[c.ID] = &c
	}
	return r
}

// SetReachable toggles reachability. Going unreachable ends every open
// event feed with runtime.ErrUnreachable.
func (r *Runtime) SetReachable(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reachable = ok
	if !ok {
		r.dropFeedsLocked(fmt.Errorf("%w: mock runtime offline", runtime.ErrUnreachable))
	}
}

// SetStatus overrides what Ping reports while reachable.
func (r *Runtime) SetStatus(s runtime.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// FailOn makes op ("list", "inspect", "start", "stop", "restart", "events")
// return err. A nil err clears the failure.
func (r *Runtime) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

// DropFeeds ends every open event feed with err.
func (r *Runtime) DropFeeds(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropFeedsLocked(err)
}

// Feeds returns the number of open event feeds.
func (r *Runtime) Feeds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

// Calls returns the commands received so far.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Emit pushes ev to every open feed.
func (r *Runtime) Emit(ev runtime.RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(ev)
}

func (r *Runtime) Ping(ctx context.Context) runtime.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reachable {
		return runtime.StatusUnreachable
	}
	return r.status
}

func (r *Runtime) List(ctx context.Context) ([]protocol.ContainerSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked("list"); err != nil {
		return nil, err
	}
	out := make([]protocol.ContainerSummary, 0, len(r.containers))
	for _, c := range r.containers {
		out = append(out, r.summaryLocked(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Names[0] < out[j].Names[0] })
	return out, nil
}

type inspectDoc struct {
	ID      string            `json:"Id"`
	Name    string            `json:"Name"`
	Image   string            `json:"Image"`
	Created time.Time         `json:"Created"`
	Path    string            `json:"Path"`
	State   inspectState      `json:"State"`
	Labels  map[string]string `json:"Labels,omitempty"`
}

type inspectState struct {
	Status    string    `json:"Status"`
	Running   bool      `json:"Running"`
	Paused    bool      `json:"Paused"`
	StartedAt time.Time `json:"StartedAt"`
}

func (r *Runtime) Inspect(ctx context.Context, id string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: "inspect", ID: id})
	if err := r.checkLocked("inspect"); err != nil {
		return nil, err
	}
	c, ok := r.containers[id]
	if !ok {
		return nil, fmt.Errorf("inspect %s: %w", id, ErrNoSuchContainer)
	}
	return jsoncodec.Marshal(inspectDoc{
		ID:      c.ID,
		Name:    "/" + c.Name,
		Image:   c.Image,
		Created: c.Created,
		Path:    c.Command,
		State: inspectState{
			Status:    c.State,
			Running:   c.State != StateExited,
			Paused:    c.State == StatePaused,
			StartedAt: c.Started,
		},
		Labels: c.Labels,
	})
}

func (r *Runtime) Start(ctx context.Context, id string) error {
	return r.command("start", id)
}

func (r *Runtime) Stop(ctx context.Context, id string) error {
	return r.command("stop", id)
}

func (r *Runtime) Restart(ctx context.Context, id string) error {
	return r.command("restart", id)
}

func (r *Runtime) command(op, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, ID: id})
	if err := r.checkLocked(op); err != nil {
		return err
	}
	c, ok := r.containers[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", op, id, ErrNoSuchContainer)
	}
	switch op {
	case "start":
		if c.State == StateRunning {
			return nil
		}
		r.transitionLocked(c, StateRunning, "start")
	case "stop":
		if c.State == StateExited {
			return nil
		}
		r.transitionLocked(c, StateExited, "die", "stop")
	case "restart":
		r.transitionLocked(c, StateRunning, "die", "start", "restart")
	}
	return nil
}

// Events opens a feed that stays open until ctx is done, the runtime goes
// offline or DropFeeds is called.
func (r *Runtime) Events(ctx context.Context) (<-chan runtime.RawEvent, <-chan error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked("events"); err != nil {
		return nil, nil, err
	}
	f := &feed{
		out:  make(chan runtime.RawEvent, 256),
		errc: make(chan error, 1),
		stop: make(chan struct{}),
	}
	r.feeds[f] = struct{}{}
	go func() {
		select {
		case <-ctx.Done():
		case <-f.stop:
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.endFeedLocked(f, nil)
	}()
	return f.out, f.errc, nil
}

func (r *Runtime) Close() error {
	r.DropFeeds(nil)
	return nil
}

// transition moves container id into state and emits actions in order.
func (r *Runtime) transition(id, state string, actions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.containers[id]; ok {
		r.transitionLocked(c, state, actions...)
	}
}

func (r *Runtime) transitionLocked(c *Container, state string, actions ...string) {
	if state == StateRunning && c.State != StatePaused {
		c.Started = r.now()
	}
	c.State = state
	for _, action := range actions {
		r.emitLocked(runtime.RawEvent{
			Type:   "container",
			Action: action,
			ID:     c.ID,
			Attributes: map[string]string{
				"name":  c.Name,
				"image": c.Image,
			},
			Time: r.now(),
		})
	}
}

func (r *Runtime) checkLocked(op string) error {
	if !r.reachable {
		return fmt.Errorf("%s: %w", op, runtime.ErrUnreachable)
	}
	if err := r.failures[op]; err != nil {
		return err
	}
	return nil
}

func (r *Runtime) emitLocked(ev runtime.RawEvent) {
	for f := range r.feeds {
		select {
		case f.out <- ev:
		default:
			// Subscriber stalled; drop rather than block the runtime.
		}
	}
}

func (r *Runtime) dropFeedsLocked(err error) {
	for f := range r.feeds {
		r.endFeedLocked(f, err)
	}
}

func (r *Runtime) endFeedLocked(f *feed, err error) {
	if _, ok := r.feeds[f]; !ok {
		return
	}
	delete(r.feeds, f)
	close(f.stop)
	if err != nil {
		f.errc <- err
	}
	close(f.out)
}

func (r *Runtime) summaryLocked(c *Container) protocol.ContainerSummary {
	return protocol.ContainerSummary{
		ID:      c.ID,
		Names:   []string{"/" + c.Name},
		Image:   c.Image,
		Command: c.Command,
		Created: c.Created.Unix(),
		State:   c.State,
		Status:  describe(c, r.now()),
		Ports:   c.Ports,
		Labels:  c.Labels,
	}
}

func describe(c *Container, now time.Time) string {
	up := now.Sub(c.Started).Round(time.Second)
	switch c.State {
	case StateRunning:
		return "Up " + up.String()
	case StatePaused:
		return "Up " + up.String() + " (Paused)"
	default:
		return "Exited (0)"
	}
}
