// Package libvirt exposes libvirt domains through runtime.Client so the relay
// can manage virtual machines the same way it manages containers.
package libvirt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	"github.com/BryanFRD/admin-api/internal/jsoncodec"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
)

// EventType is the RawEvent.Type of every domain lifecycle event.
const EventType = "domain"

// Client owns a single libvirt RPC connection. It connects lazily and
// drops the connection after any transport failure so the next call
// redials.
type Client struct {
	mu     sync.Mutex
	lv     *golibvirt.Libvirt
	uri    *url.URL
	logger zerolog.Logger
}

func New(uri string, logger zerolog.Logger) (*Client, error) {
	parsed, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	return &Client{
		uri:    parsed,
		logger: logger.With().Str("component", "libvirt").Str("uri", parsed.Redacted()).Logger(),
	}, nil
}

func parseURI(raw string) (*url.URL, error) {
	if raw == "" {
		raw = string(golibvirt.QEMUSystem)
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri %q: %w", raw, err)
	}
	if uri.Scheme == "" {
		return nil, fmt.Errorf("libvirt uri %q has no scheme", raw)
	}
	return uri, nil
}

func (c *Client) conn() (*golibvirt.Libvirt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lv != nil {
		return c.lv, nil
	}
	lv, err := golibvirt.ConnectToURI(c.uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", runtime.ErrUnreachable, err)
	}
	c.lv = lv
	c.logger.Info().Msg("libvirt connected")
	return lv, nil
}

// reset drops lv if it is still the current connection.
func (c *Client) reset(lv *golibvirt.Libvirt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lv != lv {
		return
	}
	if err := lv.Disconnect(); err != nil {
		c.logger.Debug().Err(err).Msg("libvirt disconnect")
	}
	c.lv = nil
}

func (c *Client) Ping(ctx context.Context) runtime.Status {
	lv, err := c.conn()
	if err != nil {
		c.logger.Debug().Err(err).Msg("ping failed")
		return runtime.StatusUnreachable
	}
	if _, err := lv.Version(); err != nil {
		c.logger.Debug().Err(err).Msg("libvirt version check failed")
		c.reset(lv)
		return runtime.StatusError
	}
	return runtime.StatusOK
}

func (c *Client) List(ctx context.Context) ([]protocol.ContainerSummary, error) {
	lv, err := c.conn()
	if err != nil {
		return nil, err
	}
	doms, _, err := lv.ConnectListAllDomains(1, golibvirt.ConnectListDomainsActive|golibvirt.ConnectListDomainsInactive)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	out := make([]protocol.ContainerSummary, 0, len(doms))
	for _, dom := range doms {
		s := protocol.ContainerSummary{
			ID:    uuidToString(dom.UUID),
			Names: []string{dom.Name},
			Image: "libvirt",
		}
		state, _, _, _, _, err := lv.DomainGetInfo(dom)
		if err != nil {
			c.logger.Warn().Err(err).Str("domain", dom.Name).Msg("domain info")
		} else {
			s.State, s.Status = describeState(golibvirt.DomainState(state))
		}
		out = append(out, s)
	}
	return out, nil
}

type domainDetail struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Status    string `json:"status"`
	MaxMemKiB uint64 `json:"maxMemKiB"`
	MemKiB    uint64 `json:"memKiB"`
	VCPUs     uint16 `json:"vcpus"`
	CPUTimeNs uint64 `json:"cpuTimeNs"`
	XML       string `json:"xml"`
}

func (c *Client) Inspect(ctx context.Context, id string) (json.RawMessage, error) {
	lv, dom, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	state, maxMem, mem, vcpus, cpuTime, err := lv.DomainGetInfo(dom)
	if err != nil {
		return nil, fmt.Errorf("domain info %s: %w", id, err)
	}
	xmlDesc, err := lv.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return nil, fmt.Errorf("domain xml %s: %w", id, err)
	}
	detail := domainDetail{
		ID:        uuidToString(dom.UUID),
		Name:      dom.Name,
		MaxMemKiB: maxMem,
		MemKiB:    mem,
		VCPUs:     vcpus,
		CPUTimeNs: cpuTime,
		XML:       xmlDesc,
	}
	detail.State, detail.Status = describeState(golibvirt.DomainState(state))
	return jsoncodec.Marshal(detail)
}

func (c *Client) Start(ctx context.Context, id string) error {
	lv, dom, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := lv.DomainCreate(dom); err != nil {
		return fmt.Errorf("start %s: %w", id, err)
	}
	return nil
}

func (c *Client) Stop(ctx context.Context, id string) error {
	lv, dom, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := lv.DomainShutdown(dom); err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}
	return nil
}

func (c *Client) Restart(ctx context.Context, id string) error {
	lv, dom, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := lv.DomainReboot(dom, golibvirt.DomainRebootDefault); err != nil {
		return fmt.Errorf("restart %s: %w", id, err)
	}
	return nil
}

// lookup resolves id as a domain UUID first and as a name otherwise.
func (c *Client) lookup(id string) (*golibvirt.Libvirt, golibvirt.Domain, error) {
	lv, err := c.conn()
	if err != nil {
		return nil, golibvirt.Domain{}, err
	}
	if uuid, ok := parseUUID(id); ok {
		if dom, err := lv.DomainLookupByUUID(uuid); err == nil {
			return lv, dom, nil
		}
	}
	dom, err := lv.DomainLookupByName(id)
	if err != nil {
		if golibvirt.IsNotFound(err) {
			return nil, golibvirt.Domain{}, fmt.Errorf("no such domain: %s", id)
		}
		return nil, golibvirt.Domain{}, fmt.Errorf("lookup %s: %w", id, err)
	}
	return lv, dom, nil
}

func (c *Client) Events(ctx context.Context) (<-chan runtime.RawEvent, <-chan error, error) {
	lv, err := c.conn()
	if err != nil {
		return nil, nil, fmt.Errorf("libvirt events: %w", err)
	}
	if _, err := lv.Version(); err != nil {
		c.reset(lv)
		return nil, nil, fmt.Errorf("libvirt events: %w", err)
	}
	feed, err := lv.LifecycleEvents(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("libvirt lifecycle events: %w", err)
	}

	out := make(chan runtime.RawEvent)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-feed:
				if !ok {
					if ctx.Err() == nil {
						errc <- errors.New("libvirt lifecycle feed closed")
					}
					return
				}
				select {
				case out <- lifecycleEvent(msg, time.Now()):
				case <-ctx.Done():
					return
				}
			case <-lv.Disconnected():
				c.reset(lv)
				errc <- fmt.Errorf("%w: libvirt connection lost", runtime.ErrUnreachable)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lv == nil {
		return nil
	}
	err := c.lv.Disconnect()
	c.lv = nil
	return err
}

var lifecycleActions = map[golibvirt.DomainEventType]string{
	golibvirt.DomainEventDefined:     "defined",
	golibvirt.DomainEventUndefined:   "undefined",
	golibvirt.DomainEventStarted:     "started",
	golibvirt.DomainEventSuspended:   "suspended",
	golibvirt.DomainEventResumed:     "resumed",
	golibvirt.DomainEventStopped:     "stopped",
	golibvirt.DomainEventShutdown:    "shutdown",
	golibvirt.DomainEventPmsuspended: "pmsuspended",
	golibvirt.DomainEventCrashed:     "crashed",
}

func lifecycleEvent(msg golibvirt.DomainEventLifecycleMsg, at time.Time) runtime.RawEvent {
	action, ok := lifecycleActions[golibvirt.DomainEventType(msg.Event)]
	if !ok {
		action = "event-" + strconv.Itoa(int(msg.Event))
	}
	return runtime.RawEvent{
		Type:   EventType,
		Action: action,
		ID:     uuidToString(msg.Dom.UUID),
		Attributes: map[string]string{
			"name":   msg.Dom.Name,
			"detail": strconv.Itoa(int(msg.Detail)),
		},
		Time: at,
	}
}

// describeState maps a domain state onto container-style state and status
// strings.
func describeState(s golibvirt.DomainState) (state, status string) {
	switch s {
	case golibvirt.DomainRunning:
		return "running", "running"
	case golibvirt.DomainBlocked:
		return "running", "blocked"
	case golibvirt.DomainPaused:
		return "paused", "paused"
	case golibvirt.DomainShutdown:
		return "running", "shutting down"
	case golibvirt.DomainShutoff:
		return "exited", "shut off"
	case golibvirt.DomainCrashed:
		return "dead", "crashed"
	case golibvirt.DomainPmsuspended:
		return "paused", "pm suspended"
	default:
		return "unknown", "no state"
	}
}

func uuidToString(u golibvirt.UUID) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

func parseUUID(s string) (golibvirt.UUID, bool) {
	var u golibvirt.UUID
	raw, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil || len(raw) != len(u) {
		return u, false
	}
	copy(u[:], raw)
	return u, true
}
