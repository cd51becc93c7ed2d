// Package docker implements runtime.Client against the Docker Engine API.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/BryanFRD/admin-api/internal/jsoncodec"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
)

// Client wraps the Docker SDK client. The connection settings come from the
// standard DOCKER_* environment unless Host is given.
type Client struct {
	cli    *client.Client
	logger zerolog.Logger
}

type Options struct {
	// Host overrides DOCKER_HOST, e.g. "unix:///var/run/docker.sock".
	Host string
}

func New(opts Options, logger zerolog.Logger) (*Client, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(opts.Host))
	}
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{
		cli:    cli,
		logger: logger.With().Str("component", "docker").Logger(),
	}, nil
}

func (c *Client) Ping(ctx context.Context) runtime.Status {
	status, err := c.ping(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Stringer("status", status).Msg("ping failed")
	}
	return status
}

func (c *Client) ping(ctx context.Context) (runtime.Status, error) {
	if _, err := c.cli.Ping(ctx); err != nil {
		if client.IsErrConnectionFailed(err) {
			return runtime.StatusUnreachable, fmt.Errorf("%w: %v", runtime.ErrUnreachable, err)
		}
		return runtime.StatusError, err
	}
	return runtime.StatusOK, nil
}

func (c *Client) List(ctx context.Context) ([]protocol.ContainerSummary, error) {
	list, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]protocol.ContainerSummary, 0, len(list))
	for _, ctr := range list {
		out = append(out, summarize(ctr))
	}
	return out, nil
}

func (c *Client) Inspect(ctx context.Context, id string) (json.RawMessage, error) {
	detail, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", id, err)
	}
	data, err := jsoncodec.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("encode inspect %s: %w", id, err)
	}
	return data, nil
}

func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start %s: %w", id, err)
	}
	return nil
}

func (c *Client) Stop(ctx context.Context, id string) error {
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}
	return nil
}

func (c *Client) Restart(ctx context.Context, id string) error {
	if err := c.cli.ContainerRestart(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("restart %s: %w", id, err)
	}
	return nil
}

// Events subscribes to the daemon's event stream. The SDK never closes its
// message channel, so the feed is re-exposed with close-on-error semantics.
func (c *Client) Events(ctx context.Context) (<-chan runtime.RawEvent, <-chan error, error) {
	if _, err := c.ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("docker events: %w", err)
	}

	msgs, sdkErrs := c.cli.Events(ctx, events.ListOptions{})
	out := make(chan runtime.RawEvent)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-msgs:
				select {
				case out <- toRawEvent(msg):
				case <-ctx.Done():
					return
				}
			case err := <-sdkErrs:
				if err != nil && ctx.Err() == nil {
					errc <- fmt.Errorf("docker events: %w", err)
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func summarize(ctr types.Container) protocol.ContainerSummary {
	s := protocol.ContainerSummary{
		ID:      ctr.ID,
		Names:   ctr.Names,
		Image:   ctr.Image,
		Command: ctr.Command,
		Created: ctr.Created,
		State:   ctr.State,
		Status:  ctr.Status,
		Labels:  ctr.Labels,
	}
	for _, p := range ctr.Ports {
		s.Ports = append(s.Ports, protocol.Port{
			IP:          p.IP,
			PrivatePort: p.PrivatePort,
			PublicPort:  p.PublicPort,
			Type:        p.Type,
		})
	}
	return s
}

func toRawEvent(msg events.Message) runtime.RawEvent {
	ev := runtime.RawEvent{
		Type:       string(msg.Type),
		Action:     strings.ToLower(string(msg.Action)),
		ID:         msg.Actor.ID,
		Attributes: msg.Actor.Attributes,
	}
	switch {
	case msg.TimeNano != 0:
		ev.Time = time.Unix(0, msg.TimeNano)
	case msg.Time != 0:
		ev.Time = time.Unix(msg.Time, 0)
	}
	return ev
}
