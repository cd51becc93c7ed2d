// Package runtime is the port between the relay and a container runtime.
// Drivers live in subpackages; internal/mock provides an in-memory one.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

// ErrUnreachable is wrapped by drivers when the runtime daemon cannot be
// contacted at all.
var ErrUnreachable = errors.New("runtime unreachable")

// Status mirrors the StatusUpdate codes.
type Status int

const (
	StatusUnreachable Status = protocol.StatusUnreachable
	StatusOK          Status = protocol.StatusOK
	StatusError       Status = protocol.StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnreachable:
		return "unreachable"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// RawEvent is one notification from the runtime's event feed, before
// translation into a protocol tag.
type RawEvent struct {
	Type       string
	Action     string
	ID         string
	Attributes map[string]string
	Time       time.Time
}

// Client is the set of runtime operations the relay needs.
type Client interface {
	// Ping never fails; problems are folded into the returned Status.
	Ping(ctx context.Context) Status
	List(ctx context.Context) ([]protocol.ContainerSummary, error)
	Inspect(ctx context.Context, id string) (json.RawMessage, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	// Events opens the runtime's event feed. It pings first and returns an
	// error wrapping ErrUnreachable when the runtime cannot be reached.
	// The event channel is closed when the feed ends; a terminal error,
	// if any, is delivered on the error channel first.
	Events(ctx context.Context) (<-chan RawEvent, <-chan error, error)
	Close() error
}
