package upstream

import (
	"errors"
	"maps"
	"strings"

	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
)

var (
	ErrUnmapped = errors.New("no tag for event")
	ErrNoActor  = errors.New("event has no actor id")
)

type eventKey struct {
	objectType string
	action     string
}

// eventTable is the complete set of runtime events relayed to clients.
// Docker reports "container" objects; libvirt reports "domain" objects and
// is mapped onto the same tags.
var eventTable = map[eventKey]protocol.Tag{
	{"container", "create"}:        protocol.TagContainerCreate,
	{"container", "start"}:         protocol.TagContainerStart,
	{"container", "stop"}:          protocol.TagContainerStop,
	{"container", "restart"}:       protocol.TagContainerRestart,
	{"container", "die"}:           protocol.TagContainerDie,
	{"container", "kill"}:          protocol.TagContainerKill,
	{"container", "pause"}:         protocol.TagContainerPause,
	{"container", "unpause"}:       protocol.TagContainerUnpause,
	{"container", "destroy"}:       protocol.TagContainerDestroy,
	{"container", "rename"}:        protocol.TagContainerRename,
	{"container", "oom"}:           protocol.TagContainerOom,
	{"container", "health_status"}: protocol.TagContainerHealthStatus,

	{"domain", "defined"}:     protocol.TagContainerCreate,
	{"domain", "started"}:     protocol.TagContainerStart,
	{"domain", "stopped"}:     protocol.TagContainerStop,
	{"domain", "shutdown"}:    protocol.TagContainerStop,
	{"domain", "crashed"}:     protocol.TagContainerDie,
	{"domain", "suspended"}:   protocol.TagContainerPause,
	{"domain", "pmsuspended"}: protocol.TagContainerPause,
	{"domain", "resumed"}:     protocol.TagContainerUnpause,
	{"domain", "undefined"}:   protocol.TagContainerDestroy,
}

// splitAction separates Docker's "health_status: healthy" style actions
// into the base action and its detail.
func splitAction(action string) (base, detail string) {
	action = strings.ToLower(strings.TrimSpace(action))
	base, detail, _ = strings.Cut(action, ":")
	return strings.TrimSpace(base), strings.TrimSpace(detail)
}

// Translate maps a raw runtime event onto a protocol event.
func Translate(ev runtime.RawEvent) (protocol.Event, error) {
	base, detail := splitAction(ev.Action)
	tag, ok := eventTable[eventKey{strings.ToLower(ev.Type), base}]
	if !ok {
		return nil, ErrUnmapped
	}
	if ev.ID == "" {
		return nil, ErrNoActor
	}

	out := protocol.ContainerEvent{
		Kind:        tag,
		ContainerID: ev.ID,
		Name:        ev.Attributes["name"],
		Image:       ev.Attributes["image"],
	}
	if len(ev.Attributes) > 0 || detail != "" {
		out.Attributes = maps.Clone(ev.Attributes)
		if out.Attributes == nil {
			out.Attributes = make(map[string]string, 1)
		}
		if detail != "" {
			out.Attributes["status"] = detail
		}
	}
	if !ev.Time.IsZero() {
		out.Time = ev.Time.Unix()
	}
	return out, nil
}
