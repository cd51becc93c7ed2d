package protocol

import (
	"encoding/json"

	"github.com/BryanFRD/admin-api/internal/jsoncodec"
)

// Event is implemented by every payload type.
type Event interface {
	Tag() Tag
}

// StatusQuery asks for the runtime's reachability.
type StatusQuery struct{}

func (StatusQuery) Tag() Tag { return TagStatusQuery }

// Runtime reachability codes carried by StatusUpdate.
const (
	StatusUnreachable = 0
	StatusOK          = 1
	StatusError       = 2
)

// StatusUpdate reports runtime reachability. It answers StatusQuery and is
// broadcast by the upstream source when the runtime feed goes away or
// comes back.
type StatusUpdate struct {
	Status int `json:"status"`
}

func (StatusUpdate) Tag() Tag { return TagStatusUpdate }

// ContainerList is both the request (no containers) and the reply.
type ContainerList struct {
	Containers []ContainerSummary `json:"containers"`
}

func (ContainerList) Tag() Tag { return TagContainerList }

// ContainerSummary is one row of a ContainerList reply.
type ContainerSummary struct {
	ID      string            `json:"id"`
	Names   []string          `json:"names,omitempty"`
	Image   string            `json:"image,omitempty"`
	Command string            `json:"command,omitempty"`
	Created int64             `json:"created,omitempty"`
	State   string            `json:"state,omitempty"`
	Status  string            `json:"status,omitempty"`
	Ports   []Port            `json:"ports,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// Port is a published or exposed container port.
type Port struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"privatePort"`
	PublicPort  uint16 `json:"publicPort,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ContainerInspect requests details for ContainerID. The reply carries the
// runtime's inspect document verbatim in Container.
type ContainerInspect struct {
	ContainerID string          `json:"containerId,omitempty"`
	Container   json.RawMessage `json:"container,omitempty"`
}

func (ContainerInspect) Tag() Tag { return TagContainerInspect }

func (c *ContainerInspect) UnmarshalJSON(data []byte) error {
	type plain ContainerInspect
	var aux struct {
		plain
		LegacyID string `json:"ID"`
	}
	if err := jsoncodec.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = ContainerInspect(aux.plain)
	if c.ContainerID == "" {
		c.ContainerID = aux.LegacyID
	}
	return nil
}

// ContainerEvent is the payload of start/stop/restart commands and of every
// lifecycle notification. Kind selects the tag.
type ContainerEvent struct {
	Kind        Tag               `json:"-"`
	ContainerID string            `json:"containerId,omitempty"`
	Name        string            `json:"name,omitempty"`
	Image       string            `json:"image,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Time        int64             `json:"time,omitempty"`
}

func (e ContainerEvent) Tag() Tag { return e.Kind }

// UnmarshalJSON accepts "ID" as an alias for "containerId" and keeps Kind.
func (e *ContainerEvent) UnmarshalJSON(data []byte) error {
	type plain ContainerEvent
	var aux struct {
		plain
		LegacyID string `json:"ID"`
	}
	if err := jsoncodec.Unmarshal(data, &aux); err != nil {
		return err
	}
	kind := e.Kind
	*e = ContainerEvent(aux.plain)
	e.Kind = kind
	if e.ContainerID == "" {
		e.ContainerID = aux.LegacyID
	}
	return nil
}

// SystemStatus is both the request (empty) and the host snapshot reply.
type SystemStatus struct {
	Hostname      string  `json:"hostname,omitempty"`
	Platform      string  `json:"platform,omitempty"`
	KernelVersion string  `json:"kernelVersion,omitempty"`
	Uptime        uint64  `json:"uptime,omitempty"`
	CPUCount      int     `json:"cpuCount,omitempty"`
	CPUPercent    float64 `json:"cpuPercent,omitempty"`
	MemoryTotal   uint64  `json:"memoryTotal,omitempty"`
	MemoryUsed    uint64  `json:"memoryUsed,omitempty"`
	MemoryPercent float64 `json:"memoryPercent,omitempty"`
	Load1         float64 `json:"load1,omitempty"`
	Load5         float64 `json:"load5,omitempty"`
	Load15        float64 `json:"load15,omitempty"`
}

func (SystemStatus) Tag() Tag { return TagSystemStatus }

// CommandError is only sent when error replies are enabled.
type CommandError struct {
	Command     Tag    `json:"command,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	Message     string `json:"message"`
}

func (CommandError) Tag() Tag { return TagCommandError }
