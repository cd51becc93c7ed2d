// Package protocol defines the session wire format: every message is one
// JSON envelope {"type": <tag>, "data": <payload>}.
package protocol

// Tag identifies the kind of an envelope.
type Tag string

const (
	TagStatusQuery      Tag = "StatusQuery"
	TagStatusUpdate     Tag = "StatusUpdate"
	TagContainerList    Tag = "ContainerList"
	TagContainerInspect Tag = "ContainerInspect"
	TagContainerStart   Tag = "ContainerStart"
	TagContainerStop    Tag = "ContainerStop"
	TagContainerRestart Tag = "ContainerRestart"
	TagSystemStatus     Tag = "SystemStatus"
	TagCommandError     Tag = "CommandError"

	// Lifecycle notifications produced from the runtime's event feed.
	TagContainerCreate       Tag = "ContainerCreate"
	TagContainerDie          Tag = "ContainerDie"
	TagContainerKill         Tag = "ContainerKill"
	TagContainerPause        Tag = "ContainerPause"
	TagContainerUnpause      Tag = "ContainerUnpause"
	TagContainerDestroy      Tag = "ContainerDestroy"
	TagContainerRename       Tag = "ContainerRename"
	TagContainerOom          Tag = "ContainerOom"
	TagContainerHealthStatus Tag = "ContainerHealthStatus"
)

// lifecycleTags all carry a ContainerEvent payload.
var lifecycleTags = []Tag{
	TagContainerStart,
	TagContainerStop,
	TagContainerRestart,
	TagContainerCreate,
	TagContainerDie,
	TagContainerKill,
	TagContainerPause,
	TagContainerUnpause,
	TagContainerDestroy,
	TagContainerRename,
	TagContainerOom,
	TagContainerHealthStatus,
}

var commandTags = map[Tag]bool{
	TagStatusQuery:      true,
	TagContainerList:    true,
	TagContainerInspect: true,
	TagContainerStart:   true,
	TagContainerStop:    true,
	TagContainerRestart: true,
	TagSystemStatus:     true,
}

// IsCommand reports whether clients may send tag as a request.
func IsCommand(tag Tag) bool {
	return commandTags[tag]
}

// IsLifecycle reports whether tag is carried by a ContainerEvent.
func IsLifecycle(tag Tag) bool {
	for _, t := range lifecycleTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns every tag the codec understands.
func Tags() []Tag {
	out := make([]Tag, 0, len(decoders))
	for tag := range decoders {
		out = append(out, tag)
	}
	return out
}
