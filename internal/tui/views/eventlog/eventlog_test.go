package eventlog

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

func fixedClock(m *Model) time.Time {
	at := time.Date(2026, 3, 1, 9, 30, 15, 250_000_000, time.UTC)
	m.now = func() time.Time { return at }
	return at
}

func TestInboundLifecycleUsesNameThenID(t *testing.T) {
	m := New()
	at := fixedClock(&m)

	m.Inbound(protocol.ContainerEvent{Kind: protocol.TagContainerStart, ContainerID: "abc123", Name: "db"})
	m.Inbound(protocol.ContainerEvent{Kind: protocol.TagContainerDie, ContainerID: "def456"})

	first, second := m.Entries[0], m.Entries[1]
	if first.Tag != protocol.TagContainerStart || first.Subject != "db" {
		t.Errorf("first entry = %+v", first)
	}
	if second.Subject != "def456" {
		t.Errorf("expected id fallback, got %q", second.Subject)
	}
	if !first.At.Equal(at) || first.Direction != Inbound {
		t.Errorf("unexpected stamp or direction: %+v", first)
	}
}

func TestHealthStatusDetail(t *testing.T) {
	m := New()
	m.Inbound(protocol.ContainerEvent{
		Kind:       protocol.TagContainerHealthStatus,
		Name:       "api",
		Attributes: map[string]string{"status": "unhealthy"},
	})
	e, _ := m.Last()
	if e.Detail != "unhealthy" {
		t.Errorf("expected health status as detail, got %q", e.Detail)
	}
}

func TestOutboundCommand(t *testing.T) {
	m := New()
	m.Outbound(protocol.ContainerEvent{Kind: protocol.TagContainerStop, ContainerID: "abc123"})
	e, ok := m.Last()
	if !ok || e.Direction != Outbound || e.Tag != protocol.TagContainerStop {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestCommandErrorAndFaultAreMarked(t *testing.T) {
	m := New()
	m.Inbound(protocol.CommandError{Command: protocol.TagContainerList, Message: "runtime unreachable"})
	m.Fault(protocol.TagContainerStart, errors.New("socket closed"))
	m.Note("connected")

	if !m.Entries[0].Fault || !strings.Contains(m.Entries[0].Detail, "ContainerList") {
		t.Errorf("command error not marked: %+v", m.Entries[0])
	}
	if !m.Entries[1].Fault || m.Entries[1].Tag != protocol.TagContainerStart {
		t.Errorf("fault not marked: %+v", m.Entries[1])
	}
	if m.Entries[2].Fault || m.Entries[2].Tag != "" {
		t.Errorf("note should be plain: %+v", m.Entries[2])
	}
}

func TestStatusUpdateUnreachableIsFault(t *testing.T) {
	m := New()
	m.Inbound(protocol.StatusUpdate{Status: protocol.StatusUnreachable})
	m.Inbound(protocol.StatusUpdate{Status: protocol.StatusOK})
	if !m.Entries[0].Fault || m.Entries[1].Fault {
		t.Errorf("fault flags = %v %v", m.Entries[0].Fault, m.Entries[1].Fault)
	}
}

func TestCapacityDropsOldest(t *testing.T) {
	m := New()
	for i := 0; i < Capacity+20; i++ {
		m.Note("n")
	}
	m.Note("newest")
	if len(m.Entries) != Capacity {
		t.Fatalf("expected %d entries, got %d", Capacity, len(m.Entries))
	}
	if e, _ := m.Last(); e.Detail != "newest" {
		t.Errorf("last = %q", e.Detail)
	}
}

func TestScrollLeavesAndRejoinsFollow(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Note("n")
	}

	m.Scroll(-2, 3)
	if m.Follow || m.Top != 5 {
		t.Fatalf("after scroll up: follow=%v top=%d", m.Follow, m.Top)
	}
	m.Scroll(-100, 3)
	if m.Top != 0 {
		t.Errorf("top should clamp at 0, got %d", m.Top)
	}
	m.Scroll(100, 3)
	if !m.Follow || m.Top != 7 {
		t.Errorf("after scroll past end: follow=%v top=%d", m.Follow, m.Top)
	}
}

func TestViewRendersTagSubjectAndTime(t *testing.T) {
	m := New()
	fixedClock(&m)
	m.Inbound(protocol.ContainerEvent{Kind: protocol.TagContainerRestart, Name: "cache"})

	out := m.View(120, 20)
	for _, want := range []string{"EVENT LOG", "ContainerRestart", "cache", "09:30:15.250", "←"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if out := m.View(80, 20); !strings.Contains(out, "Nothing received yet.") {
		t.Errorf("expected placeholder, got %q", out)
	}
}
