package containers

import (
	"strings"
	"testing"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

func sample() []protocol.ContainerSummary {
	return []protocol.ContainerSummary{
		{ID: "aaa", Names: []string{"/web"}, Image: "nginx", State: "running"},
		{ID: "bbb", Names: []string{"/db"}, Image: "postgres", State: "exited"},
		{ID: "0123456789abcdef", Image: "busybox", State: "created"},
	}
}

func TestNavigationWraps(t *testing.T) {
	m := New()
	m.SetItems(sample())

	m.Prev()
	if m.Selected != 2 {
		t.Fatalf("Prev from 0 = %d, want 2", m.Selected)
	}
	m.Next()
	if m.Selected != 0 {
		t.Fatalf("Next from 2 = %d, want 0", m.Selected)
	}
}

func TestSetItemsKeepsSelection(t *testing.T) {
	m := New()
	m.SetItems(sample())
	m.Next()

	reordered := sample()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	m.SetItems(reordered)

	cur, ok := m.Current()
	if !ok || cur.ID != "bbb" {
		t.Errorf("Current() = %+v, want bbb", cur)
	}

	m.SetItems(nil)
	if _, ok := m.Current(); ok {
		t.Error("empty list should have no current container")
	}
}

func TestSetStateAndCounts(t *testing.T) {
	m := New()
	m.SetItems(sample())

	if !m.SetState("bbb", "running") {
		t.Fatal("SetState(bbb) = false")
	}
	if m.SetState("zzz", "running") {
		t.Error("SetState on unknown id should report false")
	}
	running, other := m.Counts()
	if running != 2 || other != 1 {
		t.Errorf("Counts() = %d, %d, want 2, 1", running, other)
	}
}

func TestDisplayName(t *testing.T) {
	items := sample()
	if got := DisplayName(items[0]); got != "web" {
		t.Errorf("DisplayName = %q, want web", got)
	}
	if got := DisplayName(items[2]); got != "0123456789ab" {
		t.Errorf("DisplayName = %q, want short id", got)
	}
}

func TestViewEmptyAndPopulated(t *testing.T) {
	m := New()
	if !strings.Contains(m.View(), "No containers") {
		t.Error("empty view should say no containers")
	}
	m.SetItems(sample())
	v := m.View()
	for _, want := range []string{"web", "postgres", "> "} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
