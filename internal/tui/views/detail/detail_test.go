package detail

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

func TestNewIndentsInspectDocument(t *testing.T) {
	m := New(protocol.ContainerSummary{}, protocol.ContainerInspect{
		ContainerID: "abc",
		Container:   json.RawMessage(`{"Id":"abc","State":{"Running":true}}`),
	})
	if m.Summary.ID != "abc" {
		t.Errorf("Summary.ID = %q, want abc", m.Summary.ID)
	}
	if len(m.Lines) < 4 {
		t.Fatalf("expected indented lines, got %q", m.Lines)
	}
	if !strings.HasPrefix(m.Lines[1], "  \"Id\"") {
		t.Errorf("line 1 = %q", m.Lines[1])
	}
}

func TestScrollBounds(t *testing.T) {
	m := Model{Lines: []string{"a", "b", "c"}}
	m.ScrollDown(10)
	if m.Offset != 2 {
		t.Errorf("Offset = %d, want 2", m.Offset)
	}
	m.ScrollUp(10)
	if m.Offset != 0 {
		t.Errorf("Offset = %d, want 0", m.Offset)
	}
}

func TestViewShowsSummary(t *testing.T) {
	m := New(protocol.ContainerSummary{
		ID:      "abc",
		Names:   []string{"/web"},
		Image:   "nginx",
		State:   "running",
		Created: time.Now().Add(-2 * time.Hour).Unix(),
		Ports:   []protocol.Port{{PrivatePort: 80, PublicPort: 8080, Type: "tcp"}},
	}, protocol.ContainerInspect{ContainerID: "abc"})

	v := m.View(40)
	for _, want := range []string{"web", "nginx", "running", "8080→80/tcp", "waiting for runtime"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(time.Now().Add(-3 * 24 * time.Hour)); got != "3d ago" {
		t.Errorf("formatAge = %q", got)
	}
}
