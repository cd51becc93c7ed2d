package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewStore(t *testing.T) {
	s := NewStore(0)
	if s == nil {
		t.Fatal("NewStore() returned nil")
	}
	if got := len(s.GetAll()); got != 0 {
		t.Errorf("new store has %d sessions, want 0", got)
	}
	if got := s.Count(); got != 0 {
		t.Errorf("new store Count() = %d, want 0", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore(0)
	if _, ok := s.Get("nonexistent"); ok {
		t.Error("Get for missing key returned ok=true")
	}
}

func TestAddAndGet(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	added, err := s.Add(Info{ID: "a", RemoteAddr: "127.0.0.1:5000", ConnectedAt: now})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.Number != 1 {
		t.Errorf("Number = %d, want 1", added.Number)
	}

	got, ok := s.Get("a")
	if !ok {
		t.Fatal("Get returned ok=false after Add")
	}
	if got.RemoteAddr != "127.0.0.1:5000" || !got.ConnectedAt.Equal(now) {
		t.Errorf("Get returned unexpected info: %+v", got)
	}
}

func TestNumbersIncrease(t *testing.T) {
	s := NewStore(0)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.Add(Info{ID: id}); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}
	s.Remove("b")
	d, _ := s.Add(Info{ID: "d"})
	if d.Number != 4 {
		t.Errorf("Number after removal = %d, want 4", d.Number)
	}

	all := s.GetAll()
	want := []string{"a", "c", "d"}
	if len(all) != len(want) {
		t.Fatalf("GetAll returned %d sessions, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("GetAll[%d].ID = %q, want %q", i, all[i].ID, id)
		}
	}
}

func TestMaxConnections(t *testing.T) {
	s := NewStore(2)
	s.Add(Info{ID: "a"})
	s.Add(Info{ID: "b"})
	if _, err := s.Add(Info{ID: "c"}); !errors.Is(err, ErrTooManyConnections) {
		t.Errorf("Add past limit err = %v, want ErrTooManyConnections", err)
	}

	s.Remove("a")
	if _, err := s.Add(Info{ID: "c"}); err != nil {
		t.Errorf("Add after Remove: %v", err)
	}
}

func TestRecordDelivery(t *testing.T) {
	s := NewStore(0)
	s.Add(Info{ID: "a"})
	s.RecordDelivery("a", 0)
	s.RecordDelivery("a", 5)
	s.RecordDelivery("missing", 3)
	s.RecordCommand("a")

	got, _ := s.Get("a")
	if got.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", got.Delivered)
	}
	if got.Missed != 5 {
		t.Errorf("Missed = %d, want 5", got.Missed)
	}
	if got.Commands != 1 {
		t.Errorf("Commands = %d, want 1", got.Commands)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(0)
	s.Add(Info{ID: "a", RemoteAddr: "original"})

	got, _ := s.Get("a")
	got.RemoteAddr = "mutated"

	got2, _ := s.Get("a")
	if got2.RemoteAddr != "original" {
		t.Error("Get did not return a copy; mutation leaked into store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			s.Add(Info{ID: id})
			s.RecordDelivery(id, 1)
			s.GetAll()
			s.Remove(id)
		}(i)
	}
	wg.Wait()
	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d after all removals, want 0", got)
	}
}

func TestNewIDSortable(t *testing.T) {
	prev := NewID()
	if len(prev) != 26 {
		t.Fatalf("len(NewID()) = %d, want 26", len(prev))
	}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id <= prev {
			t.Fatalf("NewID() not monotonic: %q after %q", id, prev)
		}
		prev = id
	}
}
