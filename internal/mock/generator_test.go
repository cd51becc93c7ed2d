package mock

import (
	"context"
	"testing"
	"time"
)

func TestGenerator_AdvanceFollowsPatterns(t *testing.T) {
	rt := newTestRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, _, err := rt.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	gen := NewGenerator(rt, time.Hour)
	seen := map[string]int{}
	for tick := 1; tick <= 12; tick++ {
		gen.advance(tick)
		for _, ev := range drainEvents(feed) {
			seen[ev.ID+"/"+ev.Action]++
		}
	}

	wants := []string{
		"mock-worker/die",
		"mock-worker/start",
		"mock-api/restart",
		"mock-cache/pause",
		"mock-cache/unpause",
		"mock-web/health_status: healthy",
	}
	for _, want := range wants {
		if seen[want] == 0 {
			t.Errorf("no %q event after 12 ticks (seen %v)", want, seen)
		}
	}
	for key := range seen {
		if len(key) >= 7 && key[:7] == "mock-db" {
			t.Errorf("stable container produced %q", key)
		}
	}
}

func TestGenerator_StopsWithContext(t *testing.T) {
	rt := newTestRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	feed, _, err := rt.Events(context.Background())
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	gen := NewGenerator(rt, 5*time.Millisecond)
	gen.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-feed:
			cancel()
			return
		case <-deadline:
			cancel()
			t.Fatal("generator produced no events")
		}
	}
}
