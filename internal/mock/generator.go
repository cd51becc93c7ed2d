package mock

import (
	"context"
	"time"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

// Churn patterns understood by the Generator.
const (
	PatternStable   = "stable"   // never changes on its own
	PatternFlapping = "flapping" // dies and comes back
	PatternRestart  = "restart"  // restarted on a fixed cadence
	PatternPausing  = "pausing"  // paused and unpaused
	PatternHealth   = "health"   // reports health checks
)

// DemoContainers returns the fixture set used by --mock mode.
func DemoContainers(now time.Time) []Container {
	web := []protocol.Port{{IP: "0.0.0.0", PrivatePort: 80, PublicPort: 8080, Type: "tcp"}}
	return []Container{
		{
			ID: "mock-web", Name: "web", Image: "nginx:1.27", Command: "nginx -g 'daemon off;'",
			State: StateRunning, Pattern: PatternHealth, Created: now.Add(-72 * time.Hour), Started: now.Add(-3 * time.Hour),
			Ports: web, Labels: map[string]string{"com.docker.compose.service": "web"},
		},
		{
			ID: "mock-api", Name: "api", Image: "ghcr.io/example/api:2.4.1", Command: "/app/api serve",
			State: StateRunning, Pattern: PatternRestart, Created: now.Add(-48 * time.Hour), Started: now.Add(-40 * time.Minute),
			Labels: map[string]string{"com.docker.compose.service": "api"},
		},
		{
			ID: "mock-worker", Name: "worker", Image: "ghcr.io/example/worker:2.4.1", Command: "/app/worker",
			State: StateRunning, Pattern: PatternFlapping, Created: now.Add(-48 * time.Hour), Started: now.Add(-5 * time.Minute),
		},
		{
			ID: "mock-db", Name: "db", Image: "postgres:16", Command: "postgres",
			State: StateRunning, Pattern: PatternStable, Created: now.Add(-240 * time.Hour), Started: now.Add(-240 * time.Hour),
			Ports: []protocol.Port{{PrivatePort: 5432, Type: "tcp"}},
		},
		{
			ID: "mock-cache", Name: "cache", Image: "redis:7", Command: "redis-server",
			State: StateRunning, Pattern: PatternPausing, Created: now.Add(-24 * time.Hour), Started: now.Add(-24 * time.Hour),
		},
		{
			ID: "mock-migrate", Name: "migrate", Image: "ghcr.io/example/api:2.4.1", Command: "/app/api migrate",
			State: StateExited, Pattern: PatternStable, Created: now.Add(-48 * time.Hour), Started: now.Add(-48 * time.Hour),
		},
	}
}

// Generator drives a Runtime's containers through their churn patterns so
// the event feed has something to say in --mock mode.
type Generator struct {
	rt       *Runtime
	interval time.Duration
}

func NewGenerator(rt *Runtime, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Generator{rt: rt, interval: interval}
}

// Start launches the churn loop; it stops when ctx is done.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			g.advance(tick)
		}
	}
}

// advance applies one tick to every container.
func (g *Generator) advance(tick int) {
	for _, c := range g.snapshot() {
		switch c.Pattern {
		case PatternFlapping:
			g.advanceFlapping(c, tick)
		case PatternRestart:
			if tick%6 == 0 && c.State == StateRunning {
				g.rt.transition(c.ID, StateRunning, "kill", "die", "start", "restart")
			}
		case PatternPausing:
			g.advancePausing(c, tick)
		case PatternHealth:
			if tick%3 == 0 && c.State == StateRunning {
				g.rt.transition(c.ID, StateRunning, "health_status: healthy")
			}
		}
	}
}

func (g *Generator) advanceFlapping(c Container, tick int) {
	switch {
	case c.State == StateRunning && tick%4 == 0:
		g.rt.transition(c.ID, StateExited, "die")
	case c.State == StateExited && tick%4 == 2:
		g.rt.transition(c.ID, StateRunning, "start")
	}
}

func (g *Generator) advancePausing(c Container, tick int) {
	if tick%5 != 0 {
		return
	}
	switch c.State {
	case StateRunning:
		g.rt.transition(c.ID, StatePaused, "pause")
	case StatePaused:
		g.rt.transition(c.ID, StateRunning, "unpause")
	}
}

func (g *Generator) snapshot() []Container {
	g.rt.mu.Lock()
	defer g.rt.mu.Unlock()
	out := make([]Container, 0, len(g.rt.containers))
	for _, c := range g.rt.containers {
		out = append(out, *c)
	}
	return out
}
