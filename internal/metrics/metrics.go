// Package metrics holds the relay's Prometheus collectors. Collectors are
// registered on the default registry the first time any Record function
// runs, so they always count. Exposure is up to the caller, which mounts
// Handler only when metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "admin_api"

var (
	registerOnce sync.Once

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Client sessions currently connected.",
		},
	)
	busPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Envelopes published to the broadcast bus.",
		},
	)
	busMissed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "missed_total",
			Help:      "Envelopes skipped by lagging sessions.",
		},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands handled, by tag and outcome.",
		},
		[]string{"command", "outcome"},
	)
	upstreamState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "state",
			Help:      "Upstream event source state (0 disconnected, 1 connecting, 2 streaming).",
		},
	)
	upstreamReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "reconnects_total",
			Help:      "Failed attempts to open the runtime event feed.",
		},
	)
	upstreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "events_total",
			Help:      "Runtime events relayed, by tag.",
		},
		[]string{"tag"},
	)
	upstreamUnmapped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "unmapped_total",
			Help:      "Runtime events with no matching tag.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sessionsActive,
			busPublished,
			busMissed,
			commands,
			upstreamState,
			upstreamReconnects,
			upstreamEvents,
			upstreamUnmapped,
			httpRequests,
			httpDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func SessionOpened() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	sessionsActive.Dec()
}

func RecordPublish() {
	RegisterMetrics()
	busPublished.Inc()
}

func RecordMissed(n uint64) {
	RegisterMetrics()
	busMissed.Add(float64(n))
}

// Command outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

func RecordCommand(command, outcome string) {
	RegisterMetrics()
	commands.WithLabelValues(command, outcome).Inc()
}

func SetUpstreamState(state int) {
	RegisterMetrics()
	upstreamState.Set(float64(state))
}

func RecordReconnect() {
	RegisterMetrics()
	upstreamReconnects.Inc()
}

func RecordUpstreamEvent(tag string) {
	RegisterMetrics()
	upstreamEvents.WithLabelValues(tag).Inc()
}

func RecordUnmapped() {
	RegisterMetrics()
	upstreamUnmapped.Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
