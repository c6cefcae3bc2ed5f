package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	tokensInjected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ringctl",
			Subsystem: "ring",
			Name:      "tokens_injected_total",
			Help:      "Tokens started at this peer.",
		},
		[]string{"node"},
	)
	tokensPassed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ringctl",
			Subsystem: "ring",
			Name:      "tokens_passed_total",
			Help:      "Tokens forwarded to the next holder.",
		},
		[]string{"node"},
	)
	cyclesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ringctl",
			Subsystem: "ring",
			Name:      "cycles_completed_total",
			Help:      "Full laps completed at the origin peer.",
		},
		[]string{"node"},
	)
	ringHalted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ringctl",
			Subsystem: "ring",
			Name:      "halted",
			Help:      "1 while the ring is halted at this peer.",
		},
		[]string{"node"},
	)
	hopLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ringctl",
			Subsystem: "ring",
			Name:      "hop_latency_seconds",
			Help:      "Wall-clock time a token spent reaching this peer.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ringctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ringctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			tokensInjected, tokensPassed, cyclesCompleted, ringHalted,
			hopLatency, httpRequests, httpDuration,
		)
	})
}

func RecordTokenInjected(node string) {
	RegisterMetrics()
	tokensInjected.WithLabelValues(node).Inc()
}

// RecordHop counts one forwarded token and observes how long the inbound
// copy spent in flight.
func RecordHop(node string, latencySeconds float64) {
	RegisterMetrics()
	tokensPassed.WithLabelValues(node).Inc()
	if latencySeconds >= 0 {
		hopLatency.WithLabelValues(node).Observe(latencySeconds)
	}
}

func RecordCycleCompleted(node string) {
	RegisterMetrics()
	cyclesCompleted.WithLabelValues(node).Inc()
}

func SetRingHalted(node string, halted bool) {
	RegisterMetrics()
	v := 0.0
	if halted {
		v = 1.0
	}
	ringHalted.WithLabelValues(node).Set(v)
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
