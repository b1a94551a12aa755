package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pktwire",
			Subsystem: "server",
			Name:      "packets_total",
			Help:      "Packets exchanged by service and direction.",
		},
		[]string{"service", "direction"},
	)
	packetDataBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pktwire",
			Subsystem: "server",
			Name:      "packet_data_bytes",
			Help:      "Packet data length in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		},
		[]string{"service", "direction"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pktwire",
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Sessions accepted by service.",
		},
		[]string{"service"},
	)
	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pktwire",
			Subsystem: "server",
			Name:      "sessions_active",
			Help:      "Sessions currently being served.",
		},
		[]string{"service"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pktwire",
			Subsystem: "server",
			Name:      "session_duration_seconds",
			Help:      "Session lifetime in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pktwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests on the ops endpoint.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pktwire",
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
			packetsTotal, packetDataBytes,
			sessionsTotal, sessionsActive, sessionDuration,
			httpRequests, httpDuration,
		)
	})
}

func RecordPacket(service, direction string, dataBytes int) {
	RegisterMetrics()
	packetsTotal.WithLabelValues(service, direction).Inc()
	packetDataBytes.WithLabelValues(service, direction).Observe(float64(dataBytes))
}

func RecordSessionStart(service string) {
	RegisterMetrics()
	sessionsTotal.WithLabelValues(service).Inc()
	sessionsActive.WithLabelValues(service).Inc()
}

func RecordSessionEnd(service string, duration time.Duration) {
	RegisterMetrics()
	sessionsActive.WithLabelValues(service).Dec()
	sessionDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
