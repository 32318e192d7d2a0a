package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gatectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	gatewayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "frames_total",
			Help:      "Gateway frames by direction and opcode.",
		},
		[]string{"alias", "direction", "op"},
	)
	gatewayDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "dispatches_total",
			Help:      "Dispatched events by handler outcome.",
		},
		[]string{"alias", "event", "outcome"},
	)
	gatewayHandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "handler_duration_seconds",
			Help:      "Parser plus callback duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"alias", "event"},
	)
	gatewayConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "connections_total",
			Help:      "Connection attempts by handshake kind and result.",
		},
		[]string{"alias", "kind", "result"},
	)
	gatewaySessionEnds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "connection_ends_total",
			Help:      "Connection teardowns by session code.",
		},
		[]string{"alias", "code"},
	)
	gatewayHeartbeatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "heartbeat_ack_latency_seconds",
			Help:      "Time between a heartbeat and its ack.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"alias"},
	)
	gatewayQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "outbound_queue_depth",
			Help:      "Payloads waiting in the outbound queue.",
		},
		[]string{"alias"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			gatewayFrames,
			gatewayDispatches,
			gatewayHandlerDuration,
			gatewayConnections,
			gatewaySessionEnds,
			gatewayHeartbeatLatency,
			gatewayQueueDepth,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrame counts one frame; direction is "in" or "out".
func RecordFrame(alias, direction, op string) {
	RegisterMetrics()
	gatewayFrames.WithLabelValues(alias, direction, op).Inc()
}

func RecordDispatch(alias, event, outcome string, duration time.Duration) {
	RegisterMetrics()
	gatewayDispatches.WithLabelValues(alias, event, outcome).Inc()
	gatewayHandlerDuration.WithLabelValues(alias, event).Observe(duration.Seconds())
}

func RecordConnection(alias, kind string, success bool) {
	RegisterMetrics()
	result := "ok"
	if !success {
		result = "error"
	}
	gatewayConnections.WithLabelValues(alias, kind, result).Inc()
}

func RecordConnectionEnd(alias, code string) {
	RegisterMetrics()
	gatewaySessionEnds.WithLabelValues(alias, code).Inc()
}

func RecordHeartbeatAck(alias string, latency time.Duration) {
	RegisterMetrics()
	gatewayHeartbeatLatency.WithLabelValues(alias).Observe(latency.Seconds())
}

func SetQueueDepth(alias string, depth int) {
	RegisterMetrics()
	gatewayQueueDepth.WithLabelValues(alias).Set(float64(depth))
}
