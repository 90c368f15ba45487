package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "session",
			Name:      "packets_sent_total",
			Help:      "Frames written to the host by opcode.",
		},
		[]string{"opcode"},
	)
	bytesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "session",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the host, headers included.",
		},
	)
	sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "session",
			Name:      "send_failures_total",
			Help:      "Outbound frames that failed to encode or write.",
		},
		[]string{"opcode"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "dispatch",
			Name:      "frames_received_total",
			Help:      "Inbound frames by message kind.",
		},
		[]string{"kind", "handled"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "dispatch",
			Name:      "decode_errors_total",
			Help:      "Inbound frames of a known kind that failed to decode.",
		},
		[]string{"kind"},
	)
	hostExceptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "dispatch",
			Name:      "host_exceptions_total",
			Help:      "Exception records reported by the host.",
		},
		[]string{"code"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status API requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsSent, bytesSent, sendFailures,
			framesReceived, decodeErrors, hostExceptions,
			httpRequests, httpDuration,
		)
	})
}

func RecordPacketSent(opcode string, size int) {
	RegisterMetrics()
	packetsSent.WithLabelValues(opcode).Inc()
	bytesSent.Add(float64(size))
}

func RecordSendFailure(opcode string) {
	RegisterMetrics()
	sendFailures.WithLabelValues(opcode).Inc()
}

func RecordFrameReceived(kind string, handled bool) {
	RegisterMetrics()
	framesReceived.WithLabelValues(kind, strconv.FormatBool(handled)).Inc()
}

func RecordDecodeError(kind string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(kind).Inc()
}

func RecordHostException(code string) {
	RegisterMetrics()
	hostExceptions.WithLabelValues(code).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
