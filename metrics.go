package sioclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "sioclient"

type metrics struct {
	connects          prometheus.Counter
	disconnects       *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	reconnectFailures prometheus.Counter
	frames            *prometheus.CounterVec
	decodeErrors      prometheus.Counter
	pendingAcks       prometheus.Gauge
	ackDuration       prometheus.Histogram
}

// newMetrics builds the client collectors. With a nil reg they are created
// but never registered. A registerer takes the collectors of one client only.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connects_total",
			Help:      "Successful namespace connections, reconnections included",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "disconnects_total",
			Help:      "Disconnections by reason",
		}, []string{"reason"}),
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts started",
		}),
		reconnectFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnect_failures_total",
			Help:      "Times the client gave up reconnecting",
		}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "Transport frames by direction and kind",
		}, []string{"direction", "kind"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they could not be decoded",
		}),
		pendingAcks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_acks",
			Help:      "Emitted calls waiting for an acknowledgement",
		}),
		ackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ack_duration_seconds",
			Help:      "Time between an emit and its acknowledgement",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func frameKind(binary bool) string {
	if binary {
		return "binary"
	}
	return "text"
}
