package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presenced"

// Metrics holds the server's prometheus instruments behind a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	HandshakeRejections *prometheus.CounterVec
	PresenceUpdates     *prometheus.CounterVec
	BroadcastEvents     *prometheus.CounterVec
	DroppedEvents       *prometheus.CounterVec
}

// New builds a Metrics with all instruments registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open websocket connections.",
		}),
		HandshakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_rejections_total",
			Help:      "Handshakes rejected before joining a room, by error code.",
		}, []string{"code"}),
		PresenceUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_updates_total",
			Help:      "Presence updates applied, by room.",
		}, []string{"room"}),
		BroadcastEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_events_total",
			Help:      "Events fanned out to room peers, by room.",
		}, []string{"room"}),
		DroppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Events dropped because a session's buffer was full, by room.",
		}, []string{"room"}),
	}
}

// Handler exposes the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
