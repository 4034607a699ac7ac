package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of authenticated connections in the registry.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of authenticated client connections",
		},
	)

	// EventsDispatched tracks relay events by kind and outcome.
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Total number of events consumed by the dispatcher, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// PacketsSent tracks packets delivered to client connections by verb.
	PacketsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_packets_sent_total",
			Help: "Total number of packets delivered to clients, by verb",
		},
		[]string{"verb"},
	)

	// HandshakeFailures tracks failed authentication handshakes by error type.
	HandshakeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_handshake_failures_total",
			Help: "Total number of failed connection handshakes, by error type",
		},
		[]string{"error_type"},
	)
)
