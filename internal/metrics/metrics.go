// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conference_connections_active",
			Help: "Currently open signaling connections",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conference_rooms_active",
			Help: "Rooms with at least one participant",
		},
	)

	JoinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conference_joins_total",
			Help: "Successful room joins",
		},
	)

	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conference_messages_relayed_total",
			Help: "Signaling and chat messages relayed",
		},
		[]string{"type"},
	)

	DirectedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conference_directed_dropped_total",
			Help: "Directed messages dropped because the target was not connected",
		},
	)

	MalformedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conference_malformed_dropped_total",
			Help: "Inbound messages dropped for missing or invalid fields",
		},
	)
)
