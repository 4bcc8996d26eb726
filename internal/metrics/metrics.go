package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})

	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rooms_created_total",
		Help: "Chat rooms created",
	})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Chat messages persisted",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_published_total",
		Help: "Events handed to the broadcast transport, by type",
	}, []string{"type"})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_dropped_total",
		Help: "Events dropped because the gateway queue was full",
	})

	BroadcastFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_broadcast_failures_total",
		Help: "Publish or sink failures, by target",
	}, []string{"target"})

	SinkDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_sink_events_dropped_total",
		Help: "Events a sink skipped because its own queue was full, by sink",
	}, []string{"sink"})

	SlowClientsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_slow_clients_evicted_total",
		Help: "Websocket clients dropped because their send buffer was full",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
