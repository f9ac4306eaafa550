package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_events_published_total",
		Help: "Events handed to the broker, by channel.",
	}, []string{"channel"})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_publish_failures_total",
		Help: "Broker publish failures (swallowed, never retried), by channel.",
	}, []string{"channel"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_events_consumed_total",
		Help: "Events received from the broker, by channel.",
	}, []string{"channel"})

	EventsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_events_discarded_total",
		Help: "Consumed events dropped before delivery, by channel and reason.",
	}, []string{"channel", "reason"})

	ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connected_sessions",
		Help: "Live websocket sessions attached to this process.",
	})
)
