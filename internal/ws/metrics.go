package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "item_recovery",
		Subsystem: "ws",
		Name:      "connections_active",
		Help:      "Number of open websocket connections.",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "item_recovery",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Inbound events processed, by type and outcome.",
	}, []string{"type", "outcome"})

	messagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "item_recovery",
		Subsystem: "chat",
		Name:      "messages_appended_total",
		Help:      "Messages durably appended to conversations.",
	})

	droppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "item_recovery",
		Subsystem: "ws",
		Name:      "dropped_sends_total",
		Help:      "Outbound events dropped because a client send buffer was full.",
	})
)
