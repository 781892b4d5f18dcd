package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "gateway_requests_total",
		Help:      "Gateway requests by action and outcome.",
	}, []string{"action", "outcome"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-user rate limiter.",
	})

	NotificationsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "notifications_written_total",
		Help:      "Notification records written by fan-out.",
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "notification_failures_total",
		Help:      "Fan-out batches that failed to persist.",
	})

	TypingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "typing_events_total",
		Help:      "Typing events relayed through the presence channel.",
	}, []string{"is_typing"})

	HubConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsync",
		Name:      "hub_connections",
		Help:      "Open websocket connections.",
	})
)

func ObserveTyping(isTyping bool) {
	TypingEvents.WithLabelValues(strconv.FormatBool(isTyping)).Inc()
}
