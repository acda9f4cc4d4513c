package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_connected_clients",
			Help: "Open websocket connections",
		},
	)

	SlowConsumerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_slow_consumer_drops_total",
			Help: "Connections dropped because their send buffer was full",
		},
	)

	StaleEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_stale_evictions_total",
			Help: "Connections force-disconnected by the liveness sweep",
		},
	)

	// Chat metrics
	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_messages_relayed_total",
			Help: "Chat messages broadcast to a room",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_messages_dropped_total",
			Help: "Inbound chat messages dropped before broadcast",
		},
		[]string{"reason"}, // "unjoined", "rate_limited", "invalid"
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_room_joins_total",
			Help: "Successful userJoin/changeRoom operations",
		},
	)

	// History store metrics
	HistoryPagesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_history_pages_served_total",
			Help: "History pages returned to clients",
		},
	)

	HistoryStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_history_store_errors_total",
			Help: "History store calls that failed and were degraded",
		},
		[]string{"op"}, // "append", "page"
	)

	HistoryStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupchat_history_store_latency_seconds",
			Help:    "History store call latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"op"},
	)
)
