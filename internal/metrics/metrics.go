package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// ConnectedClients tracks the number of live WebSocket connections
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_clients",
			Help: "Number of live WebSocket connections",
		},
	)

	// ActiveRooms tracks the number of rooms with at least one member
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	// UniquePrincipals tracks distinct principals across live connections
	UniquePrincipals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_unique_principals",
			Help: "Distinct principals across live connections",
		},
	)

	// MessagesEnqueuedTotal counts messages accepted into outbound queues
	MessagesEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_enqueued_total",
			Help: "Messages accepted into per-connection outbound queues",
		},
	)

	// MessagesSentTotal counts messages delivered to the wire
	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Messages delivered to the wire inside batches",
		},
	)

	// BatchesSentTotal counts flushed batches
	BatchesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_batches_sent_total",
			Help: "Batches flushed to connections",
		},
	)

	// BatchSize observes how many messages each flushed batch carried
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_batch_size",
			Help:    "Messages per flushed batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// ThrottleReschedulesTotal counts flushes delayed by the per-connection throttle
	ThrottleReschedulesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_throttle_reschedules_total",
			Help: "Flushes delayed because the throttle window had not elapsed",
		},
	)

	// EvictionsTotal counts forced disconnects by reason
	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_evictions_total",
			Help: "Forced disconnects by reason (stale, overflow, transport_error)",
		},
		[]string{"reason"},
	)

	// HeartbeatPingsTotal counts transport-level pings sent by the heartbeat tick
	HeartbeatPingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_heartbeat_pings_total",
			Help: "Transport-level pings sent by the heartbeat tick",
		},
	)

	// CommandChannelDepth tracks the hub command channel depth
	CommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_command_channel_depth",
			Help: "Current hub command channel depth",
		},
	)

	// HubStopTimeoutsTotal tracks hub stops that exceeded the stop timeout
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_hub_stop_timeouts_total",
			Help: "Hub stops that exceeded the stop timeout",
		},
	)

	// HubPanicsTotal tracks hub panic recoveries
	HubPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_hub_panics_total",
			Help: "Hub panic recoveries",
		},
	)
)

// Handshake metrics
var (
	// ConnectionsAcceptedTotal counts accepted WebSocket handshakes
	ConnectionsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_accepted_total",
			Help: "Accepted WebSocket handshakes",
		},
	)

	// ConnectionsRejectedTotal counts rejected handshakes by reason
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_rejected_total",
			Help: "Rejected WebSocket handshakes by reason (capacity, ip_limit, rate_limit)",
		},
		[]string{"reason"},
	)

	// ProtocolErrorsTotal counts malformed or unknown inbound control frames
	ProtocolErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_protocol_errors_total",
			Help: "Malformed or unknown inbound control frames (dropped, connection kept open)",
		},
	)
)

// Bridge metrics
var (
	// BridgePublishesTotal counts cross-instance publishes by status
	BridgePublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bridge_publishes_total",
			Help: "Cross-instance room publishes by status",
		},
		[]string{"status"},
	)

	// BridgeEventsReceivedTotal counts foreign-origin events re-broadcast locally
	BridgeEventsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bridge_events_received_total",
			Help: "Foreign-origin events re-broadcast into local rooms",
		},
	)

	// BridgeDroppedTotal counts publishes dropped because the outbound buffer was full
	BridgeDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bridge_dropped_total",
			Help: "Bridge publishes dropped because the outbound buffer was full",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
