package realtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Config holds the hub's delivery tunables.
type Config struct {
	// BatchInterval is how long an outbound queue may sit before its first
	// pending message forces a flush.
	BatchInterval time.Duration
	// MaxBatchSize caps messages per wire write; reaching it flushes
	// immediately instead of waiting for the timer.
	MaxBatchSize int
	// ThrottleInterval is the minimum spacing between two flush writes to
	// the same connection. Throttling delays, it never discards.
	ThrottleInterval time.Duration
	// HeartbeatInterval drives liveness probing; peers idle longer than
	// twice this are evicted as stale.
	HeartbeatInterval time.Duration
	// MaxQueueDepth bounds a single connection's pending queue. A producer
	// outrunning a consumer by this much gets the consumer disconnected.
	MaxQueueDepth int
	// StatsInterval is how often the hub logs aggregate connection counts.
	StatsInterval time.Duration
}

// readDeadline is how long the transport read may go without traffic before
// the connection is considered dead at the socket level. Pings go out every
// HeartbeatInterval, so three intervals gives a well-behaved peer two full
// chances to answer before the deadline lapses. Derived rather than fixed:
// a fixed deadline shorter than the ping interval would kill every
// connection before the first ping is ever sent.
func (c Config) readDeadline() time.Duration {
	return 3 * c.HeartbeatInterval
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BatchInterval:     100 * time.Millisecond,
		MaxBatchSize:      50,
		ThrottleInterval:  50 * time.Millisecond,
		HeartbeatInterval: 30 * time.Second,
		MaxQueueDepth:     1000,
		StatsInterval:     60 * time.Second,
	}
}

// --- Commands ---

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	principal    string
	replyChannel chan string
}

type unregisterCmd struct {
	baseHubCmd
	connectionID string
	reason       string
}

type touchCmd struct {
	baseHubCmd
	connectionID string
	inbound      bool
}

type sendCmd struct {
	baseHubCmd
	connectionID string
	message      domain.OutboundMessage
}

type sendImmediateCmd struct {
	baseHubCmd
	connectionID string
	message      domain.OutboundMessage
}

type broadcastRoomCmd struct {
	baseHubCmd
	room    string
	message domain.OutboundMessage
	exclude string
	relayed bool
}

type broadcastAllCmd struct {
	baseHubCmd
	message domain.OutboundMessage
	exclude string
}

type joinCmd struct {
	baseHubCmd
	connectionID string
	room         string
}

type leaveCmd struct {
	baseHubCmd
	connectionID string
	room         string
}

type flushCmd struct {
	baseHubCmd
	connectionID string
}

type metricsRequestCmd struct {
	baseHubCmd
	connectionID string
}

type snapshotCmd struct {
	baseHubCmd
	replyChannel chan domain.StatsSnapshot
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the broadcast router: the single public surface producers use to
// reach connected clients. One goroutine owns the registry, the room index
// and every outbound queue; batch timers and the heartbeat tick re-enter
// through the command channel, so no flush can race a teardown.
type Hub struct {
	cmdCh        chan hubCmd
	clock        clockwork.Clock
	config       Config
	registry     *registry
	rooms        *roomIndex
	relay        domain.RoomRelay
	onConnect    func(connectionID, principal string)
	onDisconnect func(connectionID, principal, reason string)
	done         chan struct{}
	stopTimeout  time.Duration
}

// NewHub creates and starts the hub actor.
// relay mirrors room broadcasts to other instances (nil disables mirroring).
// onConnect/onDisconnect are observer callbacks, invoked asynchronously.
func NewHub(cfg Config, relay domain.RoomRelay, onConnect func(connectionID, principal string), onDisconnect func(connectionID, principal, reason string), clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:        make(chan hubCmd, 256),
		clock:        clock,
		config:       cfg,
		registry:     newRegistry(clock),
		rooms:        newRoomIndex(),
		relay:        relay,
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
		done:         make(chan struct{}),
		stopTimeout:  stopTimeout,
	}
	go h.run()
	return h
}

// --- Public API ---

// Register accepts a new transport session and returns its connection id.
// The accept acknowledgment is written to the client before this returns a
// command to any other caller.
func (h *Hub) Register(conn *websocket.Conn, principal string) (string, error) {
	replyCh := make(chan string, 1)
	if !h.post(registerCmd{connection: conn, principal: principal, replyChannel: replyCh}) {
		return "", fmt.Errorf("hub is stopped")
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case id := <-replyCh:
		return id, nil
	case <-timer.Chan():
		return "", fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister tears down a connection after an explicit close or read error.
// Idempotent: unknown ids are a no-op.
func (h *Hub) Unregister(connectionID string) {
	h.post(unregisterCmd{connectionID: connectionID, reason: domain.ReasonClosed})
}

// Touch records inbound activity. inbound=true also counts a received
// message; pongs pass false.
func (h *Hub) Touch(connectionID string, inbound bool) {
	h.post(touchCmd{connectionID: connectionID, inbound: inbound})
}

// Send enqueues a message for one connection. Unknown ids are a silent
// no-op: delivery is fire-and-forget and producers are never blocked.
func (h *Hub) Send(connectionID string, message domain.OutboundMessage) {
	h.post(sendCmd{connectionID: connectionID, message: message})
}

// SendImmediate bypasses batching for control-plane messages. Silent no-op
// if the connection is gone or its write buffer is full.
func (h *Hub) SendImmediate(connectionID string, message domain.OutboundMessage) {
	h.post(sendImmediateCmd{connectionID: connectionID, message: message})
}

// BroadcastToRoom enqueues a message for every member of the room except
// exclude (pass "" to exclude nobody). Membership is snapshotted at dispatch
// time.
func (h *Hub) BroadcastToRoom(room string, message domain.OutboundMessage, exclude string) {
	h.post(broadcastRoomCmd{room: room, message: message, exclude: exclude})
}

// DispatchRoom delivers a relay-origin message to local room members only,
// without mirroring it back out. Used by the cross-instance bridge.
func (h *Hub) DispatchRoom(room string, message domain.OutboundMessage) {
	h.post(broadcastRoomCmd{room: room, message: message, relayed: true})
}

// BroadcastAll enqueues a message for every registered connection except
// exclude.
func (h *Hub) BroadcastAll(message domain.OutboundMessage, exclude string) {
	h.post(broadcastAllCmd{message: message, exclude: exclude})
}

// Join adds the connection to a room, creating it if needed. Idempotent.
func (h *Hub) Join(connectionID, room string) {
	h.post(joinCmd{connectionID: connectionID, room: room})
}

// Leave removes the connection from a room. Leaving a room one never joined
// is a no-op.
func (h *Hub) Leave(connectionID, room string) {
	h.post(leaveCmd{connectionID: connectionID, room: room})
}

// RequestMetrics writes a metrics response directly to the connection.
func (h *Hub) RequestMetrics(connectionID string) {
	h.post(metricsRequestCmd{connectionID: connectionID})
}

// ClientCount returns the number of live connections, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if !h.post(clientCountCmd{replyChannel: replyCh}) {
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Snapshot returns aggregate counters and per-connection metric snapshots.
func (h *Hub) Snapshot() domain.StatsSnapshot {
	replyCh := make(chan domain.StatsSnapshot, 1)
	if !h.post(snapshotCmd{replyChannel: replyCh}) {
		return domain.StatsSnapshot{}
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case snap := <-replyCh:
		return snap
	case <-timer.Chan():
		slog.Warn("Snapshot timed out", "timeout", commandTimeout)
		return domain.StatsSnapshot{}
	}
}

// Stop shuts the hub down, closing every client connection. Blocks until the
// actor goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.post(stopCmd{})

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
		metrics.HubStopTimeoutsTotal.Inc()
	}
}

// post submits a command unless the hub has already stopped.
func (h *Hub) post(cmd hubCmd) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// --- Actor loop ---

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			metrics.HubPanicsTotal.Inc()
			h.closeAll(domain.ReasonShutdown)
		}
	}()
	defer close(h.done)

	heartbeat := h.clock.NewTicker(h.config.HeartbeatInterval)
	defer heartbeat.Stop()

	stats := h.clock.NewTicker(h.config.StatsInterval)
	defer stats.Stop()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.handleUnregister(c)
			case touchCmd:
				h.handleTouch(c)
			case sendCmd:
				h.handleSend(c)
			case sendImmediateCmd:
				h.handleSendImmediate(c)
			case broadcastRoomCmd:
				h.handleBroadcastRoom(c)
			case broadcastAllCmd:
				h.handleBroadcastAll(c)
			case joinCmd:
				h.handleJoin(c)
			case leaveCmd:
				h.handleLeave(c)
			case flushCmd:
				h.handleFlush(c)
			case metricsRequestCmd:
				h.handleMetricsRequest(c)
			case snapshotCmd:
				c.replyChannel <- h.snapshot()
			case clientCountCmd:
				c.replyChannel <- h.registry.count()
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-heartbeat.Chan():
			h.handleHeartbeat()
		case <-stats.Chan():
			h.handleStats()
		}
	}
}

// --- Handlers (actor goroutine only) ---

func (h *Hub) handleRegister(c registerCmd) {
	var cs *connState
	cw := newClientWriter(c.connection, h.config.readDeadline(), func() {
		// Runs on the read goroutine once the peer answers a ping.
		h.Touch(cs.id, false)
	})
	cs = h.registry.register(cw, c.principal)

	ack, err := acceptFrame(cs.id, h.config.BatchInterval, h.config.MaxBatchSize)
	if err != nil {
		slog.Error("Failed to marshal accept frame", "error", err)
	} else {
		cw.send(ack)
	}

	metrics.ConnectedClients.Set(float64(h.registry.count()))
	slog.Debug("Client connected", "connection_id", cs.id, "principal", cs.principal, "total_clients", h.registry.count())

	if h.onConnect != nil {
		go h.onConnect(cs.id, cs.principal)
	}
	c.replyChannel <- cs.id
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	cs, ok := h.registry.get(c.connectionID)
	if !ok {
		return
	}
	h.teardown(cs, c.reason)
}

func (h *Hub) handleTouch(c touchCmd) {
	h.registry.touch(c.connectionID)
	if c.inbound {
		if cs, ok := h.registry.get(c.connectionID); ok {
			cs.messagesReceived++
		}
	}
}

func (h *Hub) handleSend(c sendCmd) {
	cs, ok := h.registry.get(c.connectionID)
	if !ok {
		return
	}

	if cs.queue.depth() >= h.config.MaxQueueDepth {
		slog.Warn("Outbound queue overflow, evicting connection",
			"connection_id", cs.id,
			"depth", cs.queue.depth(),
		)
		metrics.EvictionsTotal.WithLabelValues(domain.ReasonOverflow).Inc()
		h.teardown(cs, domain.ReasonOverflow)
		return
	}

	msg := c.message
	msg.EnqueuedAt = h.clock.Now()
	cs.queue.push(msg)
	metrics.MessagesEnqueuedTotal.Inc()

	if cs.queue.depth() >= h.config.MaxBatchSize {
		h.stopTimer(cs)
		h.flush(cs)
		return
	}
	if !cs.timerSet {
		h.scheduleFlush(cs, h.config.BatchInterval)
	}
}

func (h *Hub) handleSendImmediate(c sendImmediateCmd) {
	cs, ok := h.registry.get(c.connectionID)
	if !ok {
		return
	}
	data, err := immediateFrame(c.message)
	if err != nil {
		slog.Error("Failed to marshal immediate frame", "error", err)
		return
	}
	cs.writer.send(data)
}

func (h *Hub) handleBroadcastRoom(c broadcastRoomCmd) {
	for _, id := range h.rooms.membersOf(c.room) {
		if id == c.exclude {
			continue
		}
		h.handleSend(sendCmd{connectionID: id, message: c.message})
	}
	if !c.relayed && h.relay != nil {
		h.relay.PublishRoom(c.room, c.message)
	}
}

func (h *Hub) handleBroadcastAll(c broadcastAllCmd) {
	for _, id := range h.registry.ids() {
		if id == c.exclude {
			continue
		}
		h.handleSend(sendCmd{connectionID: id, message: c.message})
	}
}

func (h *Hub) handleJoin(c joinCmd) {
	if _, ok := h.registry.get(c.connectionID); !ok {
		return
	}
	h.rooms.join(c.connectionID, c.room)
	metrics.ActiveRooms.Set(float64(h.rooms.count()))
	slog.Debug("Joined room", "connection_id", c.connectionID, "room", c.room)
}

func (h *Hub) handleLeave(c leaveCmd) {
	h.rooms.leave(c.connectionID, c.room)
	metrics.ActiveRooms.Set(float64(h.rooms.count()))
}

func (h *Hub) handleFlush(c flushCmd) {
	cs, ok := h.registry.get(c.connectionID)
	if !ok {
		// Timer outlived the connection; teardown already cancelled state.
		return
	}
	cs.timerSet = false
	h.flush(cs)
}

func (h *Hub) handleMetricsRequest(c metricsRequestCmd) {
	cs, ok := h.registry.get(c.connectionID)
	if !ok {
		return
	}
	data, err := metricsFrame(cs.metrics(), h.clock.Now())
	if err != nil {
		slog.Error("Failed to marshal metrics frame", "error", err)
		return
	}
	cs.writer.send(data)
}

func (h *Hub) handleHeartbeat() {
	now := h.clock.Now()
	cutoff := 2 * h.config.HeartbeatInterval

	var stale []*connState
	for _, id := range h.registry.ids() {
		cs, _ := h.registry.get(id)
		if now.Sub(cs.lastActivity) > cutoff {
			stale = append(stale, cs)
			continue
		}
		if cs.writer.ping() {
			metrics.HeartbeatPingsTotal.Inc()
		}
	}

	for _, cs := range stale {
		slog.Info("Evicting stale connection",
			"connection_id", cs.id,
			"idle", now.Sub(cs.lastActivity),
		)
		metrics.EvictionsTotal.WithLabelValues(domain.ReasonStale).Inc()
		h.teardown(cs, domain.ReasonStale)
	}
}

func (h *Hub) handleStats() {
	connections := h.registry.count()
	principals := h.registry.uniquePrincipals()
	slog.Info("Connection stats",
		"connections", connections,
		"unique_principals", principals,
		"rooms", h.rooms.count(),
	)
	metrics.ConnectedClients.Set(float64(connections))
	metrics.UniquePrincipals.Set(float64(principals))
	metrics.ActiveRooms.Set(float64(h.rooms.count()))
	metrics.CommandChannelDepth.Set(float64(len(h.cmdCh)))
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "connections", h.registry.count())
	h.closeAll(domain.ReasonShutdown)
}

// --- Internals (actor goroutine only) ---

func (h *Hub) scheduleFlush(cs *connState, d time.Duration) {
	id := cs.id
	cs.timerSet = true
	cs.timer = h.clock.AfterFunc(d, func() {
		h.post(flushCmd{connectionID: id})
	})
}

func (h *Hub) stopTimer(cs *connState) {
	if cs.timerSet {
		cs.timer.Stop()
		cs.timerSet = false
	}
}

// flush writes one batch to the connection, honoring the throttle window.
// Throttled flushes are rescheduled for the remaining wait; messages are
// never dropped by throttling.
func (h *Hub) flush(cs *connState) {
	if cs.queue.depth() == 0 {
		return
	}

	now := h.clock.Now()
	if !cs.queue.lastFlush.IsZero() {
		if wait := h.config.ThrottleInterval - now.Sub(cs.queue.lastFlush); wait > 0 {
			metrics.ThrottleReschedulesTotal.Inc()
			h.stopTimer(cs)
			h.scheduleFlush(cs, wait)
			return
		}
	}

	msgs := cs.queue.take(h.config.MaxBatchSize)
	batch := domain.Batch{Messages: msgs, Remaining: cs.queue.depth()}
	data, err := batchFrame(batch)
	if err != nil {
		// The taken messages are unrecoverable, but the rest of the queue
		// must not stall waiting for the next enqueue.
		slog.Error("Failed to marshal batch frame, dropping batch",
			"connection_id", cs.id,
			"dropped", len(msgs),
			"error", err,
		)
		if cs.queue.depth() > 0 && !cs.timerSet {
			h.scheduleFlush(cs, h.config.BatchInterval)
		}
		return
	}

	if !cs.writer.send(data) {
		slog.Warn("Write buffer full, evicting slow client", "connection_id", cs.id)
		metrics.EvictionsTotal.WithLabelValues(domain.ReasonError).Inc()
		h.teardown(cs, domain.ReasonError)
		return
	}

	cs.queue.lastFlush = now
	cs.batchesSent++
	cs.messagesSent += int64(len(msgs))
	metrics.BatchesSentTotal.Inc()
	metrics.MessagesSentTotal.Add(float64(len(msgs)))
	metrics.BatchSize.Observe(float64(len(msgs)))

	if cs.queue.depth() > 0 {
		h.scheduleFlush(cs, h.config.BatchInterval)
	}
}

// teardown cascades a connection's destruction: room membership first, so no
// further room broadcast can target it, then the queue and its timer, then
// the registry record.
func (h *Hub) teardown(cs *connState, reason string) {
	h.rooms.leaveAll(cs.id)
	h.stopTimer(cs)
	cs.queue.drop()

	switch reason {
	case domain.ReasonShutdown:
		cs.writer.stopGraceful("Server shutting down")
	case domain.ReasonStale:
		cs.writer.stopGraceful("Heartbeat timeout")
	default:
		cs.writer.stop()
	}

	h.registry.remove(cs.id)
	metrics.ConnectedClients.Set(float64(h.registry.count()))
	metrics.ActiveRooms.Set(float64(h.rooms.count()))
	slog.Debug("Client disconnected", "connection_id", cs.id, "reason", reason)

	if h.onDisconnect != nil {
		go h.onDisconnect(cs.id, cs.principal, reason)
	}
}

func (h *Hub) closeAll(reason string) {
	for _, id := range h.registry.ids() {
		if cs, ok := h.registry.get(id); ok {
			h.teardown(cs, reason)
		}
	}
}

func (h *Hub) snapshot() domain.StatsSnapshot {
	snap := domain.StatsSnapshot{
		Connections:      h.registry.count(),
		UniquePrincipals: h.registry.uniquePrincipals(),
		Rooms:            h.rooms.count(),
	}
	snap.Clients = make([]domain.ClientMetrics, 0, snap.Connections)
	for _, id := range h.registry.ids() {
		cs, _ := h.registry.get(id)
		snap.MessagesSent += cs.messagesSent
		snap.MessagesReceived += cs.messagesReceived
		snap.BatchesSent += cs.batchesSent
		snap.Clients = append(snap.Clients, cs.metrics())
	}
	return snap
}
