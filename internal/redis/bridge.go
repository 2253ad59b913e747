package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
	"github.com/jonathanprocter/practice-intelligently-sub010/internal/metrics"
)

const (
	bridgeChannel     = "realtime:rooms"
	publishBufferSize = 256
	publishTimeout    = 2 * time.Second
)

// localBroadcaster delivers a relay-origin message to local room members
// without mirroring it back out.
type localBroadcaster interface {
	DispatchRoom(room string, message domain.OutboundMessage)
}

// bridgeEvent is the on-wire Pub/Sub envelope. Origin filters out our own
// publishes on the way back in.
type bridgeEvent struct {
	Origin    string          `json:"origin"`
	Room      string          `json:"room"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Bridge mirrors local room broadcasts to other instances via Redis Pub/Sub.
// Implements domain.RoomRelay.
type Bridge struct {
	rdb        *goredis.Client
	hub        localBroadcaster
	instanceID string
	publishCh  chan bridgeEvent
	breaker    circuitbreaker.CircuitBreaker[any]
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewBridge creates a bridge. instanceID must be unique per process; it is
// only used to suppress echo of our own publishes.
func NewBridge(rdb *goredis.Client, hub localBroadcaster, instanceID string) *Bridge {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "bridge",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("bridge", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("bridge").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &Bridge{
		rdb:        rdb,
		hub:        hub,
		instanceID: instanceID,
		publishCh:  make(chan bridgeEvent, publishBufferSize),
		breaker:    cb,
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// Start launches the publish worker and the subscriber loop.
func (b *Bridge) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	sub := b.rdb.Subscribe(runCtx, bridgeChannel)
	// Force the subscription to establish so a dead Redis fails fast.
	if _, err := sub.Receive(runCtx); err != nil {
		cancel()
		_ = sub.Close()
		return err
	}

	b.wg.Add(2)
	go b.publishLoop(runCtx)
	go b.subscribeLoop(runCtx, sub)
	return nil
}

// PublishRoom queues a room broadcast for mirroring. Never blocks: if the
// buffer is full the event is dropped, consistent with fire-and-forget
// delivery.
func (b *Bridge) PublishRoom(room string, message domain.OutboundMessage) {
	ev := bridgeEvent{
		Origin:    b.instanceID,
		Room:      room,
		Type:      message.Type,
		Data:      message.Payload,
		Timestamp: message.EnqueuedAt.UnixMilli(),
	}
	select {
	case b.publishCh <- ev:
	default:
		metrics.BridgeDroppedTotal.Inc()
	}
}

// Close stops both loops and waits for them to exit.
func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.publishCh:
			b.publish(ctx, ev)
		}
	}
}

func (b *Bridge) publish(ctx context.Context, ev bridgeEvent) {
	if !b.breaker.TryAcquirePermit() {
		metrics.BridgePublishesTotal.WithLabelValues("circuit_open").Inc()
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal bridge event", "error", err)
		b.breaker.RecordSuccess()
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	err = b.rdb.Publish(pubCtx, bridgeChannel, data).Err()
	cancel()

	if err != nil {
		b.breaker.RecordError(err)
		metrics.BridgePublishesTotal.WithLabelValues("error").Inc()
		slog.Warn("Bridge publish failed", "room", ev.Room, "error", err)
		return
	}
	b.breaker.RecordSuccess()
	metrics.BridgePublishesTotal.WithLabelValues("ok").Inc()
}

func (b *Bridge) subscribeLoop(ctx context.Context, sub *goredis.PubSub) {
	defer b.wg.Done()
	defer func() { _ = sub.Close() }()

	msgCh := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			var ev bridgeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("Failed to unmarshal bridge event", "error", err)
				continue
			}
			if ev.Origin == b.instanceID {
				continue
			}
			metrics.BridgeEventsReceivedTotal.Inc()
			b.hub.DispatchRoom(ev.Room, domain.OutboundMessage{
				Type:    ev.Type,
				Payload: ev.Data,
			})
		}
	}
}
