package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
)

// captureDispatcher records relay-origin deliveries.
type captureDispatcher struct {
	events chan dispatchedEvent
}

type dispatchedEvent struct {
	room    string
	message domain.OutboundMessage
}

func newCaptureDispatcher() *captureDispatcher {
	return &captureDispatcher{events: make(chan dispatchedEvent, 16)}
}

func (c *captureDispatcher) DispatchRoom(room string, message domain.OutboundMessage) {
	c.events <- dispatchedEvent{room: room, message: message}
}

func startTestBridge(t *testing.T, instanceID string) (*Bridge, *captureDispatcher) {
	t.Helper()
	client := setupTestClient(t)
	dispatcher := newCaptureDispatcher()

	bridge := NewBridge(client, dispatcher, instanceID)
	require.NoError(t, bridge.Start(context.Background()))
	t.Cleanup(bridge.Close)

	return bridge, dispatcher
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}

func TestNewClient_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	_, err := NewClient(context.Background(), "redis://127.0.0.1:1")
	assert.Error(t, err)
}

func TestBridge_PublishReachesOtherInstance(t *testing.T) {
	bridgeA, dispatcherA := startTestBridge(t, "instance-a")
	_, dispatcherB := startTestBridge(t, "instance-b")

	bridgeA.PublishRoom("session-9", domain.OutboundMessage{
		Type:       "appointment:updated",
		Payload:    json.RawMessage(`{"id":7}`),
		EnqueuedAt: time.Now(),
	})

	select {
	case ev := <-dispatcherB.events:
		assert.Equal(t, "session-9", ev.room)
		assert.Equal(t, "appointment:updated", ev.message.Type)
		assert.JSONEq(t, `{"id":7}`, string(ev.message.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("other instance never received the bridged event")
	}

	// The publisher must not hear its own echo.
	select {
	case ev := <-dispatcherA.events:
		t.Fatalf("publisher received its own event: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestBridge_BidirectionalDelivery(t *testing.T) {
	bridgeA, dispatcherA := startTestBridge(t, "instance-a")
	bridgeB, dispatcherB := startTestBridge(t, "instance-b")

	bridgeA.PublishRoom("room-1", domain.OutboundMessage{Type: "a-to-b", EnqueuedAt: time.Now()})
	bridgeB.PublishRoom("room-2", domain.OutboundMessage{Type: "b-to-a", EnqueuedAt: time.Now()})

	select {
	case ev := <-dispatcherB.events:
		assert.Equal(t, "room-1", ev.room)
		assert.Equal(t, "a-to-b", ev.message.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("instance B never received")
	}
	select {
	case ev := <-dispatcherA.events:
		assert.Equal(t, "room-2", ev.room)
		assert.Equal(t, "b-to-a", ev.message.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("instance A never received")
	}
}

func TestBridge_MalformedPayloadIgnored(t *testing.T) {
	client := setupTestClient(t)
	_, dispatcher := startTestBridge(t, "instance-b")

	// Garbage on the channel must not kill the subscriber loop.
	require.NoError(t, client.Publish(context.Background(), "realtime:rooms", "not json").Err())
	time.Sleep(100 * time.Millisecond)

	other := NewBridge(client, newCaptureDispatcher(), "instance-a")
	require.NoError(t, other.Start(context.Background()))
	t.Cleanup(other.Close)
	other.PublishRoom("session-9", domain.OutboundMessage{Type: "still-alive", EnqueuedAt: time.Now()})

	select {
	case ev := <-dispatcher.events:
		assert.Equal(t, "still-alive", ev.message.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber loop did not survive the malformed payload")
	}
}

func TestBridge_CloseStopsLoops(t *testing.T) {
	bridge, _ := startTestBridge(t, "instance-a")

	done := make(chan struct{})
	go func() {
		bridge.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge close never returned")
	}
}

func TestBridge_StartFailsFastOnDeadRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := setupTestClient(t)
	require.NoError(t, client.Close())

	bridge := NewBridge(client, newCaptureDispatcher(), "instance-a")
	err := bridge.Start(context.Background())
	assert.Error(t, err)
}
