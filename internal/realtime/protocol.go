package realtime

import (
	"encoding/json"
	"time"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
)

// Inbound control frame types. Anything else is a protocol error: the frame
// is dropped and logged, the connection stays open.
const (
	FrameJoin      = "join"
	FrameLeave     = "leave"
	FrameBroadcast = "broadcast"
	FrameMetrics   = "metrics"
)

// InboundFrame is a client-to-server control frame.
type InboundFrame struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wireEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type wireMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type acceptPayload struct {
	ConnectionID string       `json:"connectionId"`
	Config       acceptConfig `json:"config"`
}

type acceptConfig struct {
	BatchInterval int64 `json:"batchInterval"`
	MaxBatchSize  int   `json:"maxBatchSize"`
}

type batchPayload struct {
	Messages []wireMessage `json:"messages"`
	Count    int           `json:"count"`
}

type metricsPayload struct {
	ConnectionID      string  `json:"connectionId"`
	DurationSeconds   float64 `json:"durationSeconds"`
	MessagesSent      int64   `json:"messagesSent"`
	MessagesReceived  int64   `json:"messagesReceived"`
	BatchesSent       int64   `json:"batchesSent"`
	MessagesPerMinute float64 `json:"messagesPerMinute"`
}

// acceptFrame is the immediate control message written on accept, carrying
// the allocated connection id and the delivery tunables the client should
// expect.
func acceptFrame(connectionID string, batchInterval time.Duration, maxBatchSize int) ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Type: "connection",
		Data: acceptPayload{
			ConnectionID: connectionID,
			Config: acceptConfig{
				BatchInterval: batchInterval.Milliseconds(),
				MaxBatchSize:  maxBatchSize,
			},
		},
	})
}

// batchFrame frames an ordered batch for a single wire write. Count carries
// the remaining queue depth so clients can gauge backlog.
func batchFrame(batch domain.Batch) ([]byte, error) {
	messages := make([]wireMessage, len(batch.Messages))
	for i, m := range batch.Messages {
		messages[i] = wireMessage{
			Type:      m.Type,
			Data:      m.Payload,
			Timestamp: m.EnqueuedAt.UnixMilli(),
		}
	}
	return json.Marshal(wireEnvelope{
		Type: "batch",
		Data: batchPayload{Messages: messages, Count: batch.Remaining},
	})
}

// immediateFrame frames a single message outside of any batch. Used for the
// control plane only.
func immediateFrame(m domain.OutboundMessage) ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Type: m.Type,
		Data: m.Payload,
	})
}

// metricsFrame answers a client "metrics" control frame.
func metricsFrame(m domain.ClientMetrics, now time.Time) ([]byte, error) {
	duration := now.Sub(m.ConnectedAt)
	perMinute := 0.0
	if minutes := duration.Minutes(); minutes > 0 {
		perMinute = float64(m.MessagesSent) / minutes
	}
	return json.Marshal(wireEnvelope{
		Type: "metrics",
		Data: metricsPayload{
			ConnectionID:      m.ConnectionID,
			DurationSeconds:   duration.Seconds(),
			MessagesSent:      m.MessagesSent,
			MessagesReceived:  m.MessagesReceived,
			BatchesSent:       m.BatchesSent,
			MessagesPerMinute: perMinute,
		},
	})
}
