package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
)

func TestAcceptFrame(t *testing.T) {
	data, err := acceptFrame("conn-1", 100*time.Millisecond, 50)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "connection", got["type"])
	payload := got["data"].(map[string]any)
	assert.Equal(t, "conn-1", payload["connectionId"])
	cfg := payload["config"].(map[string]any)
	assert.Equal(t, 100.0, cfg["batchInterval"])
	assert.Equal(t, 50.0, cfg["maxBatchSize"])
}

func TestBatchFrame(t *testing.T) {
	enqueued := time.UnixMilli(1700000000000)
	batch := domain.Batch{
		Messages: []domain.OutboundMessage{
			{Type: "appointment:updated", Payload: json.RawMessage(`{"id":7}`), EnqueuedAt: enqueued},
			{Type: "note:created", Payload: json.RawMessage(`{"id":8}`), EnqueuedAt: enqueued.Add(time.Millisecond)},
		},
		Remaining: 3,
	}

	data, err := batchFrame(batch)
	require.NoError(t, err)

	var got struct {
		Type string `json:"type"`
		Data struct {
			Messages []struct {
				Type      string          `json:"type"`
				Data      json.RawMessage `json:"data"`
				Timestamp int64           `json:"timestamp"`
			} `json:"messages"`
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "batch", got.Type)
	assert.Equal(t, 3, got.Data.Count)
	require.Len(t, got.Data.Messages, 2)
	assert.Equal(t, "appointment:updated", got.Data.Messages[0].Type)
	assert.Equal(t, int64(1700000000000), got.Data.Messages[0].Timestamp)
	assert.Equal(t, "note:created", got.Data.Messages[1].Type)
	assert.JSONEq(t, `{"id":7}`, string(got.Data.Messages[0].Data))
}

func TestMetricsFrame(t *testing.T) {
	connected := time.UnixMilli(1700000000000)
	now := connected.Add(2 * time.Minute)
	m := domain.ClientMetrics{
		ConnectionID: "conn-9",
		ConnectedAt:  connected,
		MessagesSent: 30,
		BatchesSent:  4,
	}

	data, err := metricsFrame(m, now)
	require.NoError(t, err)

	var got struct {
		Type string `json:"type"`
		Data struct {
			ConnectionID      string  `json:"connectionId"`
			DurationSeconds   float64 `json:"durationSeconds"`
			MessagesSent      int64   `json:"messagesSent"`
			BatchesSent       int64   `json:"batchesSent"`
			MessagesPerMinute float64 `json:"messagesPerMinute"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "metrics", got.Type)
	assert.Equal(t, "conn-9", got.Data.ConnectionID)
	assert.Equal(t, 120.0, got.Data.DurationSeconds)
	assert.Equal(t, int64(30), got.Data.MessagesSent)
	assert.Equal(t, 15.0, got.Data.MessagesPerMinute)
}

func TestMetricsFrame_ZeroDuration(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	m := domain.ClientMetrics{ConnectionID: "conn-0", ConnectedAt: now, MessagesSent: 5}

	data, err := metricsFrame(m, now)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	payload := got["data"].(map[string]any)
	assert.Equal(t, 0.0, payload["messagesPerMinute"])
}
