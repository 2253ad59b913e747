package domain

import (
	"encoding/json"
	"time"
)

// OutboundMessage is one logical event destined for a single connection.
// The payload is opaque to the realtime layer; only the envelope (type and
// timestamps) is ever inspected.
type OutboundMessage struct {
	Type       string
	Payload    json.RawMessage
	EnqueuedAt time.Time
}

// Batch is an ordered group of messages flushed to one connection in a
// single wire write. Remaining is the queue depth left behind after the
// flush that produced this batch.
type Batch struct {
	Messages  []OutboundMessage
	Remaining int
}

// Disconnect reasons reported to observers and metrics.
const (
	ReasonClosed   = "closed"
	ReasonError    = "transport_error"
	ReasonStale    = "stale"
	ReasonOverflow = "overflow"
	ReasonShutdown = "shutdown"
)
