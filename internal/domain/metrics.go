package domain

import "time"

// ClientMetrics are the per-connection counters. Each counter is mutated by
// exactly one component: received counts by the read pump, sent/batch counts
// by the flush path.
type ClientMetrics struct {
	ConnectionID     string    `json:"connectionId"`
	Principal        string    `json:"principal,omitempty"`
	ConnectedAt      time.Time `json:"connectedAt"`
	LastActivity     time.Time `json:"lastActivity"`
	MessagesSent     int64     `json:"messagesSent"`
	MessagesReceived int64     `json:"messagesReceived"`
	BatchesSent      int64     `json:"batchesSent"`
}

// StatsSnapshot is an aggregate view of the hub at one point in time.
type StatsSnapshot struct {
	Connections      int             `json:"connections"`
	UniquePrincipals int             `json:"uniquePrincipals"`
	Rooms            int             `json:"rooms"`
	MessagesSent     int64           `json:"messagesSent"`
	MessagesReceived int64           `json:"messagesReceived"`
	BatchesSent      int64           `json:"batchesSent"`
	Clients          []ClientMetrics `json:"clients"`
}
