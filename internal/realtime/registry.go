package realtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
)

// connState is the authoritative record for one live connection. It is owned
// exclusively by the hub goroutine; nothing outside the actor may touch it.
type connState struct {
	id           string
	principal    string
	writer       *clientWriter
	connectedAt  time.Time
	lastActivity time.Time

	messagesSent     int64
	messagesReceived int64
	batchesSent      int64

	queue    *outboundQueue
	timer    clockwork.Timer
	timerSet bool
}

func (c *connState) metrics() domain.ClientMetrics {
	return domain.ClientMetrics{
		ConnectionID:     c.id,
		Principal:        c.principal,
		ConnectedAt:      c.connectedAt,
		LastActivity:     c.lastActivity,
		MessagesSent:     c.messagesSent,
		MessagesReceived: c.messagesReceived,
		BatchesSent:      c.batchesSent,
	}
}

// registry is the authoritative map from connection id to connection state.
// All lookups are non-failing: callers test for absence.
type registry struct {
	clock clockwork.Clock
	conns map[string]*connState
}

func newRegistry(clock clockwork.Clock) *registry {
	return &registry{
		clock: clock,
		conns: make(map[string]*connState),
	}
}

// register allocates a fresh connection id and stores the record.
func (r *registry) register(writer *clientWriter, principal string) *connState {
	now := r.clock.Now()
	cs := &connState{
		id:           uuid.NewString(),
		principal:    principal,
		writer:       writer,
		connectedAt:  now,
		lastActivity: now,
		queue:        newOutboundQueue(),
	}
	r.conns[cs.id] = cs
	return cs
}

func (r *registry) get(id string) (*connState, bool) {
	cs, ok := r.conns[id]
	return cs, ok
}

// touch updates the last-activity timestamp; unknown ids are a no-op.
func (r *registry) touch(id string) {
	if cs, ok := r.conns[id]; ok {
		cs.lastActivity = r.clock.Now()
	}
}

// remove deletes the record. Idempotent.
func (r *registry) remove(id string) {
	delete(r.conns, id)
}

func (r *registry) count() int {
	return len(r.conns)
}

// ids returns a snapshot of all connection ids, so callers can mutate the
// registry while iterating.
func (r *registry) ids() []string {
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

// uniquePrincipals counts distinct non-empty principals across connections.
func (r *registry) uniquePrincipals() int {
	seen := make(map[string]struct{}, len(r.conns))
	for _, cs := range r.conns {
		if cs.principal != "" {
			seen[cs.principal] = struct{}{}
		}
	}
	return len(seen)
}
