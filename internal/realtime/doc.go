// Package realtime implements the live connection and broadcast layer using the actor pattern.
//
// A single Hub goroutine owns the connection registry, the room index and every
// per-connection outbound queue, fed by a typed command channel (no mutexes).
// Per-connection write goroutines keep slow clients from stalling delivery to
// anyone else. Outbound traffic is batched on a timer, capped per batch and
// throttled per connection; a heartbeat tick evicts peers that stop responding.
package realtime
