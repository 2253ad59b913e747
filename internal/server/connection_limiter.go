package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// GlobalConnectionLimiter limits total concurrent connections per instance.
// Uses atomic operations for lock-free counting.
type GlobalConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

// NewGlobalConnectionLimiter creates a limiter with the specified maximum connections.
func NewGlobalConnectionLimiter(max int64) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{max: max}
}

// Acquire attempts to acquire a connection slot.
// Returns true if successful, false if at capacity.
func (l *GlobalConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a connection slot.
func (l *GlobalConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the current number of connections.
func (l *GlobalConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// ipEntry tracks one remote address: its live connection count, its
// handshake token bucket, and when it was last touched.
type ipEntry struct {
	count    int
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPConnectionLimiter caps concurrent connections per IP and rate-limits
// handshake attempts per IP. Protects against single-source floods.
type IPConnectionLimiter struct {
	mu        sync.Mutex
	entries   map[string]*ipEntry
	maxPer    int
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

// NewIPConnectionLimiter creates a limiter allowing maxPer concurrent
// connections and handshakesPerSecond handshake attempts (with the given
// burst) per IP.
func NewIPConnectionLimiter(maxPer int, handshakesPerSecond float64, burst int) *IPConnectionLimiter {
	// Entries may be evicted once idle past the full-burst refill horizon:
	// at that point the token bucket is indistinguishable from a fresh one,
	// so reconnect storms stay limited and the map stays bounded.
	idle := time.Duration(float64(burst) / handshakesPerSecond * float64(time.Second))
	if idle < time.Minute {
		idle = time.Minute
	}
	return &IPConnectionLimiter{
		entries:   make(map[string]*ipEntry),
		maxPer:    maxPer,
		rate:      rate.Limit(handshakesPerSecond),
		burst:     burst,
		idleTTL:   idle,
		lastSweep: time.Now(),
	}
}

// entry returns the record for ip, creating it on first sight, and marks it
// as just touched. Caller must hold mu.
func (l *IPConnectionLimiter) entry(ip string) *ipEntry {
	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = time.Now()
	return e
}

// maybeSweep drops zero-connection entries idle past idleTTL, at most once
// per idleTTL. Caller must hold mu.
func (l *IPConnectionLimiter) maybeSweep() {
	now := time.Now()
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for ip, e := range l.entries {
		if e.count == 0 && now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.entries, ip)
		}
	}
}

// AllowHandshake reports whether the IP's handshake rate limit permits
// another attempt right now.
func (l *IPConnectionLimiter) AllowHandshake(ip string) bool {
	l.mu.Lock()
	e := l.entry(ip)
	l.maybeSweep()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Acquire attempts to acquire a connection slot for the given IP.
// Returns true if successful, false if the IP is at its limit.
func (l *IPConnectionLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(ip)
	if e.count >= l.maxPer {
		return false
	}
	e.count++
	return true
}

// Release releases a connection slot for the given IP. The entry itself
// stays until the sweep: an immediately reconnecting client must hit the
// same token bucket.
func (l *IPConnectionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[ip]; ok && e.count > 0 {
		e.count--
		e.lastSeen = time.Now()
	}
	l.maybeSweep()
}

// Count returns the current connection count for the given IP.
func (l *IPConnectionLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[ip]; ok {
		return e.count
	}
	return 0
}
