// Package domain defines the core types shared across the realtime layer.
//
// This package contains concept-oriented files (message.go, metrics.go, relay.go)
// with shared types and cross-cutting interfaces. No implementation code - just contracts.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
