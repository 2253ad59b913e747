// Package redis implements the optional cross-instance broadcast bridge.
//
// Room broadcasts originated on one instance are published to a shared
// Pub/Sub channel; every instance subscribes and re-broadcasts foreign-origin
// events into its local rooms. Publishes run behind a circuit breaker so a
// sick Redis cannot stall local delivery. Delivery stays best-effort.
package redis
