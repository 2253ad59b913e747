// Package server exposes the realtime layer over HTTP: the WebSocket
// handshake and read pump, health probes, prometheus metrics and the
// statistics query. Handshakes pass a global connection cap, a per-IP cap
// and a per-IP rate limit before they reach the hub.
package server
