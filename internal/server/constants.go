// Package server provides the dashboard's HTTP and WebSocket handlers.
package server

import "time"

// Server configuration constants.
const (
	// StatsBroadcastInterval is how often connected dashboards receive a
	// stats snapshot over the websocket.
	StatsBroadcastInterval = 250 * time.Millisecond

	RateLimitWindow   = time.Second
	RateLimitMessages = 20
)
