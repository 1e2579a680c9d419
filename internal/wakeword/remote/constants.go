// Package remote adapts a remote wake-word inference service (reachable
// over gRPC) onto the voice.Scorer interface. Grounded on
// internal/grpcclient's connection lifecycle (keepalive, health
// monitoring, circuit breaker) adapted to a single score-features call.
package remote

import "time"

const (
	DefaultKeepaliveTime       = 10 * time.Second
	DefaultKeepaliveTimeout    = 3 * time.Second
	DefaultHealthCheckInterval = 5 * time.Second
	DefaultCallTimeout         = 200 * time.Millisecond

	// ScoreMethod is the fully-qualified gRPC method the backend exposes.
	// No local .proto/codegen exists for this service; requests and
	// responses are exchanged as structpb.Struct, the generic
	// protobuf wire message, so the core never needs generated stubs
	// for a backend it doesn't own.
	ScoreMethod = "/voicecore.wakeword.v1.Scorer/Score"
)
