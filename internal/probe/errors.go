package probe

import "errors"

// Probe failures. Concrete errors wrap one of these so callers can match them
// with errors.Is. Every one of them is terminal to the probe that produced it.
var (
	// ErrNegotiation means the negotiation page did not carry a task id.
	ErrNegotiation = errors.New("negotiation failed")
	// ErrTokenRange means the token window does not fit inside the digest.
	ErrTokenRange = errors.New("token window out of range")
	// ErrTransport covers connect, TLS and socket read failures.
	ErrTransport = errors.New("transport failure")
	// ErrHandshake means the websocket upgrade was rejected.
	ErrHandshake = errors.New("handshake rejected")
	// ErrDecode means a frame was not valid UTF-8 JSON.
	ErrDecode = errors.New("frame decode failed")
	// ErrChannelClosed means the owner abandoned the task while the probe was sending.
	ErrChannelClosed = errors.New("output channel closed")
)
