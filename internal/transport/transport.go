// Package transport abstracts the bidirectional message channel
// between the protocol engine and a sandboxed rendering surface, so
// the engine stays transport-agnostic and testable without a real
// surface. The websocket binding in wsbridge is one implementation.
package transport

import "errors"

// ErrUnavailable reports that the surface's messaging target is gone
// (closed socket, torn-down frame). Posting fails immediately.
var ErrUnavailable = errors.New("transport: surface unavailable")

// Envelope is one inbound frame together with the origin it arrived
// from. Consumers drop envelopes whose origin is not the surface they
// attached to.
type Envelope struct {
	Origin string
	Data   string
}

// Listener receives inbound envelopes.
type Listener func(Envelope)

// Surface is one sandboxed rendering surface.
type Surface interface {
	// Origin identifies this surface; inbound envelopes carry it.
	Origin() string

	// Post sends one serialized message to the guest. Returns
	// ErrUnavailable when the messaging target is gone.
	Post(message string) error

	// Subscribe registers a listener for inbound envelopes and returns
	// a cancel function that removes it.
	Subscribe(l Listener) (cancel func())

	// Loaded is closed once the surface has finished loading its
	// document and can receive the handshake.
	Loaded() <-chan struct{}
}
