package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hostbridge/hostbridge/internal/protocol"
	"github.com/hostbridge/hostbridge/internal/transport"
)

type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall is one outstanding host-to-guest request. The buffered
// channel holds exactly one result; whoever removes the entry from the
// pending table delivers it.
type pendingCall struct {
	ch chan callResult
}

func newPendingCall() *pendingCall {
	return &pendingCall{ch: make(chan callResult, 1)}
}

func (pc *pendingCall) resolve(res callResult) {
	pc.ch <- res
}

// Request issues a host-to-guest request and blocks until the matching
// response, the timeout, or a detach. Identifiers are engine-local,
// monotonically increasing, and never reused.
func (e *Engine) Request(method string, params any) (json.RawMessage, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, ErrDisposed
	}
	surface := e.surface
	if surface == nil {
		e.mu.Unlock()
		e.recordOutbound(method, "unavailable")
		return nil, fmt.Errorf("request %s: %w", method, transport.ErrUnavailable)
	}

	e.nextID++
	id := e.nextID
	pc := newPendingCall()
	e.pending[id] = pc
	e.mu.Unlock()

	msg, err := protocol.NewRequest(id, method, params)
	if err == nil {
		var encoded string
		if encoded, err = msg.Encode(); err == nil {
			err = surface.Post(encoded)
		}
	}
	if err != nil {
		// Posting failed: fail immediately, no timer.
		e.take(id)
		e.recordOutbound(method, "unavailable")
		return nil, fmt.Errorf("request %s: %w", method, err)
	}

	timer := time.AfterFunc(e.timeout, func() {
		if pc := e.take(id); pc != nil {
			pc.resolve(callResult{err: fmt.Errorf("request %s (id %d): %w", method, id, ErrTimeout)})
		}
	})

	res := <-pc.ch
	timer.Stop()

	if res.err != nil {
		e.recordOutbound(method, "error")
		return nil, res.err
	}
	e.recordOutbound(method, "ok")
	return res.result, nil
}

// notify posts a notification envelope. No entry is recorded in the
// pending table.
func (e *Engine) notify(method string, params any) error {
	e.mu.Lock()
	surface := e.surface
	disposed := e.disposed
	e.mu.Unlock()

	if disposed {
		return ErrDisposed
	}
	if surface == nil {
		return fmt.Errorf("notify %s: %w", method, transport.ErrUnavailable)
	}

	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}
	return surface.Post(encoded)
}

// take removes and returns the pending entry for id, or nil when the
// entry was already claimed by a response, timeout, or detach.
func (e *Engine) take(id int64) *pendingCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	pc, ok := e.pending[id]
	if !ok {
		return nil
	}
	delete(e.pending, id)
	return pc
}

// pendingCount reports outstanding requests, for tests and stats.
func (e *Engine) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) recordOutbound(method, outcome string) {
	if e.stats != nil {
		e.stats.OutboundRequest(method, outcome)
	}
}

func (e *Engine) recordInbound(method, outcome string) {
	if e.stats != nil {
		e.stats.InboundRequest(method, outcome)
	}
}
