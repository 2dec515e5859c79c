package transport

import (
	"sync"
)

// Pipe is an in-memory Surface. The host side uses it like any other
// surface; the guest side is driven programmatically with Deliver and
// SignalLoaded. It backs engine tests and in-process embedding.
type Pipe struct {
	mu          sync.Mutex
	origin      string
	listeners   map[int]Listener
	nextID      int
	sent        []string
	sentCh      chan string
	loaded      chan struct{}
	loadedOnce  sync.Once
	unavailable bool
}

// NewPipe creates a Pipe with the given origin.
func NewPipe(origin string) *Pipe {
	return &Pipe{
		origin:    origin,
		listeners: make(map[int]Listener),
		sentCh:    make(chan string, 64),
		loaded:    make(chan struct{}),
	}
}

// Origin implements Surface.
func (p *Pipe) Origin() string { return p.origin }

// Post implements Surface, recording the message on the guest side.
func (p *Pipe) Post(message string) error {
	p.mu.Lock()
	if p.unavailable {
		p.mu.Unlock()
		return ErrUnavailable
	}
	p.sent = append(p.sent, message)
	p.mu.Unlock()

	select {
	case p.sentCh <- message:
	default:
	}
	return nil
}

// Subscribe implements Surface.
func (p *Pipe) Subscribe(l Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Loaded implements Surface.
func (p *Pipe) Loaded() <-chan struct{} { return p.loaded }

// SignalLoaded marks the surface document as loaded. Idempotent.
func (p *Pipe) SignalLoaded() {
	p.loadedOnce.Do(func() { close(p.loaded) })
}

// Deliver injects a guest-originated message using the pipe's own
// origin.
func (p *Pipe) Deliver(data string) {
	p.DeliverFrom(p.origin, data)
}

// DeliverFrom injects a message claiming the given origin. Tests use a
// foreign origin to exercise the engine's origin check.
func (p *Pipe) DeliverFrom(origin, data string) {
	p.mu.Lock()
	ls := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.Unlock()

	for _, l := range ls {
		l(Envelope{Origin: origin, Data: data})
	}
}

// SetUnavailable toggles Post failures.
func (p *Pipe) SetUnavailable(v bool) {
	p.mu.Lock()
	p.unavailable = v
	p.mu.Unlock()
}

// Sent returns a copy of every message posted so far.
func (p *Pipe) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	copy(out, p.sent)
	return out
}

// SentCh exposes posted messages as a channel for tests that wait on
// the next outbound frame.
func (p *Pipe) SentCh() <-chan string { return p.sentCh }
