// Package engine implements the host-side protocol engine for one
// fragment instance: its lifecycle state machine, the ui/initialize
// handshake, and bidirectional JSON-RPC routing between the host and
// the sandboxed guest surface.
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/host"
	"github.com/hostbridge/hostbridge/internal/logging"
	"github.com/hostbridge/hostbridge/internal/policy"
	"github.com/hostbridge/hostbridge/internal/protocol"
	"github.com/hostbridge/hostbridge/internal/transport"
)

// State is the fragment lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateLoading      State = "loading"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateError        State = "error"
)

var (
	// ErrDetached rejects requests outstanding when the engine detaches.
	ErrDetached = errors.New("engine: detached")
	// ErrTimeout rejects requests with no response within the timeout.
	ErrTimeout = errors.New("engine: request timed out")
	// ErrDisposed rejects operations on a disposed engine.
	ErrDisposed = errors.New("engine: disposed")
)

// Defaults applied when Config fields are zero.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultLoadFallback   = 500 * time.Millisecond
)

// Stats receives protocol traffic callbacks. Implementations must be
// safe for concurrent use.
type Stats interface {
	InboundRequest(method, outcome string)
	OutboundRequest(method, outcome string)
}

// Config describes one fragment instance.
type Config struct {
	// HTML is the raw fragment markup; the engine injects the security
	// policy before first render.
	HTML string
	// URI identifies the fragment, for logging only.
	URI string

	// Tool call this fragment was declared alongside, if any. Passed to
	// the guest during handshake.
	ToolName   string
	ToolInput  map[string]any
	ToolResult *protocol.CallToolResult

	Policy       *policy.Config
	Capabilities host.Capabilities
	Context      host.ContextOptions

	// RequestTimeout bounds every host-to-guest request. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration
	// LoadFallback bounds the wait for the surface's load signal before
	// attempting initialization anyway. Zero means DefaultLoadFallback.
	LoadFallback time.Duration

	Logger *logging.Logger
	Stats  Stats
}

// Engine owns one fragment's state and pending-request table
// exclusively. All methods are safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	state State

	html    string
	uri     string
	hostCtx protocol.HostContext

	toolName   string
	toolInput  map[string]any
	toolResult *protocol.CallToolResult

	caps     host.Capabilities
	timeout  time.Duration
	fallback time.Duration
	log      *logging.Logger
	stats    Stats

	surface     transport.Surface
	unsubscribe func()
	detachCh    chan struct{}
	disposed    bool

	nextID  int64
	pending map[int64]*pendingCall

	guestCaps *protocol.GuestCapabilities
}

// New constructs an engine in the idle state. Markup preparation and
// the host-context snapshot happen eagerly; no messaging occurs until
// Attach.
func New(cfg Config) *Engine {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	fallback := cfg.LoadFallback
	if fallback == 0 {
		fallback = DefaultLoadFallback
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	hostCtx := host.NewContext(cfg.Context, cfg.Capabilities)

	return &Engine{
		state:      StateIdle,
		html:       policy.Inject(cfg.HTML, cfg.Policy),
		uri:        cfg.URI,
		hostCtx:    hostCtx,
		toolName:   cfg.ToolName,
		toolInput:  cfg.ToolInput,
		toolResult: cfg.ToolResult,
		caps:       cfg.Capabilities,
		timeout:    timeout,
		fallback:   fallback,
		log:        log.Named("engine").With(zap.String("instance_id", hostCtx.InstanceID)),
		stats:      cfg.Stats,
		pending:    make(map[int64]*pendingCall),
	}
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// HTML returns the prepared markup with the security policy embedded.
func (e *Engine) HTML() string { return e.html }

// HostContext returns the immutable snapshot sent during handshake.
func (e *Engine) HostContext() protocol.HostContext { return e.hostCtx }

// GuestCapabilities returns what the guest advertised during
// handshake, or nil before the engine is ready.
func (e *Engine) GuestCapabilities() *protocol.GuestCapabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guestCaps
}

// Attach binds the engine to a rendering surface and begins the load
// sequence. Re-attachment after Detach is supported; attachment after
// Dispose fails.
func (e *Engine) Attach(surface transport.Surface) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	pending := e.detachLocked()

	e.surface = surface
	e.state = StateLoading
	detachCh := make(chan struct{})
	e.detachCh = detachCh
	e.unsubscribe = surface.Subscribe(e.handleEnvelope)
	e.mu.Unlock()

	failPending(pending, ErrDetached)

	go e.awaitLoad(surface, detachCh)
	return nil
}

// Detach removes the message listener and rejects every pending
// request with ErrDetached. The recorded state value is unchanged, but
// no further messages are processed until re-attachment.
func (e *Engine) Detach() {
	e.mu.Lock()
	pending := e.detachLocked()
	e.mu.Unlock()

	failPending(pending, ErrDetached)
}

// Dispose detaches and marks the engine permanently unusable.
func (e *Engine) Dispose() {
	e.Detach()
	e.mu.Lock()
	e.disposed = true
	e.mu.Unlock()
}

// NotifyToolResult pushes a tool-result update to the guest. No
// acknowledgment is expected or tracked.
func (e *Engine) NotifyToolResult(toolName string, result any, isError bool) error {
	raw, err := sonic.Marshal(result)
	if err != nil {
		return err
	}
	return e.notify(protocol.MethodToolResult, protocol.ToolResultParams{
		ToolName: toolName,
		Result:   raw,
		IsError:  isError,
	})
}

// detachLocked tears down the surface binding and drains the pending
// table. Callers hold e.mu and reject the returned calls after
// unlocking.
func (e *Engine) detachLocked() []*pendingCall {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.detachCh != nil {
		close(e.detachCh)
		e.detachCh = nil
	}
	e.surface = nil

	pending := make([]*pendingCall, 0, len(e.pending))
	for _, pc := range e.pending {
		pending = append(pending, pc)
	}
	e.pending = make(map[int64]*pendingCall)
	return pending
}

// awaitLoad waits for the surface's load signal, with a bounded
// fallback in case the signal was missed, then runs initialization.
func (e *Engine) awaitLoad(surface transport.Surface, detachCh <-chan struct{}) {
	fallback := time.NewTimer(e.fallback)
	defer fallback.Stop()

	select {
	case <-surface.Loaded():
	case <-fallback.C:
		e.log.Debug("load signal not seen before fallback, attempting initialization",
			zap.String("uri", e.uri))
	case <-detachCh:
		return
	}
	e.initialize(surface)
}

// initialize performs the ui/initialize handshake. Only proceeds from
// loading; any failure, including timeout, is fatal to this instance.
func (e *Engine) initialize(surface transport.Surface) {
	e.mu.Lock()
	if e.state != StateLoading || e.surface != surface {
		e.mu.Unlock()
		return
	}
	e.state = StateInitializing
	params := protocol.InitializeParams{
		HostContext: e.hostCtx,
		ToolName:    e.toolName,
		ToolInput:   e.toolInput,
		ToolResult:  e.toolResult,
	}
	e.mu.Unlock()

	raw, err := e.Request(protocol.MethodInitialize, params)
	if err != nil {
		// A handshake aborted by re-attachment must not clobber the
		// fresh surface's state; only a live handshake is fatal.
		e.mu.Lock()
		if e.state != StateInitializing || e.surface != surface {
			e.mu.Unlock()
			return
		}
		e.state = StateError
		e.mu.Unlock()
		e.log.Error("fragment initialization failed",
			zap.String("uri", e.uri), zap.Error(err))
		return
	}

	var result protocol.InitializeResult
	if len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &result); err != nil {
			e.log.Warn("unparseable initialize result", zap.Error(err))
		}
	}

	e.mu.Lock()
	if e.state != StateInitializing || e.surface != surface {
		e.mu.Unlock()
		return
	}
	e.guestCaps = result.GuestCapabilities
	e.state = StateReady
	e.mu.Unlock()

	e.log.Info("fragment ready", zap.String("uri", e.uri))
}

func failPending(pending []*pendingCall, err error) {
	for _, pc := range pending {
		pc.resolve(callResult{err: err})
	}
}
