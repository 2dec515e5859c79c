// Package session tracks live fragment sessions: one protocol engine
// per guest connection, from open through attach to close.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/engine"
	"github.com/hostbridge/hostbridge/internal/host"
	"github.com/hostbridge/hostbridge/internal/loader"
	"github.com/hostbridge/hostbridge/internal/logging"
	"github.com/hostbridge/hostbridge/internal/monitoring"
	"github.com/hostbridge/hostbridge/internal/policy"
	"github.com/hostbridge/hostbridge/internal/protocol"
	"github.com/hostbridge/hostbridge/internal/transport"
)

// Session is one live fragment instance.
type Session struct {
	ID        string
	URI       string
	Engine    *engine.Engine
	CreatedAt time.Time
}

// OpenOptions carries per-session parameters.
type OpenOptions struct {
	ToolName   string
	ToolInput  map[string]any
	ToolResult *protocol.CallToolResult
	Context    host.ContextOptions
}

// Manager owns the loader and every live session.
type Manager struct {
	sessions sync.Map

	loader   *loader.Loader
	read     loader.ReadResourceFunc
	caps     host.Capabilities
	policy   *policy.Config
	sanitize bool
	timeout  time.Duration
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// Config configures a Manager.
type Config struct {
	Loader       *loader.Loader
	ReadResource loader.ReadResourceFunc
	Capabilities host.Capabilities
	Policy       *policy.Config
	// Sanitize strips active content from markup before policy
	// injection, for hosts that refuse guest script entirely.
	Sanitize       bool
	RequestTimeout time.Duration
	Metrics        *monitoring.Metrics
	Logger         *logging.Logger
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		loader:   cfg.Loader,
		read:     cfg.ReadResource,
		caps:     cfg.Capabilities,
		policy:   cfg.Policy,
		sanitize: cfg.Sanitize,
		timeout:  cfg.RequestTimeout,
		metrics:  cfg.Metrics,
		log:      log.Named("session"),
	}
}

// Open loads the fragment behind uri and constructs its engine. The
// engine stays idle until a guest surface attaches.
func (m *Manager) Open(ctx context.Context, uri string, opts OpenOptions) (*Session, error) {
	content, err := m.loader.Load(ctx, uri, m.read)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordLoad("error")
		}
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordLoad("ok")
	}

	markup := content.HTML
	if m.sanitize {
		markup = policy.StripActiveContent(markup)
	}

	var stats engine.Stats
	if m.metrics != nil {
		stats = m.metrics
	}

	eng := engine.New(engine.Config{
		HTML:           markup,
		URI:            content.URI,
		ToolName:       opts.ToolName,
		ToolInput:      opts.ToolInput,
		ToolResult:     opts.ToolResult,
		Policy:         m.policy,
		Capabilities:   m.caps,
		Context:        opts.Context,
		RequestTimeout: m.timeout,
		Logger:         m.log,
		Stats:          stats,
	})

	s := &Session{
		ID:        uuid.New().String(),
		URI:       content.URI,
		Engine:    eng,
		CreatedAt: time.Now(),
	}
	m.sessions.Store(s.ID, s)
	if m.metrics != nil {
		m.metrics.SessionOpened()
	}
	m.log.Info("session opened", zap.String("session_id", s.ID), zap.String("uri", s.URI))
	return s, nil
}

// Attach binds a session's engine to a guest surface.
func (m *Manager) Attach(id string, surface transport.Surface) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	return s.Engine.Attach(surface)
}

// Get retrieves a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	val, ok := m.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*Session), true
}

// List returns all live sessions.
func (m *Manager) List() []*Session {
	var out []*Session
	m.sessions.Range(func(_, value any) bool {
		out = append(out, value.(*Session))
		return true
	})
	return out
}

// Close disposes a session's engine and forgets it.
func (m *Manager) Close(id string) bool {
	val, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return false
	}
	s := val.(*Session)
	s.Engine.Dispose()
	if m.metrics != nil {
		m.metrics.SessionClosed()
	}
	m.log.Info("session closed", zap.String("session_id", s.ID))
	return true
}

// CloseAll disposes every live session.
func (m *Manager) CloseAll() {
	m.sessions.Range(func(key, _ any) bool {
		m.Close(key.(string))
		return true
	})
}

// Stats summarizes live sessions by state.
func (m *Manager) Stats() map[engine.State]int {
	out := make(map[engine.State]int)
	m.sessions.Range(func(_, value any) bool {
		out[value.(*Session).Engine.State()]++
		return true
	})
	return out
}
