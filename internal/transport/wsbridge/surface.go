// Package wsbridge binds the transport.Surface interface to a
// WebSocket connection. The browser-side host page relays frames
// between this socket and the sandboxed iframe; to the engine it is
// just another surface.
package wsbridge

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/logging"
	"github.com/hostbridge/hostbridge/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // host pages are same-deployment; tighten per deployment
	},
}

// Frame is the socket-level envelope between the host page and the
// bridge. The guest signals document load with a "loaded" frame;
// everything else is an opaque protocol message.
type Frame struct {
	Kind string `json:"kind"` // "loaded" or "message"
	Data string `json:"data,omitempty"`
}

const (
	frameLoaded  = "loaded"
	frameMessage = "message"
)

// Surface is a websocket-backed transport.Surface.
type Surface struct {
	conn   *websocket.Conn
	origin string
	log    *logging.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	listeners map[int]transport.Listener
	nextID    int

	loaded     chan struct{}
	loadedOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
}

// Upgrade upgrades an HTTP request to a websocket surface and starts
// its read pump.
func Upgrade(w http.ResponseWriter, r *http.Request, log *logging.Logger) (*Surface, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}

	s := &Surface{
		conn:      conn,
		origin:    conn.RemoteAddr().String(),
		log:       log.Named("wsbridge"),
		listeners: make(map[int]transport.Listener),
		loaded:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

// Origin implements transport.Surface.
func (s *Surface) Origin() string { return s.origin }

// Post implements transport.Surface, wrapping the message in a frame.
func (s *Surface) Post(message string) error {
	select {
	case <-s.done:
		return transport.ErrUnavailable
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(Frame{Kind: frameMessage, Data: message}); err != nil {
		return transport.ErrUnavailable
	}
	return nil
}

// Subscribe implements transport.Surface.
func (s *Surface) Subscribe(l transport.Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Loaded implements transport.Surface.
func (s *Surface) Loaded() <-chan struct{} { return s.loaded }

// Done is closed when the socket ends, so owners can tear down the
// session.
func (s *Surface) Done() <-chan struct{} { return s.done }

// Close shuts the socket down.
func (s *Surface) Close() error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

func (s *Surface) readPump() {
	defer func() {
		s.doneOnce.Do(func() { close(s.done) })
		s.conn.Close()
	}()

	for {
		var frame Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		switch frame.Kind {
		case frameLoaded:
			s.loadedOnce.Do(func() { close(s.loaded) })
		case frameMessage:
			s.dispatch(frame.Data)
		default:
			s.log.Debug("ignoring unknown frame kind", zap.String("kind", frame.Kind))
		}
	}
}

func (s *Surface) dispatch(data string) {
	s.mu.Lock()
	ls := make([]transport.Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(transport.Envelope{Origin: s.origin, Data: data})
	}
}
