package ws

import (
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/sirupsen/logrus"

	"agentdash/internal/dashboard"
)

// Events exchanged with browsers
const (
	EventConnected = "connected"
	EventUpdate    = "dashboard:update"
	EventViewOpen  = "view:open"
	EventViewClose = "view:close"
	EventError     = "dashboard:error"
)

// ViewController is told when browsers start or stop showing a view
type ViewController interface {
	Activate(v dashboard.View)
	Deactivate(v dashboard.View)
}

// Server pushes dashboard snapshots to Socket.IO clients
type Server struct {
	io      *socketio.Server
	views   ViewController
	state   *dashboard.State
	tracker *tracker
	logger  *logrus.Entry
}

// NewServer creates the Socket.IO server and registers its handlers
func NewServer(views ViewController, state *dashboard.State, logger *logrus.Entry) *Server {
	allowAll := func(r *http.Request) bool { return true }
	io := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: allowAll},
			&websocket.Transport{CheckOrigin: allowAll},
		},
	})

	s := &Server{
		io:      io,
		views:   views,
		state:   state,
		tracker: newTracker(),
		logger:  logger.WithField("component", "ws"),
	}

	io.OnConnect("/", s.onConnect)
	io.OnDisconnect("/", s.onDisconnect)
	io.OnError("/", func(c socketio.Conn, e error) {
		if c == nil {
			s.logger.Warnf("Socket error: %v", e)
			return
		}
		s.logger.Warnf("Socket error for client %s: %v", c.ID(), e)
	})
	io.OnEvent("/", EventViewOpen, s.onViewOpen)
	io.OnEvent("/", EventViewClose, s.onViewClose)

	return s
}

// Handler serves the /socket.io/ endpoint
func (s *Server) Handler() http.Handler {
	return s.io
}

// Serve runs the engine loop until Close
func (s *Server) Serve() error {
	s.logger.Info("Socket.IO server started")
	return s.io.Serve()
}

// Close shuts the engine down
func (s *Server) Close() error {
	return s.io.Close()
}

// Broadcast pushes a snapshot to every client
func (s *Server) Broadcast(snap dashboard.Snapshot) {
	s.io.BroadcastToNamespace("/", EventUpdate, snap)
}

func (s *Server) onConnect(c socketio.Conn) error {
	s.logger.Debugf("Client connected: %s", c.ID())
	c.Emit(EventConnected, map[string]any{
		"ok":      true,
		"version": s.state.Version(),
	})
	return nil
}

func (s *Server) onDisconnect(c socketio.Conn, reason string) {
	for _, v := range s.tracker.drop(c.ID()) {
		s.views.Deactivate(v)
	}
	s.logger.Debugf("Client disconnected: %s, reason: %s", c.ID(), reason)
}

func (s *Server) onViewOpen(c socketio.Conn, data interface{}) {
	v, err := parseView(data)
	if err != nil {
		c.Emit(EventError, map[string]any{"error": err.Error()})
		return
	}
	if s.tracker.open(c.ID(), v) {
		s.views.Activate(v)
	}
	c.Emit(EventUpdate, s.state.Snapshot())
}

func (s *Server) onViewClose(c socketio.Conn, data interface{}) {
	v, err := parseView(data)
	if err != nil {
		c.Emit(EventError, map[string]any{"error": err.Error()})
		return
	}
	if s.tracker.close(c.ID(), v) {
		s.views.Deactivate(v)
	}
}
