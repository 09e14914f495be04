// Package webui serves the run's event stream over a websocket and, when
// enabled, lets connected clients answer approval requests.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alantheprice/proven/pkg/approval"
	"github.com/alantheprice/proven/pkg/events"
	"github.com/alantheprice/proven/pkg/utils"
)

// ConnectionInfo stores metadata about a websocket connection
type ConnectionInfo struct {
	SessionID   string
	ConnectedAt time.Time
}

// Server streams events and relays remote approval decisions
type Server struct {
	addr           string
	eventBus       *events.EventBus
	queue          *approval.Queue
	remoteApproval bool
	logger         *utils.Logger

	upgrader    websocket.Upgrader
	server      *http.Server
	listener    net.Listener
	connections sync.Map // map[*websocket.Conn]*ConnectionInfo
	isRunning   bool
	mutex       sync.RWMutex
	startTime   time.Time
}

// NewServer creates a server on addr. queue may be nil; decisions from
// clients are only accepted when remoteApproval is set.
func NewServer(addr string, eventBus *events.EventBus, queue *approval.Queue, remoteApproval bool, logger *utils.Logger) *Server {
	if logger == nil {
		logger = utils.GetLogger()
	}
	s := &Server{
		addr:           addr,
		eventBus:       eventBus,
		queue:          queue,
		remoteApproval: remoteApproval && queue != nil,
		logger:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
			},
		},
		startTime: time.Now(),
	}
	if queue != nil {
		PublishApprovals(queue, eventBus)
	}
	return s
}

// PublishApprovals announces every request on q and its resolution on bus
func PublishApprovals(q *approval.Queue, bus *events.EventBus) {
	q.OnRequest(func(req *approval.Request) {
		a := req.Submission.Artifact
		bus.Publish(events.EventTypeApprovalRequested, "",
			events.ApprovalRequestedEvent(req.ID, string(a.Kind), a.Path, a.Attempt, a.Content))
		go func() {
			if err := req.Err(); err != nil {
				bus.Publish(events.EventTypeApprovalResolved, "", events.ApprovalResolvedEvent(req.ID, "abandoned", err.Error()))
				return
			}
			d := req.Decision()
			bus.Publish(events.EventTypeApprovalResolved, "", events.ApprovalResolvedEvent(req.ID, string(d.Action), d.Note))
		}()
	})
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/approvals", s.handleAPIApprovals)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start binds the listener and serves until ctx ends
func (s *Server) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.isRunning {
		s.mutex.Unlock()
		return fmt.Errorf("event server is already running")
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.mutex.Unlock()
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.isRunning = true
	s.mutex.Unlock()

	go func() {
		s.logger.Logf("event server listening on %s (remote approval: %t)", ln.Addr(), s.remoteApproval)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.LogError(fmt.Errorf("event server: %w", err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return nil
}

// Addr is the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown closes all connections and stops the server
func (s *Server) Shutdown() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return nil
	}
	s.isRunning = false
	s.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.connections.Range(func(conn, _ any) bool {
		if wsConn, ok := conn.(*websocket.Conn); ok {
			wsConn.Close()
		}
		return true
	})

	return s.server.Shutdown(ctx)
}

// IsRunning reports whether Start has been called and Shutdown has not
func (s *Server) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isRunning
}

func (s *Server) countConnections() int {
	count := 0
	s.connections.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
