package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alantheprice/proven/pkg/approval"
)

const (
	readLimit   = 512 * 1024
	readTimeout = 60 * time.Second
)

// SafeConn serialises writes to a websocket connection
type SafeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

// NewSafeConn wraps conn
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteJSON writes v, ignoring writes after Close
func (sc *SafeConn) WriteJSON(v any) (err error) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket write panic: %v", r)
			sc.closed = true
		}
	}()

	return sc.conn.WriteJSON(v)
}

// Close closes the underlying connection
func (sc *SafeConn) Close() error {
	sc.writeMu.Lock()
	sc.closed = true
	sc.writeMu.Unlock()
	return sc.conn.Close()
}

// clientMessage is anything a client sends
type clientMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Note      string `json:"note,omitempty"`
}

// handleWebSocket streams bus events to one client and reads its messages
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.LogError(fmt.Errorf("websocket upgrade: %w", err))
		return
	}

	safeConn := NewSafeConn(conn)
	defer safeConn.Close()

	sessionID := fmt.Sprintf("ws_%d", time.Now().UnixNano())
	s.connections.Store(conn, &ConnectionInfo{SessionID: sessionID, ConnectedAt: time.Now()})
	defer s.connections.Delete(conn)

	// Subscribe before announcing so no event between the two is lost
	eventCh := s.eventBus.Subscribe(sessionID)
	defer s.eventBus.Unsubscribe(sessionID)

	s.logger.Logf("websocket client connected: %s", sessionID)
	safeConn.WriteJSON(map[string]any{
		"type": "connection_status",
		"data": map[string]any{
			"connected":       true,
			"session_id":      sessionID,
			"remote_approval": s.remoteApproval,
		},
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(readLimit)
		for {
			if ctx.Err() != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(readTimeout))

			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					// Idle client; a failed ping means it is gone
					if err := safeConn.WriteJSON(map[string]any{
						"type": "ping",
						"data": map[string]any{"timestamp": time.Now().Unix()},
					}); err != nil {
						return
					}
					continue
				}
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Logf("websocket %s read error: %v", sessionID, err)
				}
				return
			}
			s.handleMessage(safeConn, msg)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := safeConn.WriteJSON(event); err != nil {
				s.logger.Logf("websocket %s write error: %v", sessionID, err)
				return
			}
		}
	}
}

// handleMessage answers pings and applies approval decisions
func (s *Server) handleMessage(safeConn *SafeConn, msg clientMessage) {
	switch msg.Type {
	case "ping":
		safeConn.WriteJSON(map[string]any{
			"type": "pong",
			"data": map[string]any{"timestamp": time.Now().Unix()},
		})

	case "decision":
		if err := s.applyDecision(msg); err != nil {
			safeConn.WriteJSON(map[string]any{
				"type": "decision_error",
				"data": map[string]string{"request_id": msg.RequestID, "message": err.Error()},
			})
			return
		}
		safeConn.WriteJSON(map[string]any{
			"type": "decision_ack",
			"data": map[string]string{"request_id": msg.RequestID, "action": msg.Action},
		})

	default:
		safeConn.WriteJSON(map[string]any{
			"type": "error",
			"data": map[string]string{"message": fmt.Sprintf("unknown message type %q", msg.Type)},
		})
	}
}

func (s *Server) applyDecision(msg clientMessage) error {
	if !s.remoteApproval {
		return errors.New("remote approval is disabled")
	}
	if msg.RequestID == "" {
		return errors.New("request_id is required")
	}
	if msg.Action == "" {
		return errors.New("action is required")
	}
	action, err := approval.ParseAction(msg.Action)
	if err != nil {
		return err
	}
	return s.queue.Resolve(msg.RequestID, approval.Decision{Action: action, Note: msg.Note})
}
