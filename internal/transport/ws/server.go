// Package ws provides the per-session WebSocket endpoint: clients subscribe to a
// session's notifications and the human submits turns, votes and yields.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/hub"
	"github.com/xiaot623/caucus/internal/protocol"
)

// Sessions is the part of the session manager the endpoint drives.
type Sessions interface {
	GetState(ctx context.Context, sessionID string) (*domain.SessionState, error)
	Advance(ctx context.Context, sessionID string) (*domain.AdvanceResponse, error)
	SubmitHumanTurn(ctx context.Context, sessionID string, req domain.HumanTurnRequest) (*domain.SessionState, error)
	SubmitHumanVote(ctx context.Context, sessionID string, req domain.HumanVoteRequest) (*domain.SessionState, error)
	SubmitHumanYield(ctx context.Context, sessionID string, req domain.HumanYieldRequest) (*domain.SessionState, error)
}

// Options tunes connection keep-alive and limits.
type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	RequestTimeout time.Duration
}

// DefaultOptions returns the keep-alive settings used by the server.
func DefaultOptions() Options {
	return Options{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		RequestTimeout: 60 * time.Second,
	}
}

// Server handles WebSocket connections.
type Server struct {
	opts     Options
	hub      *hub.Hub
	sessions Sessions
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(opts Options, h *hub.Hub, sessions Sessions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:     opts,
		hub:      h,
		sessions: sessions,
		logger:   logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
// A session_id path parameter, when present, is the default for hello.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	// Create and register connection
	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	// Set up connection parameters
	ws.SetReadLimit(s.opts.MaxMessageSize)

	// Start reader and writer goroutines
	go s.writePump(conn)
	go s.readPump(conn, c.Param("session_id"))

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection, pathSession string) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", "conn_id", conn.ID, "error", err)
			}
			break
		}

		s.handleMessage(conn, pathSession, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, pathSession string, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	if baseMsg.Type == protocol.TypeHello {
		s.handleHello(conn, pathSession, data)
		return
	}

	// Everything else requires session binding
	if conn.SessionID == "" {
		s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	switch baseMsg.Type {
	case protocol.TypeGetState:
		s.handleGetState(conn, baseMsg.RequestID)
	case protocol.TypeAdvance:
		s.handleAdvance(conn, baseMsg.RequestID)
	case protocol.TypeHumanTurn:
		var msg protocol.HumanTurnMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeInvalidMessage, "invalid human_turn message")
			return
		}
		s.submit(conn, msg.RequestID, protocol.TypeHumanTurn, func(ctx context.Context) (*domain.SessionState, error) {
			return s.sessions.SubmitHumanTurn(ctx, conn.SessionID, domain.HumanTurnRequest{Content: msg.Content})
		})
	case protocol.TypeHumanVote:
		var msg protocol.HumanVoteMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeInvalidMessage, "invalid human_vote message")
			return
		}
		s.submit(conn, msg.RequestID, protocol.TypeHumanVote, func(ctx context.Context) (*domain.SessionState, error) {
			return s.sessions.SubmitHumanVote(ctx, conn.SessionID, domain.HumanVoteRequest{Choice: msg.Choice})
		})
	case protocol.TypeHumanYield:
		var msg protocol.HumanYieldMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeInvalidMessage, "invalid human_yield message")
			return
		}
		s.submit(conn, msg.RequestID, protocol.TypeHumanYield, func(ctx context.Context) (*domain.SessionState, error) {
			return s.sessions.SubmitHumanYield(ctx, conn.SessionID, domain.HumanYieldRequest{Target: msg.Target})
		})
	default:
		s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello binds the connection to a session and sends hello_ack followed by the current state.
func (s *Server) handleHello(conn *hub.Connection, pathSession string, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = pathSession
	}
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "session_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()
	state, err := s.sessions.GetState(ctx, sessionID)
	if err != nil {
		s.sendError(conn, msg.RequestID, domain.ErrorCode(err), err.Error())
		return
	}

	// Bind connection to session
	s.hub.BindSession(conn, sessionID, msg.AttendeeID)

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			SessionID: sessionID,
		},
		ConnectionID: conn.ID,
		AttendeeID:   msg.AttendeeID,
	}
	s.hub.SendJSONToConnection(conn, ack)
	s.sendState(conn, msg.RequestID, state)

	s.logger.Info("hello handshake completed", "session_id", sessionID, "conn_id", conn.ID, "attendee_id", msg.AttendeeID)
}

func (s *Server) handleGetState(conn *hub.Connection, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()
	state, err := s.sessions.GetState(ctx, conn.SessionID)
	if err != nil {
		s.sendError(conn, requestID, domain.ErrorCode(err), err.Error())
		return
	}
	s.sendState(conn, requestID, state)
}

// handleAdvance runs a coordinator step off the read loop; producers may take a while.
func (s *Server) handleAdvance(conn *hub.Connection, requestID string) {
	sessionID := conn.SessionID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
		defer cancel()

		resp, err := s.sessions.Advance(ctx, sessionID)
		if err != nil {
			s.sendError(conn, requestID, domain.ErrorCode(err), err.Error())
			return
		}
		s.sendResult(conn, requestID, protocol.TypeAdvance, resp.Result)
	}()
}

func (s *Server) submit(conn *hub.Connection, requestID, request string, fn func(ctx context.Context) (*domain.SessionState, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()

	state, err := fn(ctx)
	if err != nil {
		s.sendError(conn, requestID, domain.ErrorCode(err), err.Error())
		return
	}
	s.sendResult(conn, requestID, request, map[string]int64{"version": state.Version})
}

func (s *Server) sendState(conn *hub.Connection, requestID string, state *domain.SessionState) {
	msg := protocol.StateMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeState,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.SessionID,
		},
		State: state,
	}
	if err := s.hub.SendJSONToConnection(conn, msg); err != nil {
		s.logger.Warn("failed to send state", "conn_id", conn.ID, "error", err)
	}
}

func (s *Server) sendResult(conn *hub.Connection, requestID, request string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(conn, requestID, protocol.ErrorCodeInternalError, err.Error())
		return
	}
	msg := protocol.ResultMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeResult,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.SessionID,
		},
		Request: request,
		Result:  data,
	}
	if err := s.hub.SendJSONToConnection(conn, msg); err != nil {
		s.logger.Warn("failed to send result", "conn_id", conn.ID, "error", err)
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.SessionID,
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
