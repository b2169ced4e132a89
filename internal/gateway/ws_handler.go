package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/proctorlive/backend/internal/auth"
	"github.com/proctorlive/backend/internal/presence"
	"github.com/proctorlive/backend/internal/proctor"
	"github.com/proctorlive/backend/internal/protocol"
)

// Server upgrades HTTP requests to proctoring socket connections and
// dispatches their events to the lifecycle controller.
type Server struct {
	verifier *auth.Verifier
	router   *Router
	ctrl     *proctor.Controller
	presence *presence.Tracker
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(verifier *auth.Verifier, router *Router, ctrl *proctor.Controller, pres *presence.Tracker, allowedOrigins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		verifier: verifier,
		router:   router,
		ctrl:     ctrl,
		presence: pres,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
			continue
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS authenticates the bearer token, upgrades the connection, and runs
// its read loop until disconnect. A bad token refuses the connection before
// any state is created.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}

	client := newClient(uuid.NewString(), identity, conn, s.log)
	s.router.Register(client.ID, client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.presence.MarkConnected(ctx, identity.UserID)
	go s.presence.KeepAlive(ctx, identity.UserID)
	go client.writePump()

	s.log.Info("connection established",
		"conn", client.ID, "user", identity.UserID, "role", identity.Role)

	s.readLoop(ctx, client)

	// Disconnect transition runs before the connection's resources go away.
	s.ctrl.Disconnect(context.Background(), proctor.Conn{ID: client.ID, Identity: identity})
	s.router.Unregister(client.ID)
	s.presence.MarkDisconnected(context.Background(), identity.UserID)
	client.Close()
	s.log.Info("connection closed", "conn", client.ID, "user", identity.UserID)
}

func (s *Server) readLoop(ctx context.Context, client *Client) {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(ctx, client, message)
	}
}

// dispatch decodes one inbound envelope and routes it by event name. Malformed
// payloads and unknown events produce an error event on the offending
// connection; they never touch session state or other connections.
func (s *Server) dispatch(ctx context.Context, client *Client, message []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.router.SendTo(client.ID, protocol.EventError, protocol.ErrorMessage{Message: "malformed message"})
		return
	}
	conn := proctor.Conn{ID: client.ID, Identity: client.Identity}

	switch env.Event {
	case protocol.EventStudentStartStream:
		var p protocol.StartStream
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.router.SendTo(client.ID, protocol.EventError, protocol.ErrorMessage{Message: "malformed payload"})
			return
		}
		s.ctrl.StartStream(ctx, conn, p)

	case protocol.EventMentorJoinStream:
		var p protocol.JoinStream
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.router.SendTo(client.ID, protocol.EventError, protocol.ErrorMessage{Message: "malformed payload"})
			return
		}
		s.ctrl.JoinStream(ctx, conn, p)

	case protocol.EventMentorLeaveStream:
		var p protocol.LeaveStream
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.ctrl.LeaveStream(ctx, conn, p.SessionID)

	case protocol.EventVideoFrame:
		var ref protocol.SessionRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.SessionID == "" {
			return
		}
		s.ctrl.RelayFrame(conn, ref.SessionID, env.Data)

	case protocol.EventProctoringViolation:
		var p protocol.Violation
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.ctrl.RecordViolation(ctx, conn, p)

	case protocol.EventOffer, protocol.EventAnswer, protocol.EventICECandidate:
		var ref protocol.SessionRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.SessionID == "" {
			return
		}
		s.ctrl.RelaySignal(conn, env.Event, ref.SessionID, env.Data)

	case protocol.EventStudentStopStream:
		var p protocol.LeaveStream
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.ctrl.StopStream(ctx, conn, p.SessionID)

	default:
		s.router.SendTo(client.ID, protocol.EventError, protocol.ErrorMessage{Message: "unknown event: " + env.Event})
	}
}
