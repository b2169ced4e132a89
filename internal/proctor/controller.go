package proctor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/proctorlive/backend/internal/auth"
	"github.com/proctorlive/backend/internal/protocol"
)

// Router is the fan-out surface the controller drives. Implemented by the
// gateway's room router; faked in tests.
type Router interface {
	OpenRoom(sessionID, publisherConnID string)
	CloseRoom(sessionID string)
	Join(sessionID, connID string)
	Leave(sessionID, connID string)
	BroadcastToSession(sessionID, event string, payload any, excludeConnID string)
	BroadcastGlobal(event string, payload any)
	SendTo(connID, event string, payload any)
}

// Recorder receives lifecycle and violation events for external consumers.
// Implementations must never block the caller.
type Recorder interface {
	Record(ctx context.Context, eventType, sessionID string, fields map[string]any)
}

// NopRecorder discards everything; used when Kafka export is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, map[string]any) {}

// Presence mirrors live-session keys into an external store (Redis). The
// sweeper refreshes keys for surviving sessions so they outlive their TTL.
type Presence interface {
	MarkSession(ctx context.Context, sessionID string)
	ClearSession(ctx context.Context, sessionID string)
}

type nopPresence struct{}

func (nopPresence) MarkSession(context.Context, string)  {}
func (nopPresence) ClearSession(context.Context, string) {}

// Conn is the identity of the connection an event arrived on.
type Conn struct {
	ID       string
	Identity auth.Identity
}

// Controller orchestrates session lifecycle as a state machine over the
// registry, tracker, and router. Nothing in here is allowed to be fatal: one
// session's fault must not touch another's state.
type Controller struct {
	registry *Registry
	tracker  *Tracker
	router   Router
	recorder Recorder
	presence Presence
	log      *slog.Logger
	now      func() time.Time
}

func NewController(registry *Registry, tracker *Tracker, router Router, recorder Recorder, presence Presence, log *slog.Logger) *Controller {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if presence == nil {
		presence = nopPresence{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		registry: registry,
		tracker:  tracker,
		router:   router,
		recorder: recorder,
		presence: presence,
		log:      log,
		now:      time.Now,
	}
}

func (c *Controller) reject(conn Conn, reason string) {
	c.router.SendTo(conn.ID, protocol.EventError, protocol.ErrorMessage{Message: reason})
}

// StartStream handles student-start-stream: Absent -> Active. Only learners
// may publish; duplicate sessionIds are refused.
func (c *Controller) StartStream(ctx context.Context, conn Conn, p protocol.StartStream) {
	if conn.Identity.Role != auth.RoleLearner {
		c.reject(conn, "only learners can start a stream")
		return
	}
	if p.SessionID == "" {
		c.reject(conn, "sessionId required")
		return
	}
	s, err := c.registry.Create(CreateParams{
		SessionID:     p.SessionID,
		StudentConnID: conn.ID,
		StudentID:     p.StudentID,
		StudentName:   p.StudentName,
		ExamID:        p.ExamID,
		ExamTitle:     p.ExamTitle,
	})
	if err != nil {
		c.reject(conn, "session already active")
		return
	}
	c.router.OpenRoom(p.SessionID, conn.ID)
	c.router.BroadcastGlobal(protocol.EventNewStreamStarted, protocol.NewStreamStarted{
		SessionID:   s.ID,
		StudentID:   s.StudentID,
		StudentName: s.StudentName,
		ExamID:      s.ExamID,
		ExamTitle:   s.ExamTitle,
		StartTime:   s.StartTime,
	})
	c.presence.MarkSession(ctx, s.ID)
	c.recorder.Record(ctx, "stream-started", s.ID, map[string]any{
		"studentId": s.StudentID,
		"examId":    s.ExamID,
	})
	c.log.Info("stream started", "session", s.ID, "student", s.StudentID, "exam", s.ExamID)
}

// JoinStream handles mentor-join-stream. Unknown sessions are a silent no-op;
// a wrong role gets an error event and no mutation.
func (c *Controller) JoinStream(ctx context.Context, conn Conn, p protocol.JoinStream) {
	if !conn.Identity.Role.CanObserve() {
		c.reject(conn, "only mentors can join a stream")
		return
	}
	s, err := c.registry.Get(p.SessionID)
	if err != nil {
		return
	}
	mentorID := p.MentorID
	if mentorID == "" {
		mentorID = conn.Identity.UserID
	}
	if !s.AddMentor(conn.ID, mentorID) {
		// Already subscribed; a repeat join must not notify the publisher
		// again.
		return
	}
	c.router.Join(p.SessionID, conn.ID)
	c.router.SendTo(s.StudentConnID, protocol.EventMentorJoined, protocol.MentorPresence{MentorID: mentorID})
	c.log.Info("mentor joined", "session", s.ID, "mentor", mentorID)
}

// LeaveStream handles mentor-leave-stream. Idempotent; unknown sessions and
// non-members are no-ops.
func (c *Controller) LeaveStream(ctx context.Context, conn Conn, sessionID string) {
	s, err := c.registry.Get(sessionID)
	if err != nil {
		return
	}
	mentorID, ok := s.RemoveMentor(conn.ID)
	c.router.Leave(sessionID, conn.ID)
	if !ok {
		return
	}
	c.router.SendTo(s.StudentConnID, protocol.EventMentorLeft, protocol.MentorPresence{MentorID: mentorID})
	c.log.Info("mentor left", "session", s.ID, "mentor", mentorID)
}

// RelayFrame forwards a video frame to the room, excluding the sender. The
// frame payload is opaque and never decoded.
func (c *Controller) RelayFrame(conn Conn, sessionID string, raw json.RawMessage) {
	c.registry.Touch(sessionID)
	c.router.BroadcastToSession(sessionID, protocol.EventVideoFrame, raw, conn.ID)
}

// RelaySignal forwards WebRTC signaling (offer/answer/ice-candidate) to the
// room, excluding the sender.
func (c *Controller) RelaySignal(conn Conn, event, sessionID string, raw json.RawMessage) {
	c.registry.Touch(sessionID)
	c.router.BroadcastToSession(sessionID, event, raw, conn.ID)
}

// RecordViolation applies a violation and broadcasts the updated count and
// score to the room. Unknown sessions are no-ops.
func (c *Controller) RecordViolation(ctx context.Context, conn Conn, p protocol.Violation) {
	res, err := c.tracker.RecordViolation(p.SessionID, p.ViolationType, p.Severity)
	if err != nil {
		return
	}
	c.router.BroadcastToSession(p.SessionID, protocol.EventProctoringViolation, protocol.ViolationRelay{
		SessionID:      res.SessionID,
		ViolationType:  res.ViolationType,
		Severity:       res.Severity,
		Timestamp:      res.Timestamp,
		ViolationCount: res.ViolationCount,
		RiskScore:      res.RiskScore,
	}, "")
	c.recorder.Record(ctx, "violation", res.SessionID, map[string]any{
		"violationType": res.ViolationType,
		"severity":      res.Severity,
		"riskScore":     res.RiskScore,
	})
	c.log.Warn("violation recorded",
		"session", res.SessionID, "type", res.ViolationType, "riskScore", res.RiskScore)
}

// StopStream handles student-stop-stream: Active -> Terminated. Only the
// session's publisher may stop it.
func (c *Controller) StopStream(ctx context.Context, conn Conn, sessionID string) {
	s, err := c.registry.Get(sessionID)
	if err != nil {
		return
	}
	if s.StudentConnID != conn.ID {
		c.reject(conn, "only the publisher can stop the stream")
		return
	}
	c.endSession(ctx, s, "")
}

// Terminate is the administrative stop. Returns false when the session was
// already absent; no events fire in that case.
func (c *Controller) Terminate(ctx context.Context, sessionID, reason string) bool {
	s, err := c.registry.Get(sessionID)
	if err != nil {
		return false
	}
	// Claim before broadcasting: a racing disconnect or second terminate must
	// not replay the termination events.
	if !c.registry.Delete(s.ID) {
		return false
	}
	c.router.BroadcastToSession(sessionID, protocol.EventStreamTerminated, protocol.StreamTerminated{
		SessionID: sessionID,
		Reason:    reason,
	}, "")
	c.recorder.Record(ctx, "stream-terminated", sessionID, map[string]any{"reason": reason})
	c.finishSession(ctx, s, reason)
	return true
}

// endSession ends a session from the stop/disconnect paths. Removing the
// registry entry is the claim: whichever caller deletes it runs the teardown,
// any racing caller sees false and emits nothing.
func (c *Controller) endSession(ctx context.Context, s *Session, reason string) {
	if !c.registry.Delete(s.ID) {
		return
	}
	c.finishSession(ctx, s, reason)
}

// finishSession broadcasts stream-ended and tears the room down. The caller
// must have claimed the session via registry.Delete.
func (c *Controller) finishSession(ctx context.Context, s *Session, reason string) {
	c.router.BroadcastToSession(s.ID, protocol.EventStreamEnded, protocol.StreamEnded{SessionID: s.ID}, "")
	c.router.CloseRoom(s.ID)
	c.presence.ClearSession(ctx, s.ID)
	c.recorder.Record(ctx, "stream-ended", s.ID, map[string]any{
		"studentId": s.StudentID,
		"reason":    reason,
	})
	c.log.Info("stream ended", "session", s.ID, "reason", reason)
}

// Disconnect handles connection loss. If the connection was a publisher its
// session ends as if the student had stopped cleanly; every mentor membership
// it held is released. One disconnect may touch several sessions.
func (c *Controller) Disconnect(ctx context.Context, conn Conn) {
	for _, s := range c.registry.All() {
		if s.StudentConnID == conn.ID {
			c.endSession(ctx, s, "publisher disconnected")
			continue
		}
		if mentorID, ok := s.RemoveMentor(conn.ID); ok {
			c.router.Leave(s.ID, conn.ID)
			c.router.SendTo(s.StudentConnID, protocol.EventMentorLeft, protocol.MentorPresence{MentorID: mentorID})
		}
	}
}

// ListActiveStreams returns snapshots for the admin surface.
func (c *Controller) ListActiveStreams() []Snapshot {
	return c.registry.ListActive()
}

// Flag records an administrative flag against a live session. The flag itself
// is owned by an external collaborator; the coordinator only validates the
// session and emits the audit event.
func (c *Controller) Flag(ctx context.Context, sessionID, reason string) error {
	s, err := c.registry.Get(sessionID)
	if err != nil {
		return err
	}
	c.recorder.Record(ctx, "stream-flagged", s.ID, map[string]any{"reason": reason})
	c.log.Info("stream flagged", "session", s.ID, "reason", reason)
	return nil
}
