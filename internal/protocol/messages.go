package protocol

import (
	"encoding/json"
	"time"
)

// Event name constants for the proctoring socket protocol.
const (
	// Inbound (client -> coordinator)
	EventStudentStartStream  = "student-start-stream"
	EventMentorJoinStream    = "mentor-join-stream"
	EventMentorLeaveStream   = "mentor-leave-stream"
	EventVideoFrame          = "video-frame"
	EventProctoringViolation = "proctoring-violation"
	EventOffer               = "offer"
	EventAnswer              = "answer"
	EventICECandidate        = "ice-candidate"
	EventStudentStopStream   = "student-stop-stream"

	// Outbound (coordinator -> clients)
	EventNewStreamStarted = "new-stream-started"
	EventMentorJoined     = "mentor-joined"
	EventMentorLeft       = "mentor-left"
	EventStreamEnded      = "stream-ended"
	EventStreamTerminated = "stream-terminated"
	EventError            = "error"
)

// Envelope is the wire frame for every socket message: an event name plus an
// opaque payload. Unknown event names are rejected at dispatch, not here.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound message. Marshal errors are impossible for the
// payload types this package defines, so the error is swallowed.
func Encode(event string, payload any) []byte {
	var raw json.RawMessage
	if payload != nil {
		b, _ := json.Marshal(payload)
		raw = b
	}
	b, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return b
}

// StartStream is the payload of student-start-stream.
type StartStream struct {
	SessionID   string `json:"sessionId"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName,omitempty"`
	ExamID      string `json:"examId"`
	ExamTitle   string `json:"examTitle,omitempty"`
}

// JoinStream is the payload of mentor-join-stream.
type JoinStream struct {
	SessionID string `json:"sessionId"`
	MentorID  string `json:"mentorId"`
}

// LeaveStream is the payload of mentor-leave-stream and student-stop-stream.
type LeaveStream struct {
	SessionID string `json:"sessionId"`
}

// VideoFrame is the payload of video-frame. FrameData is an opaque blob that
// is relayed verbatim, never decoded.
type VideoFrame struct {
	SessionID string          `json:"sessionId"`
	FrameData json.RawMessage `json:"frameData"`
	Timestamp int64           `json:"timestamp"`
}

// Violation is the payload of proctoring-violation.
type Violation struct {
	SessionID     string `json:"sessionId"`
	ViolationType string `json:"violationType"`
	Severity      int    `json:"severity,omitempty"`
}

// SessionRef extracts just the session id from any payload; used for the
// signaling relays whose remaining fields are passed through untouched.
type SessionRef struct {
	SessionID string `json:"sessionId"`
}

// NewStreamStarted is broadcast to all connections when a publisher goes live.
type NewStreamStarted struct {
	SessionID   string    `json:"sessionId"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	ExamID      string    `json:"examId"`
	ExamTitle   string    `json:"examTitle"`
	StartTime   time.Time `json:"startTime"`
}

// MentorPresence is sent to the publisher on mentor-joined / mentor-left.
type MentorPresence struct {
	MentorID string `json:"mentorId"`
}

// ViolationRelay is broadcast to the room after a violation is recorded.
type ViolationRelay struct {
	SessionID      string    `json:"sessionId"`
	ViolationType  string    `json:"violationType"`
	Severity       int       `json:"severity"`
	Timestamp      time.Time `json:"timestamp"`
	ViolationCount int       `json:"violationCount"`
	RiskScore      int       `json:"riskScore"`
}

// StreamEnded is broadcast to the room when a session ends for any reason.
type StreamEnded struct {
	SessionID string `json:"sessionId"`
}

// StreamTerminated precedes StreamEnded on an administrative termination.
type StreamTerminated struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// ErrorMessage is sent to the offending connection only.
type ErrorMessage struct {
	Message string `json:"message"`
}
