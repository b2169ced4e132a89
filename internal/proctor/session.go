package proctor

import (
	"sync"
	"time"
)

// Status of a session. Terminated sessions are removed from the registry, so
// snapshots only ever report StatusActive; the constant exists for the admin
// surface contract.
type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

const maxRiskScore = 100

// Session is the streaming/monitoring context for one exam attempt. All
// mutable fields are guarded by mu; cross-session operations never share it.
type Session struct {
	ID            string
	StudentConnID string
	StudentID     string
	StudentName   string
	ExamID        string
	ExamTitle     string
	StartTime     time.Time

	mu                sync.Mutex
	lastActivity      time.Time
	mentorConns       map[string]string // connectionID -> mentorID
	violationCount    int
	riskScore         int
	lastViolationType string
}

// Snapshot is a point-in-time copy of a session, safe to hand out and
// serialize for the admin surface.
type Snapshot struct {
	SessionID     string    `json:"sessionId"`
	StudentID     string    `json:"studentId"`
	StudentName   string    `json:"studentName"`
	ExamID        string    `json:"examId"`
	ExamTitle     string    `json:"examTitle"`
	StartTime     time.Time `json:"startTime"`
	MentorCount   int       `json:"mentorCount"`
	Violations    int       `json:"violations"`
	RiskScore     int       `json:"riskScore"`
	LastViolation string    `json:"lastViolation,omitempty"`
	Duration      int64     `json:"duration"` // seconds since StartTime
	Status        Status    `json:"status"`
}

func (s *Session) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:     s.ID,
		StudentID:     s.StudentID,
		StudentName:   s.StudentName,
		ExamID:        s.ExamID,
		ExamTitle:     s.ExamTitle,
		StartTime:     s.StartTime,
		MentorCount:   len(s.mentorConns),
		Violations:    s.violationCount,
		RiskScore:     s.riskScore,
		LastViolation: s.lastViolationType,
		Duration:      int64(now.Sub(s.StartTime) / time.Second),
		Status:        StatusActive,
	}
}

// AddMentor records a subscriber connection. Joining twice is a no-op; the
// return value reports whether the set changed.
func (s *Session) AddMentor(connID, mentorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mentorConns[connID]; ok {
		return false
	}
	s.mentorConns[connID] = mentorID
	return true
}

// RemoveMentor drops a subscriber connection, returning the mentorID it was
// registered under and whether it was present.
func (s *Session) RemoveMentor(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mentorID, ok := s.mentorConns[connID]
	if ok {
		delete(s.mentorConns, connID)
	}
	return mentorID, ok
}

// HasMentor reports whether the connection is subscribed to this session.
func (s *Session) HasMentor(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mentorConns[connID]
	return ok
}

func (s *Session) MentorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mentorConns)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// LastActivity returns the time of the last event seen for this session.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// recordViolation applies one violation, clamping the risk score at
// maxRiskScore. The score never decreases while the session lives.
func (s *Session) recordViolation(violationType string, severity int, now time.Time) (count, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violationCount++
	s.riskScore += severity
	if s.riskScore > maxRiskScore {
		s.riskScore = maxRiskScore
	}
	s.lastViolationType = violationType
	s.lastActivity = now
	return s.violationCount, s.riskScore
}
