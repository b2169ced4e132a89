package proctor

import (
	"sort"
	"sync"
	"time"
)

// Registry owns the sessionId -> Session table. Pure in-memory CRUD; it knows
// nothing about connections or rooms.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// CreateParams carries the publisher-supplied fields of a new session.
type CreateParams struct {
	SessionID     string
	StudentConnID string
	StudentID     string
	StudentName   string
	ExamID        string
	ExamTitle     string
}

// Create registers a new active session. Returns ErrSessionExists if the
// sessionId is already live.
func (r *Registry) Create(p CreateParams) (*Session, error) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[p.SessionID]; ok {
		return nil, ErrSessionExists
	}
	s := &Session{
		ID:            p.SessionID,
		StudentConnID: p.StudentConnID,
		StudentID:     p.StudentID,
		StudentName:   p.StudentName,
		ExamID:        p.ExamID,
		ExamTitle:     p.ExamTitle,
		StartTime:     now,
		lastActivity:  now,
		mentorConns:   make(map[string]string),
	}
	r.sessions[p.SessionID] = s
	return s, nil
}

func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session. Returns false if it was absent; never an error.
func (r *Registry) Delete(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// Touch updates a session's lastActivity. No-op if absent.
func (r *Registry) Touch(sessionID string) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
}

// ListActive returns snapshots of every live session, ordered by sessionId so
// the admin listing is stable across calls.
func (r *Registry) ListActive() []Snapshot {
	now := r.now()
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot(now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// All returns the live sessions themselves; used by the disconnect scan and
// the stale sweeper, which need more than a snapshot.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
