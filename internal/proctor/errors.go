package proctor

import "errors"

var (
	// ErrSessionExists indicates a second start-stream for a sessionId that is
	// already live. Duplicate creation is a hard failure, never a silent
	// overwrite.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound indicates the sessionId has no active session.
	ErrSessionNotFound = errors.New("session not found")
)
