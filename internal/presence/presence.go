// Package presence mirrors liveness into Redis so the rest of the exam
// platform can see who is connected without talking to the coordinator. The
// coordinator's own state is in memory; Redis being down degrades visibility
// only, never correctness.
package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Keys expire if not refreshed; a crashed process leaves no ghosts.
	DefaultTTL = 30 * time.Second

	userKeyPrefix    = "user:"
	userKeySuffix    = ":online"
	sessionKeyPrefix = "proctor:session:"
)

// Tracker writes presence keys with a TTL and refreshes them while the
// connection lives. A nil client disables the tracker entirely.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewTracker(client *redis.Client, ttl time.Duration, log *slog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{client: client, ttl: ttl, log: log}
}

func userKey(userID string) string {
	return userKeyPrefix + userID + userKeySuffix
}

// MarkConnected sets the user's online key. Errors are logged and swallowed.
func (t *Tracker) MarkConnected(ctx context.Context, userID string) {
	if t.client == nil {
		return
	}
	if err := t.client.Set(ctx, userKey(userID), "1", t.ttl).Err(); err != nil {
		t.log.Warn("presence set failed", "user", userID, "err", err)
	}
}

// MarkDisconnected removes the user's online key.
func (t *Tracker) MarkDisconnected(ctx context.Context, userID string) {
	if t.client == nil {
		return
	}
	if err := t.client.Del(ctx, userKey(userID)).Err(); err != nil {
		t.log.Warn("presence del failed", "user", userID, "err", err)
	}
}

// MarkSession records a live proctoring session with the same TTL semantics.
func (t *Tracker) MarkSession(ctx context.Context, sessionID string) {
	if t.client == nil {
		return
	}
	if err := t.client.Set(ctx, sessionKeyPrefix+sessionID, "1", t.ttl).Err(); err != nil {
		t.log.Warn("session presence set failed", "session", sessionID, "err", err)
	}
}

// ClearSession removes a session's presence key once it ends.
func (t *Tracker) ClearSession(ctx context.Context, sessionID string) {
	if t.client == nil {
		return
	}
	if err := t.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		t.log.Warn("session presence del failed", "session", sessionID, "err", err)
	}
}

// KeepAlive refreshes the user's online key at two thirds of the TTL until
// ctx is cancelled. Run as a goroutine per connection.
func (t *Tracker) KeepAlive(ctx context.Context, userID string) {
	if t.client == nil {
		return
	}
	ticker := time.NewTicker(t.ttl * 2 / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.MarkConnected(ctx, userID)
		}
	}
}
