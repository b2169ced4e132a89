package presence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTracker(client, 30*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestMarkConnectedSetsKeyWithTTL(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	tr.MarkConnected(ctx, "42")

	if got, err := mr.Get("user:42:online"); err != nil || got != "1" {
		t.Fatalf("online key = %q, %v", got, err)
	}
	if ttl := mr.TTL("user:42:online"); ttl != 30*time.Second {
		t.Fatalf("ttl = %v, want 30s", ttl)
	}
}

func TestMarkDisconnectedRemovesKey(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	tr.MarkConnected(ctx, "42")
	tr.MarkDisconnected(ctx, "42")

	if mr.Exists("user:42:online") {
		t.Fatal("online key must be gone after disconnect")
	}
}

func TestSessionKeys(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	tr.MarkSession(ctx, "sess-1")
	if !mr.Exists("proctor:session:sess-1") {
		t.Fatal("session key not set")
	}
	if ttl := mr.TTL("proctor:session:sess-1"); ttl != 30*time.Second {
		t.Fatalf("session ttl = %v", ttl)
	}

	tr.ClearSession(ctx, "sess-1")
	if mr.Exists("proctor:session:sess-1") {
		t.Fatal("session key must be gone after clear")
	}
}

func TestKeyExpiresWithoutRefresh(t *testing.T) {
	tr, mr := newTestTracker(t)
	tr.MarkConnected(context.Background(), "42")

	mr.FastForward(31 * time.Second)

	if mr.Exists("user:42:online") {
		t.Fatal("unrefreshed key must expire")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	tr := NewTracker(nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// None of these may panic or block on a disabled tracker.
	tr.MarkConnected(ctx, "42")
	tr.MarkDisconnected(ctx, "42")
	tr.MarkSession(ctx, "sess-1")
	tr.ClearSession(ctx, "sess-1")
	tr.KeepAlive(ctx, "42")
}
