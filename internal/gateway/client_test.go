package gateway

import (
	"io"
	"log/slog"
	"testing"

	"github.com/proctorlive/backend/internal/auth"
)

func newDetachedClient() *Client {
	identity := auth.Identity{UserID: "42", Role: auth.RoleLearner}
	return newClient("conn-1", identity, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTrySendAfterCloseReportsFalse(t *testing.T) {
	t.Parallel()
	c := newDetachedClient()

	c.Close()

	// A broadcast holding this client from before the disconnect must get a
	// plain refusal, never a panic.
	if c.TrySend([]byte("x")) {
		t.Fatal("send after close must report false")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c := newDetachedClient()

	c.Close()
	c.Close()
}

func TestTrySendReportsFullQueue(t *testing.T) {
	t.Parallel()
	c := newDetachedClient()

	for i := 0; i < sendBufferSize; i++ {
		if !c.TrySend([]byte("x")) {
			t.Fatalf("queue rejected message %d below capacity", i)
		}
	}
	if c.TrySend([]byte("overflow")) {
		t.Fatal("full queue must refuse the message")
	}
}
