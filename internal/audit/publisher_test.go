package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestRecordPublishesKeyedBySession(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	p := newPublisher(w, slog.New(slog.NewTextHandler(io.Discard, nil)))
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	p.Record(context.Background(), "violation", "sess-1", map[string]any{
		"violationType": "tab-switch",
		"severity":      10,
	})
	require.NoError(t, p.Close())

	require.True(t, w.closed)
	require.Len(t, w.msgs, 1)
	require.Equal(t, "sess-1", string(w.msgs[0].Key))

	var evt Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &evt))
	require.Equal(t, "violation", evt.Type)
	require.Equal(t, "sess-1", evt.SessionID)
	require.Equal(t, at, evt.At)
	require.Equal(t, "tab-switch", evt.Fields["violationType"])
}

func TestCloseFlushesQueue(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	p := newPublisher(w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 10; i++ {
		p.Record(context.Background(), "stream-started", "sess-1", nil)
	}
	require.NoError(t, p.Close())

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 10)
}

func TestRecordNeverBlocksWhenQueueFull(t *testing.T) {
	t.Parallel()
	// A writer that blocks forever keeps the loop busy on the first event.
	blocked := make(chan struct{})
	w := &blockingWriter{release: blocked}
	p := newPublisher(w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueDepth+10; i++ {
			p.Record(context.Background(), "violation", "sess-1", nil)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stalled broker")
	}
	close(blocked)
	require.NoError(t, p.Close())
}

type blockingWriter struct {
	release chan struct{}
}

func (b *blockingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func (b *blockingWriter) Close() error { return nil }
