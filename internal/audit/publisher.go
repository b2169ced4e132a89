// Package audit exports session lifecycle and violation events to Kafka for
// the grading and analytics collaborators. Export is best-effort: the relay
// path must never block on the broker, so events pass through a bounded queue
// and are dropped with a warning when it is full. Video frames are never
// exported.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is one exported record. Keyed by session so per-session ordering is
// preserved in the topic.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	At        time.Time      `json:"at"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// writer is the subset of kafka.Writer the publisher needs; faked in tests.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements proctor.Recorder on top of a Kafka topic.
type Publisher struct {
	w     writer
	queue chan Event
	done  chan struct{}
	log   *slog.Logger
	now   func() time.Time
}

const queueDepth = 512

// NewPublisher starts the background writer loop. Close flushes and stops it.
func NewPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newPublisher(w, log)
}

func newPublisher(w writer, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		w:     w,
		queue: make(chan Event, queueDepth),
		done:  make(chan struct{}),
		log:   log,
		now:   time.Now,
	}
	go p.run()
	return p
}

// Record queues an event for export. Never blocks; drops when the queue is
// full or the publisher is closed.
func (p *Publisher) Record(_ context.Context, eventType, sessionID string, fields map[string]any) {
	evt := Event{Type: eventType, SessionID: sessionID, At: p.now().UTC(), Fields: fields}
	select {
	case p.queue <- evt:
	default:
		p.log.Warn("audit queue full, dropping event", "type", eventType, "session", sessionID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for evt := range p.queue {
		value, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = p.w.WriteMessages(ctx, kafka.Message{
			Key:   []byte(evt.SessionID),
			Value: value,
		})
		cancel()
		if err != nil {
			p.log.Warn("audit publish failed", "type", evt.Type, "session", evt.SessionID, "err", err)
		}
	}
}

// Close drains the queue, stops the writer loop, and closes the underlying
// Kafka writer.
func (p *Publisher) Close() error {
	close(p.queue)
	<-p.done
	return p.w.Close()
}
