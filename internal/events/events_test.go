package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rental-marketplace/backend/internal/logger"
)

type capturePublisher struct {
	events []Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, events ...Event) error {
	c.events = append(c.events, events...)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

func TestEmitter_StampsAndSwallowsErrors(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pub := &capturePublisher{}
	em := NewEmitter(pub, logger.Discard(), func() time.Time { return at })

	em.Emit(context.Background(), ReservationCreated, "listing-1", map[string]string{"id": "r1"})
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	if got := pub.events[0]; got.Type != ReservationCreated || got.Key != "listing-1" || !got.Timestamp.Equal(at) {
		t.Fatalf("unexpected event %+v", got)
	}

	pub.err = errors.New("broker down")
	em.Emit(context.Background(), ReservationCancelled, "listing-1", nil)

	var nilEmitter *Emitter
	nilEmitter.Emit(context.Background(), ReservationCreated, "k", nil)
}

func TestToMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := toMessage(Event{Type: ListingDeleted, Key: "listing-9", Timestamp: at, Payload: map[string]int{"guests": 2}})
	if err != nil {
		t.Fatalf("to message: %v", err)
	}
	if string(msg.Key) != "listing-9" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != ListingDeleted {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}

	var decoded struct {
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Type != ListingDeleted || decoded.Payload["guests"] != 2 {
		t.Fatalf("unexpected value %s", msg.Value)
	}

	if _, err := toMessage(Event{Type: ListingDeleted}); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  KafkaConfig
	}{
		{"no brokers", KafkaConfig{Topic: "t"}},
		{"no topic", KafkaConfig{Brokers: []string{"localhost:9092"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewKafkaPublisher(tt.cfg, logger.Discard()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestKafkaPublisher_ClosedRejectsPublish(t *testing.T) {
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, logger.Discard())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Publish(context.Background(), Event{Type: ReservationCreated, Key: "k"}); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
