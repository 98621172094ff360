// Package events publishes reservation lifecycle events to a domain event
// stream for downstream consumers such as analytics and payouts.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	ReservationCreated   = "reservation.created"
	ReservationCancelled = "reservation.cancelled"
	ReservationExpired   = "reservation.expired"
	ReservationPaid      = "reservation.payment_updated"
	ListingDeleted       = "listing.deleted"
)

// Event is a single domain event. Key determines partitioning, so events
// about the same listing keep their relative order.
type Event struct {
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Publisher writes events to the stream.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type nopPublisher struct{}

// NewNop returns a publisher that discards every event. It is used when no
// brokers are configured.
func NewNop() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, ...Event) error { return nil }
func (nopPublisher) Close() error                            { return nil }

// Emitter publishes after a commit. Failures are logged, never returned,
// since the state change they describe is already durable.
type Emitter struct {
	pub Publisher
	log *slog.Logger
	now func() time.Time
}

// NewEmitter wraps pub. A nil pub disables emission.
func NewEmitter(pub Publisher, log *slog.Logger, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{pub: pub, log: log, now: now}
}

// Emit stamps and publishes a single event.
func (e *Emitter) Emit(ctx context.Context, eventType, key string, payload any) {
	if e == nil || e.pub == nil {
		return
	}
	ev := Event{Type: eventType, Key: key, Timestamp: e.now().UTC(), Payload: payload}
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn("domain event not published", "type", eventType, "key", key, "error", err)
	}
}
