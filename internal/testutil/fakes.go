package testutil

import (
	"context"
	"sync"

	"github.com/rental-marketplace/backend/internal/events"
)

// Push is a realtime event captured by RecordingPublisher.
type Push struct {
	Channel string
	Event   string
	Payload any
}

// RecordingPublisher captures realtime pushes. Set Err to simulate a
// transport failure; pushes are recorded either way.
type RecordingPublisher struct {
	mu     sync.Mutex
	pushes []Push
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, channel, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, Push{Channel: channel, Event: event, Payload: payload})
	return p.Err
}

// Pushes returns a copy of the captured pushes.
func (p *RecordingPublisher) Pushes() []Push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Push(nil), p.pushes...)
}

// EventRecorder captures domain events.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

func (r *EventRecorder) Publish(_ context.Context, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return r.Err
}

func (r *EventRecorder) Close() error { return nil }

// Types returns the types of the captured events in order.
func (r *EventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
