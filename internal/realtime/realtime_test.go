package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rental-marketplace/backend/internal/logger"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receiveFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatalf("client queue closed")
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return Frame{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send():
		t.Fatalf("expected no frame, got %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

// waitFor polls until cond holds; subscription changes are applied by the
// hub goroutine asynchronously with respect to Publish.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesOnlyChannelSubscribers(t *testing.T) {
	hub := startHub(t)

	alice := NewClient(hub, "u1", "alice@example.com")
	bob := NewClient(hub, "u2", "bob@example.com")
	hub.Register(alice)
	hub.Register(bob)
	hub.Subscribe(alice, UserNotificationsChannel(alice.Email()))
	hub.Subscribe(bob, UserNotificationsChannel(bob.Email()))
	waitFor(t, func() bool { return hub.ChannelCount() == 2 })

	if err := hub.Publish(context.Background(), UserNotificationsChannel("alice@example.com"), EventNotificationNew, map[string]string{"id": "n1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	f := receiveFrame(t, alice)
	if f.Type != TypeEvent || f.Event != EventNotificationNew || f.Channel != "user-alice@example.com-notifications" {
		t.Fatalf("unexpected frame %+v", f)
	}
	expectNothing(t, bob)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, "u1", "alice@example.com")
	hub.Register(c)
	hub.Subscribe(c, "conv-1")
	waitFor(t, func() bool { return hub.ChannelCount() == 1 })

	hub.Unsubscribe(c, "conv-1")
	waitFor(t, func() bool { return hub.ChannelCount() == 0 })

	if err := hub.Publish(context.Background(), "conv-1", EventMessagesNew, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	expectNothing(t, c)
}

func TestHub_UnregisterClosesQueueAndCleansChannels(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, "u1", "alice@example.com")
	hub.Register(c)
	hub.Subscribe(c, "conv-1")
	waitFor(t, func() bool { return hub.ClientCount() == 1 && hub.ChannelCount() == 1 })

	hub.Unregister(c)
	waitFor(t, func() bool { return hub.ClientCount() == 0 && hub.ChannelCount() == 0 })

	if _, ok := <-c.Send(); ok {
		t.Fatalf("expected closed queue")
	}
}

func TestHub_ReplyGoesToSingleClient(t *testing.T) {
	hub := startHub(t)
	a := NewClient(hub, "u1", "a@example.com")
	b := NewClient(hub, "u2", "b@example.com")
	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	if err := hub.Reply(a, NewReply(TypePong, "", nil)); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if f := receiveFrame(t, a); f.Type != TypePong {
		t.Fatalf("expected pong, got %s", f.Type)
	}
	expectNothing(t, b)
}

func TestHub_StopDropsClients(t *testing.T) {
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(hub, "u1", "a@example.com")
	hub.Register(c)
	cancel()
	<-stopped

	if _, ok := <-c.Send(); ok {
		t.Fatalf("expected queue to be closed on shutdown")
	}
	// Calls after shutdown must not block.
	hub.Unregister(c)
	hub.Subscribe(c, "x")
}

type recordingPublisher struct {
	err    error
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, _ any) error {
	p.events = append(p.events, channel+"|"+event)
	return p.err
}

func TestNotifier_ChannelNamingAndSwallowedFailures(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, logger.Discard())
	ctx := context.Background()

	n.NotificationCreated(ctx, "g@example.com", &models.Notification{ID: "n1"})
	n.NotificationRemoved(ctx, "g@example.com", "n1")
	n.MessageCreated(ctx, &models.Message{ID: "m1", ConversationID: "c1"})
	n.ConversationUpdated(ctx, "g@example.com", ConversationUpdatePayload{ID: "c1"})

	want := []string{
		"user-g@example.com-notifications|notification:new",
		"user-g@example.com-notifications|notification:remove",
		"c1|messages:new",
		"g@example.com|conversation:update",
	}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), pub.events)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], pub.events[i])
		}
	}

	pub.err = errors.New("transport down")
	n.NotificationCreated(ctx, "g@example.com", &models.Notification{ID: "n2"})

	var nilNotifier *Notifier
	nilNotifier.NotificationCreated(ctx, "g@example.com", &models.Notification{ID: "n3"})
}

func TestEnvelope_RoundTrip(t *testing.T) {
	body, err := encodeEnvelope("c1", NewEventFrame("c1", EventMessagesNew, map[string]string{"id": "m1"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Channel != "c1" {
		t.Fatalf("unexpected channel %s", env.Channel)
	}

	var f Frame
	if err := json.Unmarshal(env.Frame, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if f.Event != EventMessagesNew {
		t.Fatalf("unexpected event %s", f.Event)
	}

	if _, err := decodeEnvelope([]byte(`{"channel":""}`)); err == nil {
		t.Fatalf("expected malformed envelope to be rejected")
	}
}
