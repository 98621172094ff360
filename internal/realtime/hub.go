// Package realtime fans out state-change events to websocket subscribers,
// optionally bridged across instances through Redis pub/sub.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrBacklog is returned by Publish when the hub's queue is full.
var ErrBacklog = errors.New("realtime hub backlog full, event dropped")

// Publisher pushes an event to every subscriber of a channel. Delivery is
// best-effort: a nil error means the event was queued, not received.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type subscription struct {
	client  *Client
	channel string
}

type delivery struct {
	channel string
	data    []byte
}

type reply struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active websocket clients and the channels they
// subscribe to. All maps are owned by the Run goroutine.
type Hub struct {
	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan delivery
	replies     chan reply
	done        chan struct{}

	log *slog.Logger

	// Guards the counters read from other goroutines.
	mu           sync.RWMutex
	clientCount  int
	channelCount int
}

// NewHub creates a new websocket hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		channels:    make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan delivery, 256),
		replies:     make(chan reply, 64),
		done:        make(chan struct{}),
		log:         log,
	}
}

// Run starts the hub's event loop and returns when ctx is done.
// This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("realtime hub started")
	defer h.log.Info("realtime hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.updateCounts()
			return

		case client := <-h.register:
			h.clients[client] = true
			h.updateCounts()
			h.log.Debug("websocket client connected", "user_id", client.userID, "total", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.updateCounts()
				h.log.Debug("websocket client disconnected", "user_id", client.userID, "total", len(h.clients))
			}

		case sub := <-h.subscribe:
			if !h.clients[sub.client] {
				continue
			}
			subs, ok := h.channels[sub.channel]
			if !ok {
				subs = make(map[*Client]bool)
				h.channels[sub.channel] = subs
			}
			subs[sub.client] = true
			sub.client.channels[sub.channel] = true
			h.updateCounts()

		case sub := <-h.unsubscribe:
			h.removeSubscription(sub.client, sub.channel)
			h.updateCounts()

		case r := <-h.replies:
			if !h.clients[r.client] {
				continue
			}
			select {
			case r.client.send <- r.data:
			default:
				h.drop(r.client)
				h.updateCounts()
			}

		case d := <-h.broadcast:
			var slow []*Client
			for client := range h.channels[d.channel] {
				select {
				case client.send <- d.data:
				default:
					slow = append(slow, client)
				}
			}
			for _, client := range slow {
				h.log.Warn("websocket client too slow, disconnecting", "user_id", client.userID)
				h.drop(client)
			}
			if len(slow) > 0 {
				h.updateCounts()
			}
		}
	}
}

// drop removes a client from every channel and closes its send queue.
func (h *Hub) drop(client *Client) {
	for channel := range client.channels {
		h.removeSubscription(client, channel)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) removeSubscription(client *Client, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(client.channels, channel)
}

func (h *Hub) updateCounts() {
	h.mu.Lock()
	h.clientCount = len(h.clients)
	h.channelCount = len(h.channels)
	h.mu.Unlock()
}

// Publish queues an event frame for every local subscriber of channel.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := NewEventFrame(channel, event, payload).JSON()
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", event, err)
	}
	return h.deliver(channel, data)
}

// deliver queues pre-encoded frame bytes without blocking.
func (h *Hub) deliver(channel string, data []byte) error {
	select {
	case h.broadcast <- delivery{channel: channel, data: data}:
		return nil
	default:
		return ErrBacklog
	}
}

// Reply queues a frame for a single client, such as a command response.
// Replies to clients the hub has already dropped are discarded.
func (h *Hub) Reply(client *Client, frame Frame) error {
	data, err := frame.JSON()
	if err != nil {
		return fmt.Errorf("encoding %s reply: %w", frame.Type, err)
	}
	select {
	case h.replies <- reply{client: client, data: data}:
		return nil
	case <-h.done:
		return nil
	default:
		return ErrBacklog
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe adds client to channel's subscriber set.
func (h *Hub) Subscribe(client *Client, channel string) {
	select {
	case h.subscribe <- subscription{client: client, channel: channel}:
	case <-h.done:
	}
}

// Unsubscribe removes client from channel's subscriber set.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	select {
	case h.unsubscribe <- subscription{client: client, channel: channel}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientCount
}

// ChannelCount returns the number of channels with at least one subscriber.
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelCount
}

// Client represents a websocket connection of an authenticated user.
type Client struct {
	hub      *Hub
	send     chan []byte
	userID   string
	email    string
	channels map[string]bool // owned by the hub goroutine
}

// NewClient creates a new client for the given user.
func NewClient(hub *Hub, userID, email string) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, 256),
		userID:   userID,
		email:    email,
		channels: make(map[string]bool),
	}
}

// Send returns the client's outbound queue. It is closed when the hub drops the client.
func (c *Client) Send() chan []byte {
	return c.send
}

// UserID returns the authenticated user's ID.
func (c *Client) UserID() string {
	return c.userID
}

// Email returns the authenticated user's email.
func (c *Client) Email() string {
	return c.email
}
