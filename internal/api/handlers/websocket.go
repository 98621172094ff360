package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers connect from the web app origin; the token authenticates.
		return true
	},
}

// ParticipantChecker decides whether a user may follow a conversation.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// WebSocketUpgrade returns a handler that upgrades authenticated HTTP
// connections to WebSocket.
func WebSocketUpgrade(hub *realtime.Hub, conversations ParticipantChecker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.CurrentUser(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := realtime.NewClient(hub, user.ID, user.Email)
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, client, hub, conversations, log)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *realtime.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped the client
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client commands until the connection closes.
func readPump(conn *websocket.Conn, client *realtime.Client, hub *realtime.Hub, conversations ParticipantChecker, log *slog.Logger) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", "user_id", client.UserID(), "error", err)
			}
			return
		}

		frame := handleCommand(message, client, hub, conversations)
		if err := hub.Reply(client, frame); err != nil {
			log.Warn("websocket reply dropped", "user_id", client.UserID(), "type", frame.Type, "error", err)
		}
	}
}

// handleCommand applies one client command and returns the reply frame.
func handleCommand(message []byte, client *realtime.Client, hub *realtime.Hub, conversations ParticipantChecker) realtime.Frame {
	var cmd realtime.Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return errorFrame("", apperror.CodeInvalidInput, "malformed command")
	}

	switch cmd.Type {
	case realtime.TypePing:
		return realtime.NewReply(realtime.TypePong, "", nil)

	case realtime.TypeSubscribe:
		if cmd.Channel == "" {
			return errorFrame("", apperror.CodeInvalidInput, "channel is required")
		}
		if code, msg := authorizeChannel(cmd.Channel, client, conversations); code != "" {
			return errorFrame(cmd.Channel, code, msg)
		}
		hub.Subscribe(client, cmd.Channel)
		return realtime.NewReply(realtime.TypeSubscribeAck, cmd.Channel, nil)

	case realtime.TypeUnsubscribe:
		if cmd.Channel == "" {
			return errorFrame("", apperror.CodeInvalidInput, "channel is required")
		}
		hub.Unsubscribe(client, cmd.Channel)
		return realtime.NewReply(realtime.TypeUnsubscribeAck, cmd.Channel, nil)

	default:
		return errorFrame(cmd.Channel, apperror.CodeInvalidInput, "unknown command type")
	}
}

// authorizeChannel returns an error code and message when client may not
// subscribe to channel. User channels belong to their email's owner; any
// other channel is a conversation ID.
func authorizeChannel(channel string, client *realtime.Client, conversations ParticipantChecker) (string, string) {
	email := client.Email()
	if channel == realtime.UserNotificationsChannel(email) || channel == realtime.ConversationUpdatesChannel(email) {
		return "", ""
	}
	if strings.Contains(channel, "@") {
		return apperror.CodeForbidden, "cannot subscribe to another user's channel"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := conversations.IsParticipant(ctx, channel, client.UserID())
	if err != nil {
		return apperror.CodeInternal, "failed to authorize channel"
	}
	if !ok {
		return apperror.CodeForbidden, "not a participant of this conversation"
	}
	return "", ""
}

func errorFrame(channel, code, msg string) realtime.Frame {
	return realtime.NewReply(realtime.TypeError, channel, realtime.ErrorPayload{Code: code, Message: msg})
}
