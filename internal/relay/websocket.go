package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/state"
)

// Wire event types exchanged over the chat WebSocket.
const (
	eventJoin    = "join"
	eventSend    = "send_message"
	eventReceive = "receive_message"
)

// wireEvent is the message envelope on the chat socket. Beyond requiring a
// room_id on join/send, the message body is passed through opaquely.
type wireEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Broadcast publishes a server-originated chat message to every member of
// the room. With no sender connection, nobody is excluded from the fan-out.
func (h *Hub) Broadcast(roomID string, msg domain.ChatMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("Failed to encode chat message", "error", err)
		return
	}
	out, err := json.Marshal(wireEvent{Type: eventReceive, RoomID: roomID, Message: raw})
	if err != nil {
		slog.Warn("Failed to encode broadcast", "error", err)
		return
	}
	h.Publish(roomID, nil, out)
}

// WebSocketHandler upgrades chat connections and bridges them to the hub.
type WebSocketHandler struct {
	hub           *Hub
	appState      *state.Container
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new chat WebSocket handler.
func NewWebSocketHandler(hub *Hub, appState *state.Container, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		appState:      appState,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	client := h.hub.Connect(uuid.NewString())
	defer h.hub.Disconnect(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	slog.Info("Chat connection established", "client_id", client.ID(), "ip", r.RemoteAddr)

	// Writer: hub -> WebSocket. One goroutine per connection keeps
	// per-publisher FIFO intact.
	go func() {
		defer cancel()
		for payload := range client.Receive() {
			if err := ws.Write(ctx, websocket.MessageText, payload); err != nil {
				slog.Debug("WebSocket write error", "error", err, "client_id", client.ID())
				return
			}
		}
	}()

	// Reader: WebSocket -> hub.
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "client_id", client.ID())
			} else {
				slog.Warn("WebSocket read error", "error", err, "client_id", client.ID())
			}
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			slog.Debug("Dropping malformed wire event", "error", err, "client_id", client.ID())
			continue
		}
		if ev.RoomID == "" {
			slog.Debug("Dropping wire event without room_id", "type", ev.Type, "client_id", client.ID())
			continue
		}

		switch ev.Type {
		case eventJoin:
			h.hub.Join(ev.RoomID, client)
			slog.Info("Client joined room", "client_id", client.ID(), "room_id", ev.RoomID)
		case eventSend:
			h.broadcast(ctx, ev, client)
		}
	}
}

func (h *WebSocketHandler) broadcast(ctx context.Context, ev wireEvent, sender *Client) {
	out, err := json.Marshal(wireEvent{
		Type:    eventReceive,
		RoomID:  ev.RoomID,
		Message: ev.Message,
	})
	if err != nil {
		slog.Warn("Failed to encode broadcast", "error", err)
		return
	}

	h.hub.Publish(ev.RoomID, sender, out)

	// Audit trail only; the relay does not persist messages.
	h.appState.AppendHistory(ctx, domain.ActionChatMessage, map[string]any{
		"roomId": ev.RoomID,
		"relay":  true,
	})
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
