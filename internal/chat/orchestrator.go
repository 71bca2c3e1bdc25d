// Package chat composes the relay and the assistant gateway into one
// conversation surface: local echo first, then remote fan-out or an AI turn.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miktsoan/core/internal/assistant"
	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/state"
)

// State is the orchestrator phase for a single chat turn.
type State string

const (
	StateIdle       State = "idle"
	StateComposing  State = "composing"
	StateSending    State = "sending"
	StateAwaitingAI State = "awaiting_ai_reply"
	StateBroadcast  State = "broadcast"
)

// Gateway produces an assistant reply. Satisfied by *assistant.Gateway.
type Gateway interface {
	Converse(ctx context.Context, turns []assistant.Turn, att *assistant.Attachment) string
}

// Broadcaster fans a message out to a peer room. Satisfied by the relay
// adapter wired in main.
type Broadcaster interface {
	Broadcast(roomID string, msg domain.ChatMessage)
}

// Conversation sequences one chat surface. The message list holds locally
// authored messages in creation order and relayed/AI messages in arrival
// order; it lives only in memory.
type Conversation struct {
	mu       sync.Mutex
	phase    State
	messages []domain.ChatMessage

	gateway  Gateway
	relay    Broadcaster
	appState *state.Container
}

// NewConversation creates an idle conversation.
func NewConversation(gateway Gateway, relay Broadcaster, appState *state.Container) *Conversation {
	return &Conversation{
		phase:    StateIdle,
		gateway:  gateway,
		relay:    relay,
		appState: appState,
	}
}

// State returns the current phase.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Messages returns a copy of the conversation so far.
func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// SendToAssistant runs one user/AI turn: local echo, audit event, gateway
// call, AI reply. Empty input is a no-op. The turn always resolves back to
// Idle; a reply arriving after the context was cancelled is discarded
// without touching the message list.
func (c *Conversation) SendToAssistant(ctx context.Context, text string, att *assistant.Attachment) string {
	c.setPhase(StateSending)
	if text == "" && att == nil {
		c.setPhase(StateIdle)
		return ""
	}

	echo := c.newMessage(domain.SenderUser, text)
	if att != nil {
		echo.ImageURL = "inline:" + att.MIMEType
	}
	turns := c.appendAndCollect(echo)

	c.appState.AppendHistory(ctx, domain.ActionChatMessage, map[string]any{
		"textLength": len(text),
		"hasImage":   att != nil,
	})

	c.setPhase(StateAwaitingAI)
	reply := c.gateway.Converse(ctx, turns, att)

	if ctx.Err() != nil {
		// The user navigated away mid-call; drop the late reply rather
		// than reopening a stale conversation view.
		c.setPhase(StateIdle)
		return ""
	}

	aiMsg := c.newMessage(domain.SenderAI, reply)
	aiMsg.SenderID = "ai"
	c.append(aiMsg)

	c.setPhase(StateIdle)
	return reply
}

// SendToPeer echoes the message locally and publishes it to the room. The
// relay suppresses delivery back to the sender, so the local echo is the
// only copy the author sees.
func (c *Conversation) SendToPeer(ctx context.Context, roomID, text, imageURL string) {
	c.setPhase(StateSending)
	if text == "" && imageURL == "" {
		c.setPhase(StateIdle)
		return
	}

	msg := c.newMessage(domain.SenderUser, text)
	msg.ImageURL = imageURL
	c.append(msg)

	c.appState.AppendHistory(ctx, domain.ActionChatMessage, map[string]any{
		"roomId":     roomID,
		"textLength": len(text),
		"hasImage":   imageURL != "",
	})

	c.setPhase(StateBroadcast)
	c.relay.Broadcast(roomID, msg)
	c.setPhase(StateIdle)
}

// ReceiveRemote appends a message relayed from a peer, in arrival order.
func (c *Conversation) ReceiveRemote(msg domain.ChatMessage) {
	c.append(msg)
}

func (c *Conversation) newMessage(role domain.SenderRole, text string) domain.ChatMessage {
	senderID := domain.GuestUserID
	if s := c.appState.Session(); s != nil {
		senderID = s.ID
	}
	return domain.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		SenderRole: role,
		Text:       text,
		Timestamp:  time.Now(),
	}
}

func (c *Conversation) append(msg domain.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// appendAndCollect appends the echo and snapshots the turn list while still
// holding the lock, so the gateway sees a consistent conversation.
func (c *Conversation) appendAndCollect(msg domain.ChatMessage) []assistant.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)

	turns := make([]assistant.Turn, 0, len(c.messages))
	for _, m := range c.messages {
		turns = append(turns, assistant.Turn{Role: m.SenderRole, Text: m.Text})
	}
	return turns
}

func (c *Conversation) setPhase(s State) {
	c.mu.Lock()
	c.phase = s
	c.mu.Unlock()
}
