package domain

import (
	"time"
)

// Action tags an audit history event.
type Action string

const (
	ActionLogin         Action = "login"
	ActionSearch        Action = "search"
	ActionViewPro       Action = "view_pro"
	ActionCreateRequest Action = "create_request"
	ActionChatMessage   Action = "chat_message"
	ActionSignContract  Action = "sign_contract"
)

// GuestUserID is recorded on history events produced before login.
const GuestUserID = "guest"

// HistoryEvent is one append-only audit log entry. Events are never mutated
// or deleted once recorded.
type HistoryEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    Action         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
