package domain

import (
	"time"
)

// SenderRole identifies who authored a chat message.
type SenderRole string

const (
	SenderUser SenderRole = "user"
	SenderAI   SenderRole = "ai"
	SenderPro  SenderRole = "pro"
)

// ChatMessage is a single conversation entry. Text may be empty when an
// image is attached.
type ChatMessage struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	SenderRole SenderRole `json:"sender_role"`
	Text       string     `json:"text"`
	ImageURL   string     `json:"image_url,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
