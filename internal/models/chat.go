package models

import "time"

// MessageType distinguishes who produced a chat message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeBot    MessageType = "bot"
	MessageTypeSystem MessageType = "sistema"
)

// ChatMessage is one entry of a room transcript. Messages are append-only:
// created on send or on system events, broadcast to room subscribers, never
// mutated or deleted afterwards.
type ChatMessage struct {
	ID          int64       `json:"id,omitempty"`
	Room        string      `json:"sala"`
	User        string      `json:"usuario"`
	Content     string      `json:"contenido"`
	Type        MessageType `json:"tipo"`
	Time        string      `json:"hora"`
	AvatarEmoji string      `json:"avatar_emoji,omitempty"`
	AvatarColor string      `json:"avatar_color,omitempty"`
	CreatedAt   time.Time   `json:"-"`
}

// FormatHour renders the wire "hora" field from a message timestamp.
func FormatHour(t time.Time) string {
	return t.UTC().Format("15:04")
}
