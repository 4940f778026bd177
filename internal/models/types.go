package models

import (
	"time"
)

// Role of a message author
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message sent to a completion provider
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Mode is the conversation mode a user picked from the menu
type Mode string

const (
	ModeUnset Mode = ""
	ModeText  Mode = "text"
	ModeImage Mode = "image"
	ModeVideo Mode = "video"
)

// ParseMode maps a stored value back onto the closed set of modes.
// Anything unknown is treated as no selection.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeText, ModeImage, ModeVideo:
		return Mode(s)
	default:
		return ModeUnset
	}
}

// User represents a registered bot user
type User struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	LastActive time.Time
}

// Turn is one persisted message of a user's conversation
type Turn struct {
	ID        int64
	UserID    int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// CacheEntry represents a cached generation result
type CacheEntry struct {
	URL       string
	CreatedAt time.Time
}
