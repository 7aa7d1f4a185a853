package domain

import "time"

// Role is the author of a conversation turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message sent to the language model
type ChatTurn struct {
	Role    Role
	Content string
}

// HistoryMessage is a persisted conversation turn
type HistoryMessage struct {
	ID        int64
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Turn converts the history entry into a model turn
func (h *HistoryMessage) Turn() ChatTurn {
	return ChatTurn{Role: h.Role, Content: h.Content}
}

// HistoryConfig bounds the conversation history fed to the model
type HistoryConfig struct {
	MaxMessages int
	TTL         time.Duration
}

// Since returns the oldest timestamp still inside the history window
func (c HistoryConfig) Since(now time.Time) time.Time {
	if c.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(-c.TTL)
}
