package repo

import (
	"context"
)

// MessageRepo delivers outgoing text to a chat through the messaging gateway
type MessageRepo interface {
	// SendText sends a text message
	SendText(ctx context.Context, chatID, text string) error
}
