package repo

import (
	"context"
)

// BufferRepo is a per-chat FIFO of pending message texts
type BufferRepo interface {
	// Append adds a message to the tail of the chat queue and refreshes its expiry.
	// Returns the queue length after the append.
	Append(ctx context.Context, chatID, text string) (int64, error)

	// Drain atomically returns the whole queue in arrival order and empties it
	Drain(ctx context.Context, chatID string) ([]string, error)

	// Peek returns the queue without removing it
	Peek(ctx context.Context, chatID string) ([]string, error)

	// Clear drops the queue
	Clear(ctx context.Context, chatID string) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	Close() error
}
