package domain

import (
	"errors"
	"strings"
	"time"
)

// DefaultApologyText is sent when the answer generator fails
const DefaultApologyText = "Desculpe, houve um erro ao processar sua mensagem."

// BufferMode selects where buffered messages are kept
type BufferMode int32

const (
	// BufferModeDurable keeps queues in the shared store (Redis)
	BufferModeDurable BufferMode = iota
	// BufferModeFallback keeps queues in process memory
	BufferModeFallback
)

func (m BufferMode) String() string {
	switch m {
	case BufferModeDurable:
		return "durable"
	case BufferModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// FlushSnapshot is the content of a chat queue taken at flush time.
// The queue is already empty when a snapshot exists.
type FlushSnapshot struct {
	ChatID   string
	Messages []string
	TakenAt  time.Time
}

// NewFlushSnapshot copies messages into a new snapshot
func NewFlushSnapshot(chatID string, messages []string) FlushSnapshot {
	copied := make([]string, len(messages))
	copy(copied, messages)
	return FlushSnapshot{
		ChatID:   chatID,
		Messages: copied,
		TakenAt:  time.Now(),
	}
}

// IsEmpty reports whether the snapshot holds no messages
func (s FlushSnapshot) IsEmpty() bool {
	return len(s.Messages) == 0
}

// Text returns the outgoing text: a single message trimmed, or all messages
// joined by newline in arrival order and trimmed.
func (s FlushSnapshot) Text() string {
	switch len(s.Messages) {
	case 0:
		return ""
	case 1:
		return strings.TrimSpace(s.Messages[0])
	default:
		return strings.TrimSpace(strings.Join(s.Messages, "\n"))
	}
}

// FlushResult describes one run of the flush pipeline
type FlushResult struct {
	FlushID      string
	ChatID       string
	MessageCount int
	Input        string
	Answer       string
	Apologized   bool // Answer is the apology text
	DrainErr     error
	GenerateErr  error
	SendErr      error
	Duration     time.Duration
}

// Skipped reports whether the flush found nothing to send
func (r *FlushResult) Skipped() bool {
	return r.DrainErr == nil && r.Input == ""
}

// Delivered reports whether an answer reached the gateway
func (r *FlushResult) Delivered() bool {
	return r.Answer != "" && r.SendErr == nil
}

// Err joins every failure recorded during the flush
func (r *FlushResult) Err() error {
	return errors.Join(r.DrainErr, r.GenerateErr, r.SendErr)
}

// BufferStatus is an overview of the coordinator state
type BufferStatus struct {
	Mode            BufferMode
	ArmedChats      int
	InflightFlushes int
}
