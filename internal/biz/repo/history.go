package repo

import (
	"context"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

// HistoryRepo stores conversation turns per session
type HistoryRepo interface {
	Append(ctx context.Context, msg *domain.HistoryMessage) error

	// Recent returns at most limit messages created after since, oldest first
	Recent(ctx context.Context, sessionID string, limit int, since time.Time) ([]*domain.HistoryMessage, error)

	Clear(ctx context.Context, sessionID string) error

	// CleanupStale removes messages older than before
	CleanupStale(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
