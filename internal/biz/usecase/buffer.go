package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
)

// BufferConfig contains buffer configuration
type BufferConfig struct {
	TTL             time.Duration // Durable queue expiry, refreshed on append
	ReprobeInterval time.Duration // Fallback -> Durable probe period, 0 disables
}

// DefaultBufferConfig returns default buffer configuration
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		TTL:             300 * time.Second,
		ReprobeInterval: 0,
	}
}

// BufferUsecase selects between the durable store and the in-process
// fallback. Any durable failure moves the whole process to the fallback.
type BufferUsecase struct {
	durable  repo.BufferRepo // nil when no store is configured
	fallback repo.BufferRepo
	mode     atomic.Int32
	degraded atomic.Bool // set once the durable store may hold stranded messages
	logger   *slog.Logger
}

// NewBufferUsecase creates a new buffer usecase in fallback mode.
// Call Probe to enable the durable store.
func NewBufferUsecase(durable, fallback repo.BufferRepo, logger *slog.Logger) *BufferUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	uc := &BufferUsecase{
		durable:  durable,
		fallback: fallback,
		logger:   logger.With("component", "buffer"),
	}
	uc.mode.Store(int32(domain.BufferModeFallback))
	return uc
}

// Mode returns the current buffer mode
func (uc *BufferUsecase) Mode() domain.BufferMode {
	return domain.BufferMode(uc.mode.Load())
}

// Probe enables durable mode if the store answers. Returns the resulting mode.
func (uc *BufferUsecase) Probe(ctx context.Context) domain.BufferMode {
	if uc.durable == nil {
		return uc.Mode()
	}
	if err := uc.durable.Ping(ctx); err != nil {
		uc.logger.Warn("durable store unreachable, using in-process buffer", "error", err)
		return uc.Mode()
	}
	if uc.mode.CompareAndSwap(int32(domain.BufferModeFallback), int32(domain.BufferModeDurable)) {
		uc.logger.Info("durable store available, buffering in redis")
	}
	return uc.Mode()
}

// Reprobe tries to leave fallback mode. Returns true on a switch.
func (uc *BufferUsecase) Reprobe(ctx context.Context) bool {
	if uc.Mode() == domain.BufferModeDurable || uc.durable == nil {
		return false
	}
	return uc.Probe(ctx) == domain.BufferModeDurable
}

// degrade switches to fallback mode for the rest of the process
func (uc *BufferUsecase) degrade(op string, err error) {
	if uc.mode.CompareAndSwap(int32(domain.BufferModeDurable), int32(domain.BufferModeFallback)) {
		uc.degraded.Store(true)
		uc.logger.Warn("durable store failed, switching to in-process buffer", "op", op, "error", err)
	}
}

// Append adds a message to the chat queue. A durable failure degrades the
// mode and stores the message in the fallback, so it is never lost.
// A cancelled ctx fails the call without touching the mode.
func (uc *BufferUsecase) Append(ctx context.Context, chatID, text string) (int64, error) {
	if uc.Mode() == domain.BufferModeDurable {
		n, err := uc.durable.Append(ctx, chatID, text)
		if err == nil {
			return n, nil
		}
		if ctx.Err() != nil {
			return 0, fmt.Errorf("append cancelled: %w", err)
		}
		uc.degrade("append", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
	}
	return uc.fallback.Append(ctx, chatID, text)
}

// Drain takes and empties the chat queue. In durable mode the fallback is
// drained first so messages buffered before a recovery keep their order.
// After a degrade the durable queue is drained ahead of the fallback, since
// it holds the messages that were stored before the failure.
// A durable failure returns whatever the fallback held.
func (uc *BufferUsecase) Drain(ctx context.Context, chatID string) (domain.FlushSnapshot, error) {
	local, err := uc.fallback.Drain(ctx, chatID)
	if err != nil {
		return domain.FlushSnapshot{ChatID: chatID}, err
	}

	if uc.Mode() != domain.BufferModeDurable {
		if !uc.degraded.Load() {
			return domain.NewFlushSnapshot(chatID, local), nil
		}
		stranded, err := uc.durable.Drain(ctx, chatID)
		if err != nil {
			uc.logger.Warn("durable drain failed after degrade", "chat_id", chatID, "error", err)
			return domain.NewFlushSnapshot(chatID, local), nil
		}
		return domain.NewFlushSnapshot(chatID, append(stranded, local...)), nil
	}

	remote, err := uc.durable.Drain(ctx, chatID)
	if err != nil {
		uc.logger.Error("durable drain failed, using in-process buffer", "chat_id", chatID, "error", err)
		return domain.NewFlushSnapshot(chatID, local), nil
	}
	return domain.NewFlushSnapshot(chatID, append(local, remote...)), nil
}

// Peek returns the pending messages without removing them, in Drain order
func (uc *BufferUsecase) Peek(ctx context.Context, chatID string) ([]string, error) {
	local, err := uc.fallback.Peek(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if uc.Mode() != domain.BufferModeDurable {
		if !uc.degraded.Load() {
			return local, nil
		}
		stranded, err := uc.durable.Peek(ctx, chatID)
		if err != nil {
			return local, nil
		}
		return append(stranded, local...), nil
	}
	remote, err := uc.durable.Peek(ctx, chatID)
	if err != nil {
		return local, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return append(local, remote...), nil
}

// Clear drops the chat queue from both stores
func (uc *BufferUsecase) Clear(ctx context.Context, chatID string) error {
	if err := uc.fallback.Clear(ctx, chatID); err != nil {
		return err
	}
	if uc.Mode() != domain.BufferModeDurable {
		if uc.degraded.Load() {
			_ = uc.durable.Clear(ctx, chatID)
		}
		return nil
	}
	if err := uc.durable.Clear(ctx, chatID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
