package data

import (
	"context"
	"sync"

	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
)

// memoryBufferRepo keeps chat queues in process memory.
// Queues have no expiry; they live until drained or cleared.
type memoryBufferRepo struct {
	mu     sync.Mutex
	queues map[string][]string
}

// NewMemoryBufferRepo creates an in-process buffer repository
func NewMemoryBufferRepo() repo.BufferRepo {
	return &memoryBufferRepo{
		queues: make(map[string][]string),
	}
}

func (r *memoryBufferRepo) Append(ctx context.Context, chatID, text string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queues[chatID] = append(r.queues[chatID], text)
	return int64(len(r.queues[chatID])), nil
}

func (r *memoryBufferRepo) Drain(ctx context.Context, chatID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.queues[chatID]
	delete(r.queues, chatID)
	return items, nil
}

func (r *memoryBufferRepo) Peek(ctx context.Context, chatID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.queues[chatID]
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]string, len(items))
	copy(out, items)
	return out, nil
}

func (r *memoryBufferRepo) Clear(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.queues, chatID)
	return nil
}

func (r *memoryBufferRepo) Ping(ctx context.Context) error {
	return nil
}

func (r *memoryBufferRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queues = make(map[string][]string)
	return nil
}
