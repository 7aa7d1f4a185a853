package data

import (
	"errors"
	"fmt"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/evobot/wa-rag-bridge/internal/infra/llm"
	"github.com/evobot/wa-rag-bridge/internal/infra/vectorstore"
	"github.com/redis/go-redis/v9"
)

// Repositories contains all repositories
type Repositories struct {
	DurableBuffer  repo.BufferRepo // nil without Redis
	FallbackBuffer repo.BufferRepo
	Message        repo.MessageRepo
	History        repo.HistoryRepo
	LLM            repo.LLMRepo
	Retriever      repo.RetrieverRepo // nil without a knowledge base

	store *vectorstore.Client
}

// BufferOptions configures the Redis buffer
type BufferOptions struct {
	KeySuffix string
	TTL       time.Duration
}

// NewRepositories creates all repositories. redisClient and store may be nil.
func NewRepositories(
	redisClient *redis.Client,
	bufferOpts BufferOptions,
	message repo.MessageRepo,
	llmClient *llm.Client,
	store *vectorstore.Client,
	historyDBPath string,
) (*Repositories, error) {
	historyRepo, err := NewHistoryRepo(historyDBPath)
	if err != nil {
		return nil, err
	}

	llmRepo := NewLLMRepo(llmClient)
	repos := &Repositories{
		FallbackBuffer: NewMemoryBufferRepo(),
		Message:        message,
		History:        historyRepo,
		LLM:            llmRepo,
		store:          store,
	}
	if redisClient != nil {
		repos.DurableBuffer = NewRedisBufferRepo(redisClient, bufferOpts.KeySuffix, bufferOpts.TTL)
	}
	if store != nil {
		repos.Retriever = NewQdrantRetriever(store, llmRepo)
	}
	return repos, nil
}

// Close releases every underlying connection
func (r *Repositories) Close() error {
	var errs []error
	if r.DurableBuffer != nil {
		errs = append(errs, r.DurableBuffer.Close())
	}
	errs = append(errs, r.FallbackBuffer.Close(), r.History.Close())
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// NewRedisClient parses a redis:// URI and creates a client. The caller
// probes reachability; a client is returned even if the server is down.
func NewRedisClient(uri string) (*redis.Client, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis uri: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	return redis.NewClient(opts), nil
}
