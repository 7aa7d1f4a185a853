package repo

import (
	"context"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

// LLMRepo is the language model interface
type LLMRepo interface {
	// Complete returns the model reply for the given turns
	Complete(ctx context.Context, turns []domain.ChatTurn, temperature float32) (string, error)

	// Embed returns the embedding vector of a text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrieverRepo looks up knowledge base documents relevant to a query
type RetrieverRepo interface {
	Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error)
}
