package data

import (
	"context"
	"fmt"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/evobot/wa-rag-bridge/internal/infra/vectorstore"
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// qdrantRetriever embeds the query and searches the knowledge collection
type qdrantRetriever struct {
	store    *vectorstore.Client
	embedder Embedder
}

// NewQdrantRetriever creates a retriever backed by Qdrant
func NewQdrantRetriever(store *vectorstore.Client, embedder Embedder) repo.RetrieverRepo {
	return &qdrantRetriever{store: store, embedder: embedder}
}

func (r *qdrantRetriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, domain.Document{
			ID:      h.ID,
			Content: h.Content,
			Score:   h.Score,
			Source:  h.Source,
		})
	}
	return docs, nil
}
