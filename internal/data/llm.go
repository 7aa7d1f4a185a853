package data

import (
	"context"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/evobot/wa-rag-bridge/internal/infra/llm"
)

// llmRepo adapts the OpenAI-compatible client to the domain turns
type llmRepo struct {
	client *llm.Client
}

// NewLLMRepo creates a new language model repository
func NewLLMRepo(client *llm.Client) repo.LLMRepo {
	return &llmRepo{client: client}
}

func (r *llmRepo) Complete(ctx context.Context, turns []domain.ChatTurn, temperature float32) (string, error) {
	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return r.client.Chat(ctx, messages, temperature)
}

func (r *llmRepo) Embed(ctx context.Context, text string) ([]float32, error) {
	return r.client.Embed(ctx, text)
}
