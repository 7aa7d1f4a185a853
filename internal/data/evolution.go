package data

import (
	"context"

	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/evobot/wa-rag-bridge/internal/infra/evolution"
)

// evolutionRepo delivers replies through the Evolution WhatsApp API
type evolutionRepo struct {
	client *evolution.Client
}

// NewEvolutionRepo creates a new Evolution message repository
func NewEvolutionRepo(client *evolution.Client) repo.MessageRepo {
	return &evolutionRepo{client: client}
}

// SendText sends a text message to the chat's phone number
func (r *evolutionRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}
