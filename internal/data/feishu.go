package data

import (
	"context"

	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/evobot/wa-rag-bridge/internal/infra/feishu"
)

// feishuRepo delivers replies through Feishu
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu message repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}
