package data

import (
	"fmt"
	"log/slog"

	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/evobot/wa-rag-bridge/internal/infra/evolution"
	"github.com/evobot/wa-rag-bridge/internal/infra/feishu"
)

// GatewayOptions selects and configures the outbound messaging gateway
type GatewayOptions struct {
	Provider        string // "evolution" or "feishu"
	Evolution       evolution.Config
	FeishuAppID     string
	FeishuAppSecret string
}

// NewMessageRepo creates the message repository for the configured gateway
func NewMessageRepo(opts GatewayOptions, logger *slog.Logger) (repo.MessageRepo, error) {
	switch opts.Provider {
	case "evolution":
		return NewEvolutionRepo(evolution.NewClient(opts.Evolution, logger)), nil
	case "feishu":
		return NewFeishuRepo(feishu.NewClient(opts.FeishuAppID, opts.FeishuAppSecret, logger)), nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", opts.Provider)
	}
}
