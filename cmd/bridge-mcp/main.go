package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/evobot/wa-rag-bridge/internal/logger"
	"github.com/evobot/wa-rag-bridge/internal/mcp"
)

const version = "v1.0.0"

// Serves the bridge admin API as MCP tools over stdio. Logs go to stderr so
// stdout stays reserved for the protocol.
func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		slog.Error("invalid log config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	apiURL := os.Getenv("BRIDGE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := mcp.NewClient(apiURL, os.Getenv("ADMIN_API_KEY"))
	server := mcp.NewServer(client, version)

	log.Info("mcp server starting", "bridge_api_url", apiURL)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
