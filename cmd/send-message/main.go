package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/evobot/wa-rag-bridge/internal/conf"
	"github.com/evobot/wa-rag-bridge/internal/data"
	"github.com/evobot/wa-rag-bridge/internal/logger"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 3 {
		fmt.Println("Usage: send-message <chat_id> <message...>")
		os.Exit(1)
	}
	chatID := os.Args[1]
	message := strings.Join(os.Args[2:], " ")

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateGateway(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	messageRepo, err := data.NewMessageRepo(cfg.ToGatewayOptions(), log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := messageRepo.SendText(ctx, chatID, message); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Message sent successfully!")
}
