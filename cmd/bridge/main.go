package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/evobot/wa-rag-bridge/internal/biz"
	"github.com/evobot/wa-rag-bridge/internal/biz/usecase"
	"github.com/evobot/wa-rag-bridge/internal/conf"
	"github.com/evobot/wa-rag-bridge/internal/data"
	"github.com/evobot/wa-rag-bridge/internal/infra/llm"
	"github.com/evobot/wa-rag-bridge/internal/infra/vectorstore"
	"github.com/evobot/wa-rag-bridge/internal/logger"
	"github.com/evobot/wa-rag-bridge/internal/server"
	"github.com/evobot/wa-rag-bridge/internal/service"
	"github.com/redis/go-redis/v9"
)

const historyCleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("bridge stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize clients
	messageRepo, err := data.NewMessageRepo(cfg.ToGatewayOptions(), log)
	if err != nil {
		return err
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
	})
	log.Info("language model configured", "model", llmClient.Model())

	var store *vectorstore.Client
	if cfg.Qdrant.URL != "" {
		store, err = vectorstore.New(vectorstore.Config{
			URL:            cfg.Qdrant.URL,
			CollectionName: cfg.Qdrant.Collection,
			APIKey:         cfg.Qdrant.APIKey,
		})
		if err != nil {
			return err
		}
		log.Info("knowledge base enabled", "collection", cfg.Qdrant.Collection)
	} else {
		log.Warn("QDRANT_URL not set, answering without retrieval")
	}

	var redisClient *redis.Client
	if cfg.UseDurableBuffer() {
		redisClient, err = data.NewRedisClient(cfg.Buffer.RedisURI)
		if err != nil {
			return err
		}
	}

	// Initialize repository layer
	bufferCfg := cfg.Buffer.ToBufferConfig()
	repos, err := data.NewRepositories(redisClient, data.BufferOptions{
		KeySuffix: cfg.Buffer.KeySuffix,
		TTL:       bufferCfg.TTL,
	}, messageRepo, llmClient, store, cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.Close(); err != nil {
			log.Error("failed to close repositories", "error", err)
		}
	}()
	log.Info("history database opened", "path", cfg.History.DBPath)

	// Initialize usecase layer
	ucs := &biz.Usecases{
		Buffer: usecase.NewBufferUsecase(repos.DurableBuffer, repos.FallbackBuffer, log),
		Answer: usecase.NewAnswerUsecase(repos.LLM, repos.Retriever, repos.History, cfg.ToAnswerConfig(), log),
	}

	probeCtx, cancelProbe := context.WithTimeout(ctx, 5*time.Second)
	mode := ucs.Buffer.Probe(probeCtx)
	cancelProbe()
	debounceCfg := cfg.ToDebounceConfig()
	log.Info("message buffer ready", "mode", mode.String(), "quiet_interval", debounceCfg.QuietInterval)

	// Initialize service layer
	debounce := service.NewDebounceService(ucs.Buffer, ucs.Answer, repos.Message, debounceCfg, log)
	scheduler := service.NewMaintenanceScheduler(ucs.Buffer, ucs.Answer, bufferCfg.ReprobeInterval, historyCleanupInterval, log)
	scheduler.Start(ctx)

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		AdminAPIKey: cfg.Server.AdminAPIKey,
	}, debounce, ucs.Answer, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// Pending chats are answered before the stores close
		if err := debounce.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush on shutdown: %w", err))
		}
		scheduler.Stop()
		return errors.Join(errs...)
	})

	log.Info("bridge started", "addr", cfg.Server.Addr, "gateway", cfg.Gateway.Provider)
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
