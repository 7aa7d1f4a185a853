package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

const seenTTL = 5 * time.Minute

// Coordinator is the debounce surface the HTTP layer drives
type Coordinator interface {
	Enqueue(ctx context.Context, chatID, text string) error
	FlushNow(ctx context.Context, chatID string) *domain.FlushResult
	Clear(ctx context.Context, chatID string) error
	Pending(ctx context.Context, chatID string) ([]string, error)
	Status() domain.BufferStatus
}

// HistoryClearer drops the stored conversation of a session
type HistoryClearer interface {
	ClearHistory(ctx context.Context, sessionID string) error
}

// Config holds HTTP server settings
type Config struct {
	Addr        string
	AdminAPIKey string
}

// Server exposes the gateway webhook and the admin API
type Server struct {
	coordinator Coordinator
	history     HistoryClearer
	adminAPIKey string
	logger      *slog.Logger

	engine *gin.Engine
	http   *http.Server

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time
	now        func() time.Time
}

// New creates the server and registers its routes. history may be nil.
func New(cfg Config, coordinator Coordinator, history HistoryClearer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coordinator: coordinator,
		history:     history,
		adminAPIKey: cfg.AdminAPIKey,
		logger:      logger.With("component", "server"),
		seenMsgs:    make(map[string]time.Time),
		now:         time.Now,
	}

	s.engine = gin.New()
	s.engine.Use(s.recovery(), s.requestLogger())
	s.routes()

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute, // admin flush waits for the answer
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.POST("/webhook", s.HandleWebhook)

	api := s.engine.Group("/api")
	api.Use(s.RequireAPIKey())
	{
		api.GET("/buffer/status", s.BufferStatus)
		api.GET("/buffer/:chat_id", s.BufferPending)
		api.POST("/buffer/:chat_id/flush", s.BufferFlush)
		api.DELETE("/buffer/:chat_id", s.BufferClear)
		api.DELETE("/history/:chat_id", s.HistoryClear)
	}
}

// Handler returns the routed gin engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// markSeen records a message id and reports whether it was already present.
// Entries older than seenTTL are dropped on every call.
func (s *Server) markSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}

	if _, ok := s.seenMsgs[msgID]; ok {
		return true
	}
	s.seenMsgs[msgID] = now
	return false
}
