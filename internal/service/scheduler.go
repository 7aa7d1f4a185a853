package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reprober tries to move the buffer back to the durable store
type Reprober interface {
	Reprobe(ctx context.Context) bool
}

// HistoryCleaner removes expired conversation history
type HistoryCleaner interface {
	CleanupHistory(ctx context.Context) (int64, error)
}

// MaintenanceScheduler runs periodic background maintenance
type MaintenanceScheduler struct {
	reprober Reprober       // nil disables the reprobe loop
	cleaner  HistoryCleaner // nil disables the cleanup loop

	reprobeInterval time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaintenanceScheduler creates a new maintenance scheduler.
// A zero reprobe interval disables automatic recovery of the durable store.
func NewMaintenanceScheduler(reprober Reprober, cleaner HistoryCleaner, reprobeInterval, cleanupInterval time.Duration, logger *slog.Logger) *MaintenanceScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceScheduler{
		reprober:        reprober,
		cleaner:         cleaner,
		reprobeInterval: reprobeInterval,
		cleanupInterval: cleanupInterval,
		logger:          logger.With("component", "scheduler"),
	}
}

// Start starts the scheduler
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.reprober != nil && s.reprobeInterval > 0 {
		s.wg.Add(1)
		go s.loop(s.reprobeInterval, s.reprobe)
	}
	if s.cleaner != nil && s.cleanupInterval > 0 {
		s.wg.Add(1)
		go s.loop(s.cleanupInterval, s.cleanup)
	}

	s.logger.Info("scheduler started", "reprobe_interval", s.reprobeInterval, "cleanup_interval", s.cleanupInterval)
}

// Stop stops the scheduler
func (s *MaintenanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *MaintenanceScheduler) loop(interval time.Duration, task func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}

func (s *MaintenanceScheduler) reprobe() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if s.reprober.Reprobe(ctx) {
		s.logger.Info("durable store recovered")
	}
}

func (s *MaintenanceScheduler) cleanup() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	n, err := s.cleaner.CleanupHistory(ctx)
	if err != nil {
		s.logger.Error("history cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("cleaned up history", "deleted", n)
	}
}
