package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"golang.org/x/sync/errgroup"
)

// Buffer is the per-chat queue the coordinator appends to and drains
type Buffer interface {
	Append(ctx context.Context, chatID, text string) (int64, error)
	Drain(ctx context.Context, chatID string) (domain.FlushSnapshot, error)
	Peek(ctx context.Context, chatID string) ([]string, error)
	Clear(ctx context.Context, chatID string) error
	Mode() domain.BufferMode
}

// AnswerGenerator produces the reply for an aggregated user message
type AnswerGenerator interface {
	Generate(ctx context.Context, input, sessionID string) (string, error)
}

// DebounceConfig contains coordinator configuration
type DebounceConfig struct {
	QuietInterval time.Duration // Wait after the last message before flushing
	ApologyText   string        // Sent when the generator fails
	FlushTimeout  time.Duration // Upper bound for one flush
	AppendTimeout time.Duration // Upper bound for buffering one message
	// ShutdownConcurrency bounds parallel flushes on Stop
	ShutdownConcurrency int
}

// DefaultDebounceConfig returns default coordinator configuration
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		QuietInterval:       10 * time.Second,
		ApologyText:         domain.DefaultApologyText,
		FlushTimeout:        2 * time.Minute,
		AppendTimeout:       5 * time.Second,
		ShutdownConcurrency: 8,
	}
}

// chatState is the debounce state of one chat.
// Lifecycle: Idle -> Armed -> Flushing -> Idle; a detached state has left
// the map and must not be used again.
type chatState struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	inflight   int
	detached   bool

	flushMu sync.Mutex // serializes flushes of the chat
}

// DebounceService coalesces bursts of messages per chat into a single
// answer. Each arrival cancels the chat's pending timer and arms a new one;
// only a timer that survives a full quiet interval flushes the queue.
type DebounceService struct {
	buffer    Buffer
	generator AnswerGenerator
	sender    repo.MessageRepo
	config    DebounceConfig
	logger    *slog.Logger

	states   map[string]*chatState
	statesMu sync.Mutex

	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewDebounceService creates a new debounce coordinator
func NewDebounceService(buffer Buffer, generator AnswerGenerator, sender repo.MessageRepo, config DebounceConfig, logger *slog.Logger) *DebounceService {
	defaults := DefaultDebounceConfig()
	if config.QuietInterval <= 0 {
		config.QuietInterval = defaults.QuietInterval
	}
	if config.ApologyText == "" {
		config.ApologyText = defaults.ApologyText
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = defaults.FlushTimeout
	}
	if config.AppendTimeout <= 0 {
		config.AppendTimeout = defaults.AppendTimeout
	}
	if config.ShutdownConcurrency <= 0 {
		config.ShutdownConcurrency = defaults.ShutdownConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DebounceService{
		buffer:    buffer,
		generator: generator,
		sender:    sender,
		config:    config,
		logger:    logger.With("component", "debounce"),
		states:    make(map[string]*chatState),
	}
}

// Enqueue buffers a message and restarts the chat's quiet interval.
// It returns once the message is stored; it never waits for the flush.
// The append outlives a cancelled caller, bounded by AppendTimeout.
func (s *DebounceService) Enqueue(ctx context.Context, chatID, text string) error {
	if chatID == "" || text == "" {
		return nil
	}

	st := s.lockChat(chatID)
	defer st.mu.Unlock()

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AppendTimeout)
	defer cancel()

	n, err := s.buffer.Append(appendCtx, chatID, text)
	if err != nil {
		s.logger.Error("failed to buffer message", "chat_id", chatID, "error", err)
		s.forgetIfIdleLocked(chatID, st)
		return err
	}

	if s.stopped.Load() {
		s.logger.Warn("coordinator stopped, message buffered without timer", "chat_id", chatID)
		s.forgetIfIdleLocked(chatID, st)
		return nil
	}

	s.armLocked(chatID, st)
	s.logger.Debug("message buffered", "chat_id", chatID, "queue_len", n, "mode", s.buffer.Mode().String())
	return nil
}

// FlushNow cancels the chat's timer and flushes its queue immediately
func (s *DebounceService) FlushNow(ctx context.Context, chatID string) *domain.FlushResult {
	st := s.lockChat(chatID)
	s.cancelLocked(st)
	st.inflight++
	s.wg.Add(1)
	st.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FlushTimeout)
	defer cancel()
	return s.runFlush(flushCtx, chatID, st)
}

// Clear cancels the chat's timer and drops its pending messages
func (s *DebounceService) Clear(ctx context.Context, chatID string) error {
	st := s.lockChat(chatID)
	defer st.mu.Unlock()

	s.cancelLocked(st)
	err := s.buffer.Clear(ctx, chatID)
	s.forgetIfIdleLocked(chatID, st)
	return err
}

// Pending returns the messages waiting for the chat's next flush
func (s *DebounceService) Pending(ctx context.Context, chatID string) ([]string, error) {
	return s.buffer.Peek(ctx, chatID)
}

// Status returns an overview of the coordinator
func (s *DebounceService) Status() domain.BufferStatus {
	status := domain.BufferStatus{Mode: s.buffer.Mode()}
	for _, st := range s.snapshotStates() {
		st.mu.Lock()
		if st.timer != nil {
			status.ArmedChats++
		}
		status.InflightFlushes += st.inflight
		st.mu.Unlock()
	}
	return status
}

// Stop cancels every armed timer, flushes those chats right away and waits
// for in-flight flushes. Messages enqueued afterwards are stored but not
// scheduled.
func (s *DebounceService) Stop(ctx context.Context) error {
	s.stopped.Store(true)

	type pending struct {
		chatID string
		st     *chatState
	}
	var armed []pending
	for chatID, st := range s.snapshotStates() {
		st.mu.Lock()
		if st.timer != nil && !st.detached {
			s.cancelLocked(st)
			st.inflight++
			s.wg.Add(1)
			armed = append(armed, pending{chatID: chatID, st: st})
		}
		st.mu.Unlock()
	}

	if len(armed) > 0 {
		s.logger.Info("flushing pending chats before shutdown", "chats", len(armed))
	}

	g := new(errgroup.Group)
	g.SetLimit(s.config.ShutdownConcurrency)
	for _, p := range armed {
		g.Go(func() error {
			flushCtx, cancel := context.WithTimeout(context.Background(), s.config.FlushTimeout)
			defer cancel()
			s.runFlush(flushCtx, p.chatID, p.st)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lockChat returns the chat's live state with its mutex held
func (s *DebounceService) lockChat(chatID string) *chatState {
	for {
		s.statesMu.Lock()
		st, ok := s.states[chatID]
		if !ok {
			st = &chatState{}
			s.states[chatID] = st
		}
		s.statesMu.Unlock()

		st.mu.Lock()
		if !st.detached {
			return st
		}
		st.mu.Unlock()
		s.forget(chatID, st)
	}
}

// armLocked replaces the chat's timer. Must hold st.mu.
func (s *DebounceService) armLocked(chatID string, st *chatState) {
	s.cancelLocked(st)
	gen := st.generation
	st.timer = time.AfterFunc(s.config.QuietInterval, func() {
		s.fire(chatID, st, gen)
	})
}

// cancelLocked stops the chat's timer. A callback already running sees the
// bumped generation and does nothing. Must hold st.mu.
func (s *DebounceService) cancelLocked(st *chatState) {
	st.generation++
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// fire runs when a timer expires
func (s *DebounceService) fire(chatID string, st *chatState, gen uint64) {
	st.mu.Lock()
	if st.detached || st.timer == nil || st.generation != gen {
		st.mu.Unlock()
		return
	}
	st.timer = nil
	st.inflight++
	s.wg.Add(1)
	st.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.FlushTimeout)
	defer cancel()
	s.runFlush(ctx, chatID, st)
}

// runFlush executes one accounted flush. The caller has already
// incremented st.inflight and s.wg.
func (s *DebounceService) runFlush(ctx context.Context, chatID string, st *chatState) *domain.FlushResult {
	defer s.wg.Done()

	st.flushMu.Lock()
	result := s.flush(ctx, chatID)
	st.flushMu.Unlock()

	s.logResult(result)

	st.mu.Lock()
	st.inflight--
	s.forgetIfIdleLocked(chatID, st)
	st.mu.Unlock()
	return result
}

// forgetIfIdleLocked detaches an idle state and drops it from the map.
// Must hold st.mu.
func (s *DebounceService) forgetIfIdleLocked(chatID string, st *chatState) {
	if st.detached || st.timer != nil || st.inflight > 0 {
		return
	}
	st.detached = true
	s.forget(chatID, st)
}

// forget removes st from the map if it is still the chat's entry
func (s *DebounceService) forget(chatID string, st *chatState) {
	s.statesMu.Lock()
	if s.states[chatID] == st {
		delete(s.states, chatID)
	}
	s.statesMu.Unlock()
}

func (s *DebounceService) snapshotStates() map[string]*chatState {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	out := make(map[string]*chatState, len(s.states))
	for chatID, st := range s.states {
		out[chatID] = st
	}
	return out
}
