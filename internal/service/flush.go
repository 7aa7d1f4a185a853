package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/google/uuid"
)

// flush drains the chat queue, answers the aggregated text and sends the
// reply. Generator failures are replaced by the apology text; send failures
// are recorded and not retried.
func (s *DebounceService) flush(ctx context.Context, chatID string) *domain.FlushResult {
	start := time.Now()
	result := &domain.FlushResult{
		FlushID: uuid.NewString(),
		ChatID:  chatID,
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	snap, err := s.buffer.Drain(ctx, chatID)
	if err != nil {
		result.DrainErr = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		return result
	}
	result.MessageCount = len(snap.Messages)

	input := snap.Text()
	if input == "" {
		return result
	}
	result.Input = input

	answer, err := s.generate(ctx, input, chatID)
	if err != nil {
		result.GenerateErr = err
		result.Apologized = true
		answer = s.config.ApologyText
	}
	result.Answer = answer

	if err := s.sender.SendText(ctx, chatID, answer); err != nil {
		result.SendErr = fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}
	return result
}

// generate calls the answer generator. Panics and empty answers count as failures.
func (s *DebounceService) generate(ctx context.Context, input, sessionID string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			answer = ""
			err = fmt.Errorf("%w: panic: %v", domain.ErrGenerationFailed, r)
		}
	}()

	answer, err = s.generator.Generate(ctx, input, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrEmptyAnswer)
	}
	return answer, nil
}

func (s *DebounceService) logResult(r *domain.FlushResult) {
	log := s.logger.With("flush_id", r.FlushID, "chat_id", r.ChatID)

	switch {
	case r.DrainErr != nil:
		log.Error("flush failed to read buffer", "error", r.DrainErr)
		return
	case r.Skipped():
		log.Debug("flush skipped, nothing to send", "messages", r.MessageCount)
		return
	}

	if r.GenerateErr != nil {
		log.Error("answer generation failed, sending apology", "error", r.GenerateErr)
	}
	if r.SendErr != nil {
		log.Error("failed to send answer", "answer_len", len(r.Answer), "error", r.SendErr)
		return
	}
	log.Info("answer sent",
		"messages", r.MessageCount,
		"input", truncate(r.Input, 80),
		"answer_len", len(r.Answer),
		"duration", r.Duration.Round(time.Millisecond),
	)
}

// truncate truncates a string to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
