package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

type mockLLMRepo struct {
	mu      sync.Mutex
	calls   [][]domain.ChatTurn
	replies []string
	err     error
}

func (m *mockLLMRepo) Complete(ctx context.Context, turns []domain.ChatTurn, temperature float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, turns)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *mockLLMRepo) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

type mockRetriever struct {
	queries []string
	docs    []domain.Document
	err     error
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

type mockHistoryRepo struct {
	messages []*domain.HistoryMessage
	cleared  []string
}

func (m *mockHistoryRepo) Append(ctx context.Context, msg *domain.HistoryMessage) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockHistoryRepo) Recent(ctx context.Context, sessionID string, limit int, since time.Time) ([]*domain.HistoryMessage, error) {
	var out []*domain.HistoryMessage
	for _, msg := range m.messages {
		if msg.SessionID == sessionID && !msg.CreatedAt.Before(since) {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockHistoryRepo) Clear(ctx context.Context, sessionID string) error {
	m.cleared = append(m.cleared, sessionID)
	return nil
}

func (m *mockHistoryRepo) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockHistoryRepo) Close() error { return nil }

func TestAnswerUsecase_Generate_FirstTurn(t *testing.T) {
	llm := &mockLLMRepo{replies: []string{"  Olá! \n"}}
	retriever := &mockRetriever{docs: []domain.Document{{Content: "Abrimos às 9h"}, {Content: "Fechamos às 18h"}}}
	history := &mockHistoryRepo{}
	uc := NewAnswerUsecase(llm, retriever, history, DefaultAnswerConfig(), nil)

	answer, err := uc.Generate(context.Background(), "Que horas abre?", "chat-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "Olá!" {
		t.Errorf("Expected trimmed answer, got %q", answer)
	}

	// No history, so no contextualization call
	if len(llm.calls) != 1 {
		t.Fatalf("Expected 1 model call, got %d", len(llm.calls))
	}
	if retriever.queries[0] != "Que horas abre?" {
		t.Errorf("Expected raw query, got %q", retriever.queries[0])
	}

	turns := llm.calls[0]
	if turns[0].Role != domain.RoleSystem {
		t.Errorf("Expected system turn first, got %s", turns[0].Role)
	}
	last := turns[len(turns)-1]
	if want := "Que horas abre?\nContext: Abrimos às 9h\n\nFechamos às 18h"; last.Content != want {
		t.Errorf("Unexpected question turn %q", last.Content)
	}

	if len(history.messages) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history.messages))
	}
	if history.messages[0].Role != domain.RoleUser || history.messages[1].Role != domain.RoleAssistant {
		t.Error("Expected user then assistant turns in history")
	}
}

func TestAnswerUsecase_Generate_ContextualizesFollowUp(t *testing.T) {
	llm := &mockLLMRepo{replies: []string{"Qual o horário de sábado?", "Sábado abrimos às 10h"}}
	retriever := &mockRetriever{}
	history := &mockHistoryRepo{messages: []*domain.HistoryMessage{
		{SessionID: "chat-1", Role: domain.RoleUser, Content: "Que horas abre?", CreatedAt: time.Now()},
		{SessionID: "chat-1", Role: domain.RoleAssistant, Content: "Às 9h", CreatedAt: time.Now()},
	}}
	uc := NewAnswerUsecase(llm, retriever, history, DefaultAnswerConfig(), nil)

	answer, err := uc.Generate(context.Background(), "E no sábado?", "chat-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "Sábado abrimos às 10h" {
		t.Errorf("Unexpected answer %q", answer)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("Expected 2 model calls, got %d", len(llm.calls))
	}
	if retriever.queries[0] != "Qual o horário de sábado?" {
		t.Errorf("Expected rewritten query, got %q", retriever.queries[0])
	}
	// system + 2 history + question
	if len(llm.calls[1]) != 4 {
		t.Errorf("Expected 4 turns, got %d", len(llm.calls[1]))
	}
}

func TestAnswerUsecase_Generate_EmptyAnswerIsError(t *testing.T) {
	llm := &mockLLMRepo{replies: []string{"   "}}
	uc := NewAnswerUsecase(llm, nil, nil, DefaultAnswerConfig(), nil)

	_, err := uc.Generate(context.Background(), "Oi", "chat-1")
	if !errors.Is(err, domain.ErrGenerationFailed) || !errors.Is(err, domain.ErrEmptyAnswer) {
		t.Errorf("Expected empty answer error, got %v", err)
	}
}

func TestAnswerUsecase_Generate_RetrieverError(t *testing.T) {
	llm := &mockLLMRepo{replies: []string{"x"}}
	retriever := &mockRetriever{err: errors.New("qdrant down")}
	uc := NewAnswerUsecase(llm, retriever, nil, DefaultAnswerConfig(), nil)

	_, err := uc.Generate(context.Background(), "Oi", "chat-1")
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("Expected generation error, got %v", err)
	}
	if len(llm.calls) != 0 {
		t.Error("Expected no model call after retrieval failure")
	}
}

func TestAnswerUsecase_Generate_WithoutRetriever(t *testing.T) {
	llm := &mockLLMRepo{replies: []string{"Oi!"}}
	uc := NewAnswerUsecase(llm, nil, nil, DefaultAnswerConfig(), nil)

	if _, err := uc.Generate(context.Background(), "Oi", "chat-1"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	last := llm.calls[0][len(llm.calls[0])-1]
	if !strings.HasPrefix(last.Content, "Oi\nContext:") {
		t.Errorf("Unexpected question turn %q", last.Content)
	}
}

func TestAnswerUsecase_ClearHistory(t *testing.T) {
	history := &mockHistoryRepo{}
	uc := NewAnswerUsecase(&mockLLMRepo{}, nil, history, DefaultAnswerConfig(), nil)

	if err := uc.ClearHistory(context.Background(), "chat-1"); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	if len(history.cleared) != 1 || history.cleared[0] != "chat-1" {
		t.Errorf("Expected chat-1 to be cleared, got %v", history.cleared)
	}
}
