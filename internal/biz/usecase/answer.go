package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
)

// AnswerConfig contains answer generation configuration
type AnswerConfig struct {
	SystemPrompt        string
	ContextualizePrompt string
	Temperature         float32
	TopK                int
	History             domain.HistoryConfig
}

// DefaultAnswerConfig returns default answer configuration
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		SystemPrompt:        DefaultSystemPrompt,
		ContextualizePrompt: DefaultContextualizePrompt,
		Temperature:         0.7,
		TopK:                4,
		History: domain.HistoryConfig{
			MaxMessages: 10,
			TTL:         2 * time.Hour,
		},
	}
}

// DefaultSystemPrompt is used when no prompt is configured
const DefaultSystemPrompt = `Você é um assistente prestativo que responde dúvidas de clientes pelo WhatsApp.
Use o contexto fornecido para responder. Se não souber a resposta, diga que não sabe.
Responda de forma curta e cordial.`

// DefaultContextualizePrompt rewrites a follow-up into a standalone question
const DefaultContextualizePrompt = `Dado o histórico da conversa e a última pergunta do usuário,
que pode fazer referência ao histórico, formule uma pergunta independente que possa ser
entendida sem o histórico. NÃO responda a pergunta, apenas reformule se necessário;
caso contrário, retorne-a como está.`

// AnswerUsecase answers a user message with retrieval-augmented generation
type AnswerUsecase struct {
	llm       repo.LLMRepo
	retriever repo.RetrieverRepo // optional
	history   repo.HistoryRepo   // optional
	config    AnswerConfig
	logger    *slog.Logger
}

// NewAnswerUsecase creates a new answer usecase. retriever and history may be nil.
func NewAnswerUsecase(llm repo.LLMRepo, retriever repo.RetrieverRepo, history repo.HistoryRepo, config AnswerConfig, logger *slog.Logger) *AnswerUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUsecase{
		llm:       llm,
		retriever: retriever,
		history:   history,
		config:    config,
		logger:    logger.With("component", "answer"),
	}
}

// Generate answers input for the given session
func (uc *AnswerUsecase) Generate(ctx context.Context, input, sessionID string) (string, error) {
	past := uc.loadHistory(ctx, sessionID)

	knowledge, err := uc.retrieveContext(ctx, input, past)
	if err != nil {
		return "", err
	}

	turns := make([]domain.ChatTurn, 0, len(past)+2)
	turns = append(turns, domain.ChatTurn{Role: domain.RoleSystem, Content: uc.config.SystemPrompt})
	turns = append(turns, past...)
	turns = append(turns, domain.ChatTurn{Role: domain.RoleUser, Content: buildQuestion(input, knowledge)})

	answer, err := uc.llm.Complete(ctx, turns, uc.config.Temperature)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrEmptyAnswer)
	}

	uc.saveTurns(ctx, sessionID, input, answer)
	return answer, nil
}

// ClearHistory forgets the conversation of a session
func (uc *AnswerUsecase) ClearHistory(ctx context.Context, sessionID string) error {
	if uc.history == nil {
		return nil
	}
	return uc.history.Clear(ctx, sessionID)
}

// CleanupHistory removes history older than the configured window
func (uc *AnswerUsecase) CleanupHistory(ctx context.Context) (int64, error) {
	if uc.history == nil || uc.config.History.TTL <= 0 {
		return 0, nil
	}
	return uc.history.CleanupStale(ctx, uc.config.History.Since(time.Now()))
}

func (uc *AnswerUsecase) loadHistory(ctx context.Context, sessionID string) []domain.ChatTurn {
	if uc.history == nil || uc.config.History.MaxMessages <= 0 {
		return nil
	}
	msgs, err := uc.history.Recent(ctx, sessionID, uc.config.History.MaxMessages, uc.config.History.Since(time.Now()))
	if err != nil {
		uc.logger.Warn("failed to load history", "session_id", sessionID, "error", err)
		return nil
	}
	turns := make([]domain.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, m.Turn())
	}
	return turns
}

func (uc *AnswerUsecase) saveTurns(ctx context.Context, sessionID, input, answer string) {
	if uc.history == nil {
		return
	}
	now := time.Now()
	for _, m := range []*domain.HistoryMessage{
		{SessionID: sessionID, Role: domain.RoleUser, Content: input, CreatedAt: now},
		{SessionID: sessionID, Role: domain.RoleAssistant, Content: answer, CreatedAt: now},
	} {
		if err := uc.history.Append(ctx, m); err != nil {
			uc.logger.Warn("failed to save history", "session_id", sessionID, "error", err)
			return
		}
	}
}

// retrieveContext looks up documents for input. With prior turns the query
// is first rewritten into a standalone question.
func (uc *AnswerUsecase) retrieveContext(ctx context.Context, input string, past []domain.ChatTurn) (string, error) {
	if uc.retriever == nil || uc.config.TopK <= 0 {
		return "", nil
	}

	query := input
	if len(past) > 0 {
		turns := make([]domain.ChatTurn, 0, len(past)+2)
		turns = append(turns, domain.ChatTurn{Role: domain.RoleSystem, Content: uc.config.ContextualizePrompt})
		turns = append(turns, past...)
		turns = append(turns, domain.ChatTurn{Role: domain.RoleUser, Content: input})

		rewritten, err := uc.llm.Complete(ctx, turns, 0)
		if err != nil {
			return "", fmt.Errorf("%w: contextualize: %w", domain.ErrGenerationFailed, err)
		}
		if rewritten = strings.TrimSpace(rewritten); rewritten != "" {
			query = rewritten
		}
	}

	docs, err := uc.retriever.Retrieve(ctx, query, uc.config.TopK)
	if err != nil {
		return "", fmt.Errorf("%w: retrieve: %w", domain.ErrGenerationFailed, err)
	}
	uc.logger.Debug("retrieved documents", "count", len(docs), "query", query)
	return formatDocuments(docs), nil
}

func formatDocuments(docs []domain.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if c := strings.TrimSpace(d.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildQuestion renders the user turn of the answer prompt
func buildQuestion(input, knowledge string) string {
	return input + "\nContext: " + knowledge
}
