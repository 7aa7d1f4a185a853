package biz

import (
	"github.com/evobot/wa-rag-bridge/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Buffer *usecase.BufferUsecase
	Answer *usecase.AnswerUsecase
}
