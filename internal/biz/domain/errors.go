package domain

import "errors"

var (
	// ErrStoreUnavailable wraps failures of the durable buffer store
	ErrStoreUnavailable = errors.New("buffer store unavailable")

	// ErrGenerationFailed wraps failures of the answer generator
	ErrGenerationFailed = errors.New("answer generation failed")

	// ErrSendFailed wraps failures of the outbound gateway
	ErrSendFailed = errors.New("send failed")

	// ErrEmptyAnswer is returned when the model produced no text
	ErrEmptyAnswer = errors.New("empty answer")
)
