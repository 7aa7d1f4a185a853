package domain

// Document is a knowledge base chunk returned by retrieval
type Document struct {
	ID      string
	Content string
	Score   float32
	Source  string
}
