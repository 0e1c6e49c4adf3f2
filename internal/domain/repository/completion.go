package repository

import (
	"context"
	"greenpt/internal/domain/entity"
)

// CompletionOptions — параметры одного обращения к completion API.
type CompletionOptions struct {
	Model     string
	MaxTokens int
	Tone      string
	History   []entity.ChatMessage
	System    string // override системного промпта; пустое — дефолтный
}

// CompletionClient интерфейс для обращения к удалённому completion API.
type CompletionClient interface {
	// Complete отправляет prompt и возвращает текст ответа модели.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	// ListModels возвращает доступные идентификаторы моделей.
	ListModels(ctx context.Context) ([]string, error)
}
