// Package repository содержит архив сгенерированных историй: каждая
// AI-история сохраняется в Postgres для аудита стоимости и возможного
// повторного использования контента. Игровой цикл от архива не зависит.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GeneratedStory — архивная запись AI-истории.
type GeneratedStory struct {
	ID               uuid.UUID       `json:"id"`
	StoryID          string          `json:"storyId"`
	DiscordUserID    string          `json:"discordUserId"`
	Title            string          `json:"title"`
	Definition       json.RawMessage `json:"definition"`
	PromptTokens     int             `json:"promptTokens"`
	CompletionTokens int             `json:"completionTokens"`
	EstimatedCostUSD float64         `json:"estimatedCostUsd"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// StoryArchive — хранилище архивных записей.
type StoryArchive interface {
	// Save сохраняет новую запись (первый слой истории).
	Save(ctx context.Context, record *GeneratedStory) error
	// AppendLayer обновляет определение после материализации слоя и
	// добавляет usage слоя к накопленным счетчикам.
	AppendLayer(ctx context.Context, storyID string, definition json.RawMessage, promptTokens, completionTokens int, costUSD float64) error
	// GetByStoryID возвращает запись по игровому id истории.
	GetByStoryID(ctx context.Context, storyID string) (*GeneratedStory, error)
	// ListRecent возвращает последние записи, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]*GeneratedStory, error)
}
