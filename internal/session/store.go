// Package session содержит хранилище активных прохождений историй.
// Сессии живут дольше, чем короткоживущие UI-токены чат-платформы:
// истечение кнопок у сообщения не означает истечение сессии, на этом
// строится путь возобновления.
package session

import (
	"context"

	"github.com/evobug-com/story-server/internal/models"
	"github.com/google/uuid"
)

// Store — keyed-хранилище сессий. «Сессии нет» (неизвестный или истекший
// id) — ожидаемый результат, а не ошибка: второй результат false, err nil.
type Store interface {
	// Create сохраняет новую сессию.
	Create(ctx context.Context, s *models.Session) error
	// Get возвращает сессию по id.
	Get(ctx context.Context, id uuid.UUID) (*models.Session, bool, error)
	// GetByUser возвращает незавершенную сессию пользователя; подразумевается
	// не более одной ожидающей сессии на пользователя.
	GetByUser(ctx context.Context, discordUserID string) (*models.Session, bool, error)
	// Save фиксирует мутации сессии после шага интерпретатора.
	Save(ctx context.Context, s *models.Session) error
	// Touch обновляет время последнего взаимодействия.
	Touch(ctx context.Context, id uuid.UUID) error
	// Remove удаляет сессию (терминальный узел или истечение).
	Remove(ctx context.Context, id uuid.UUID) error
}
