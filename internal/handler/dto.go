package handler

import (
	"github.com/evobug-com/story-server/internal/models"
)

// StartStoryRequest — запрос бота на запуск истории для пользователя.
type StartStoryRequest struct {
	DiscordUserID string `json:"discordUserId" validate:"required"`
	DBUserID      uint64 `json:"dbUserId"`
	UserLevel     int    `json:"userLevel" validate:"gte=0"`
	MessageID     string `json:"messageId"`
	ChannelID     string `json:"channelId"`
	GuildID       string `json:"guildId"`
	// Weights — таблица весов категорий игрока для взвешенного выбора.
	// Используется только маршрутом random/start; пустая = равные веса.
	Weights map[string]float64 `json:"weights,omitempty"`
	// Theme — пожелание к теме. Используется только маршрутом ai/start.
	Theme string `json:"theme,omitempty" validate:"max=300"`
}

// ChoiceRequest — выбор игрока в узле решения.
type ChoiceRequest struct {
	Choice string `json:"choice" validate:"required,oneof=choiceX choiceY"`
}

// ChoiceView — представление варианта выбора для презентационного слоя.
type ChoiceView struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// StepResponse — результат шага истории: все, что нужно боту, чтобы
// отрендерить сообщение и кнопки.
type StepResponse struct {
	SessionID        string                `json:"sessionId,omitempty"`
	StoryID          string                `json:"storyId"`
	StoryTitle       string                `json:"storyTitle"`
	Marker           string                `json:"marker,omitempty"`
	Narrative        string                `json:"narrative"`
	Done             bool                  `json:"done"`
	Pending          bool                  `json:"pending,omitempty"`
	AccumulatedCoins int                   `json:"accumulatedCoins"`
	Choices          []ChoiceView          `json:"choices,omitempty"`
	Reward           *models.RewardSummary `json:"reward,omitempty"`
	// RewardGranted — экономика подтвердила начисление. При ее отказе ответ
	// приходит с кодом 502, rewardGranted=false и заполненным Reward: сессия
	// уже удалена, и повтор начисления остается за вызывающей стороной.
	RewardGranted   bool   `json:"rewardGranted,omitempty"`
	RewardError     string `json:"rewardError,omitempty"`
	ReplacedSession bool   `json:"replacedSession,omitempty"`
}

// SessionResponse — снимок сессии для GET-маршрутов.
type SessionResponse struct {
	Session   *models.Session `json:"session"`
	StoryID   string          `json:"storyId"`
	Title     string          `json:"storyTitle"`
	Marker    string          `json:"marker,omitempty"`
	CanResume bool            `json:"canResume"`
	Choices   []ChoiceView    `json:"choices,omitempty"`
}

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}
