package models

import (
	"time"

	"github.com/google/uuid"
)

// Session — состояние одного прохождения истории. Создается движком при
// старте, мутируется на каждом шаге и удаляется из хранилища при достижении
// терминального узла или по истечении окна возобновления.
//
// JSON-теги нужны Redis-бэкенду хранилища сессий. Кеш вычисленных значений
// сериализуется вместе с сессией, чтобы повторный рендер после рестарта
// не «перебрасывал» встроенную случайность.
type Session struct {
	SessionID         uuid.UUID `json:"sessionId"`
	StoryID           StoryID   `json:"storyId"`
	CurrentNodeID     NodeID    `json:"currentNodeId"`
	AccumulatedCoins  int       `json:"accumulatedCoins"`
	DiscordUserID     string    `json:"discordUserId"`
	DBUserID          uint64    `json:"dbUserId"`
	MessageID         string    `json:"messageId,omitempty"`
	ChannelID         string    `json:"channelId,omitempty"`
	GuildID           string    `json:"guildId,omitempty"`
	UserLevel         int       `json:"userLevel"`
	CreatedAt         time.Time `json:"createdAt"`
	LastInteractionAt time.Time `json:"lastInteractionAt"`

	// ResolvedText — кеш вычисленных повествований по id узла.
	ResolvedText map[NodeID]string `json:"resolvedText,omitempty"`
	// ResolvedCoins — кеш вычисленных денежных значений по id узла.
	ResolvedCoins map[NodeID]int `json:"resolvedCoins,omitempty"`
}

// SessionContext — контекст инициирующего взаимодействия, из которого
// создается сессия.
type SessionContext struct {
	DiscordUserID string
	DBUserID      uint64
	MessageID     string
	ChannelID     string
	GuildID       string
	UserLevel     int
}

// NewSession создает сессию, припаркованную на стартовом узле истории.
func NewSession(storyID StoryID, startNodeID NodeID, sc SessionContext) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:         uuid.New(),
		StoryID:           storyID,
		CurrentNodeID:     startNodeID,
		DiscordUserID:     sc.DiscordUserID,
		DBUserID:          sc.DBUserID,
		MessageID:         sc.MessageID,
		ChannelID:         sc.ChannelID,
		GuildID:           sc.GuildID,
		UserLevel:         sc.UserLevel,
		CreatedAt:         now,
		LastInteractionAt: now,
	}
}

// Touch обновляет время последнего взаимодействия.
func (s *Session) Touch(now time.Time) {
	s.LastInteractionAt = now
}

// CacheText запоминает вычисленное повествование узла.
func (s *Session) CacheText(id NodeID, text string) {
	if s.ResolvedText == nil {
		s.ResolvedText = make(map[NodeID]string)
	}
	s.ResolvedText[id] = text
}

// CachedText возвращает закешированное повествование узла.
func (s *Session) CachedText(id NodeID) (string, bool) {
	text, ok := s.ResolvedText[id]
	return text, ok
}

// CacheCoins запоминает вычисленное денежное значение узла.
func (s *Session) CacheCoins(id NodeID, amount int) {
	if s.ResolvedCoins == nil {
		s.ResolvedCoins = make(map[NodeID]int)
	}
	s.ResolvedCoins[id] = amount
}

// CachedCoins возвращает закешированное денежное значение узла.
func (s *Session) CachedCoins(id NodeID) (int, bool) {
	amount, ok := s.ResolvedCoins[id]
	return amount, ok
}
