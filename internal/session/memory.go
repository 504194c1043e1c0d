package session

import (
	"context"
	"sync"
	"time"

	"github.com/evobug-com/story-server/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryStore — процессное хранилище сессий с TTL и фоновой уборкой.
// Подходит для одиночного инстанса; для нескольких инстансов используется
// Redis-бэкенд.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
	byUser   map[string]uuid.UUID

	ttl    time.Duration
	logger *zap.Logger

	nowFn    func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}

	// onEvict вызывается для каждой сессии, удаленной по истечении TTL.
	onEvict func(*models.Session)
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создает хранилище с заданным TTL сессии.
func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.Session),
		byUser:   make(map[string]uuid.UUID),
		ttl:      ttl,
		logger:   logger.Named("MemorySessionStore"),
		nowFn:    time.Now,
		stopCh:   make(chan struct{}),
	}
}

// StartJanitor запускает фоновую горутину, удаляющую истекшие сессии.
func (m *MemoryStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := m.sweep()
				if removed > 0 {
					m.logger.Debug("Expired sessions swept", zap.Int("count", removed))
				}
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop останавливает уборщик.
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// SetOnEvict задает хук на удаление истекших сессий. Через него генератор
// узнает, что персональная AI-история осталась без сессии. Вызывать до
// StartJanitor.
func (m *MemoryStore) SetOnEvict(fn func(*models.Session)) {
	m.onEvict = fn
}

func (m *MemoryStore) expired(s *models.Session, now time.Time) bool {
	return now.Sub(s.LastInteractionAt) > m.ttl
}

func (m *MemoryStore) sweep() int {
	now := m.nowFn()
	m.mu.Lock()
	var evicted []*models.Session
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			if m.byUser[s.DiscordUserID] == id {
				delete(m.byUser, s.DiscordUserID)
			}
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()
	// Хук зовется вне блокировки: он трогает чужие структуры.
	if m.onEvict != nil {
		for _, s := range evicted {
			m.onEvict(s)
		}
	}
	return len(evicted)
}

func (m *MemoryStore) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	m.byUser[s.DiscordUserID] = s.SessionID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Session, bool, error) {
	now := m.nowFn()
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.expired(s, now) {
		// Ленивая уборка: истекшая сессия неотличима от отсутствующей.
		_ = m.Remove(context.Background(), id)
		if m.onEvict != nil {
			m.onEvict(s)
		}
		return nil, false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) GetByUser(ctx context.Context, discordUserID string) (*models.Session, bool, error) {
	m.mu.RLock()
	id, ok := m.byUser[discordUserID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return m.Get(ctx, id)
}

func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	m.byUser[s.DiscordUserID] = s.SessionID
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id uuid.UUID) error {
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Touch(now)
	}
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	if m.byUser[s.DiscordUserID] == id {
		delete(m.byUser, s.DiscordUserID)
	}
	return nil
}
