package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evobug-com/story-server/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix = "story:session:"
	userKeyPrefix    = "story:session:user:"
)

// RedisStore — Redis-бэкенд хранилища сессий. TTL ключей совпадает с TTL
// сессии, так что истечение реализует сам Redis; отдельный уборщик не нужен.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore создает хранилище поверх готового клиента Redis.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionStore"),
	}
}

func sessionKey(id uuid.UUID) string  { return sessionKeyPrefix + id.String() }
func userKey(discordID string) string { return userKeyPrefix + discordID }

func (r *RedisStore) write(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.SessionID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(s.SessionID), data, r.ttl)
	pipe.Set(ctx, userKey(s.DiscordUserID), s.SessionID.String(), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session %s in redis: %w", s.SessionID, err)
	}
	return nil
}

func (r *RedisStore) Create(ctx context.Context, s *models.Session) error {
	return r.write(ctx, s)
}

func (r *RedisStore) Save(ctx context.Context, s *models.Session) error {
	return r.write(ctx, s)
}

func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.Session, bool, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session %s from redis: %w", id, err)
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Битая запись неотличима от отсутствующей для вызывающего,
		// но логируем: это повод посмотреть на данные.
		r.logger.Error("Failed to unmarshal session from redis", zap.String("sessionID", id.String()), zap.Error(err))
		return nil, false, nil
	}
	return &s, true, nil
}

func (r *RedisStore) GetByUser(ctx context.Context, discordUserID string) (*models.Session, bool, error) {
	raw, err := r.client.Get(ctx, userKey(discordUserID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user session index from redis: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		r.logger.Error("Corrupt user session index in redis", zap.String("discordUserID", discordUserID), zap.Error(err))
		return nil, false, nil
	}
	return r.Get(ctx, id)
}

func (r *RedisStore) Touch(ctx context.Context, id uuid.UUID) error {
	s, ok, err := r.Get(ctx, id)
	if err != nil || !ok {
		return err
	}
	s.Touch(time.Now().UTC())
	return r.write(ctx, s)
}

func (r *RedisStore) Remove(ctx context.Context, id uuid.UUID) error {
	s, ok, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	keys := []string{sessionKey(id)}
	if ok {
		// Индекс пользователя мог быть уже перезаписан новой сессией:
		// удаляем его, только если он все еще указывает на эту.
		current, err := r.client.Get(ctx, userKey(s.DiscordUserID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read user index for session %s: %w", id, err)
		}
		if err == nil && current == id.String() {
			keys = append(keys, userKey(s.DiscordUserID))
		}
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove session %s from redis: %w", id, err)
	}
	return nil
}
