package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/models"
)

// PgStoryArchive — Postgres-реализация StoryArchive поверх pgxpool.
type PgStoryArchive struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ StoryArchive = (*PgStoryArchive)(nil)

// NewPgStoryArchive создает архив.
func NewPgStoryArchive(pool *pgxpool.Pool, logger *zap.Logger) *PgStoryArchive {
	return &PgStoryArchive{pool: pool, logger: logger.Named("PgStoryArchive")}
}

func (r *PgStoryArchive) Save(ctx context.Context, record *GeneratedStory) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	query := `
		INSERT INTO generated_stories (id, story_id, discord_user_id, title, definition, prompt_tokens, completion_tokens, estimated_cost_usd, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`
	_, err := r.pool.Exec(ctx, query,
		record.ID, record.StoryID, record.DiscordUserID, record.Title, record.Definition,
		record.PromptTokens, record.CompletionTokens, record.EstimatedCostUSD)
	if err != nil {
		r.logger.Error("Failed to insert generated story", zap.String("storyID", record.StoryID), zap.Error(err))
		return fmt.Errorf("failed to insert generated story: %w", err)
	}
	return nil
}

func (r *PgStoryArchive) AppendLayer(ctx context.Context, storyID string, definition json.RawMessage, promptTokens, completionTokens int, costUSD float64) error {
	query := `
		UPDATE generated_stories
		SET definition = $2,
		    prompt_tokens = prompt_tokens + $3,
		    completion_tokens = completion_tokens + $4,
		    estimated_cost_usd = estimated_cost_usd + $5,
		    updated_at = NOW()
		WHERE story_id = $1`
	tag, err := r.pool.Exec(ctx, query, storyID, definition, promptTokens, completionTokens, costUSD)
	if err != nil {
		r.logger.Error("Failed to update generated story", zap.String("storyID", storyID), zap.Error(err))
		return fmt.Errorf("failed to update generated story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: generated story %q", models.ErrStoryNotFound, storyID)
	}
	return nil
}

func (r *PgStoryArchive) GetByStoryID(ctx context.Context, storyID string) (*GeneratedStory, error) {
	query := `
		SELECT id, story_id, discord_user_id, title, definition, prompt_tokens, completion_tokens, estimated_cost_usd, created_at, updated_at
		FROM generated_stories
		WHERE story_id = $1`
	record := &GeneratedStory{}
	err := r.pool.QueryRow(ctx, query, storyID).Scan(
		&record.ID, &record.StoryID, &record.DiscordUserID, &record.Title, &record.Definition,
		&record.PromptTokens, &record.CompletionTokens, &record.EstimatedCostUSD,
		&record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: generated story %q", models.ErrStoryNotFound, storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query generated story: %w", err)
	}
	return record, nil
}

func (r *PgStoryArchive) ListRecent(ctx context.Context, limit int) ([]*GeneratedStory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT id, story_id, discord_user_id, title, definition, prompt_tokens, completion_tokens, estimated_cost_usd, created_at, updated_at
		FROM generated_stories
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generated stories: %w", err)
	}
	defer rows.Close()

	var records []*GeneratedStory
	for rows.Next() {
		record := &GeneratedStory{}
		if err := rows.Scan(
			&record.ID, &record.StoryID, &record.DiscordUserID, &record.Title, &record.Definition,
			&record.PromptTokens, &record.CompletionTokens, &record.EstimatedCostUSD,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generated story: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generated stories: %w", err)
	}
	return records, nil
}
