package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/engine"
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/session"
	"github.com/evobug-com/story-server/internal/story"
)

// Регистрация валидирует каждый граф: висячие ссылки, циклы и замыкание
// на терминальные узлы ловятся здесь, а не в продакшене.
func TestRegisterAll_AllStoriesValid(t *testing.T) {
	catalog := story.NewCatalog()
	require.NoError(t, RegisterAll(catalog, random.NewSeeded(1)))
	assert.Equal(t, len(All(random.NewSeeded(1))), catalog.Len())
}

func TestAll_UniqueIDsAndBalancing(t *testing.T) {
	seen := map[models.StoryID]bool{}
	for _, def := range All(random.NewSeeded(1)) {
		assert.False(t, seen[def.ID], "duplicate story id %q", def.ID)
		seen[def.ID] = true

		assert.NotEmpty(t, def.Title)
		assert.NotEmpty(t, def.Balancing.Category)
		assert.Greater(t, def.Balancing.BaseXP, 0)
		assert.Greater(t, def.Balancing.Weight, 0.0)
	}
}

// Каждая авторская история должна доигрываться до концовки при любой
// последовательности выборов первой кнопкой.
func TestEveryStory_PlayableToTerminal(t *testing.T) {
	rng := random.NewSeeded(99)
	catalog := story.NewCatalog()
	require.NoError(t, RegisterAll(catalog, rng))

	store := session.NewMemoryStore(time.Hour, zap.NewNop())
	eng := engine.New(catalog, store, rng, zap.NewNop(), engine.DefaultConfig())

	for _, id := range catalog.IDs() {
		step, err := eng.StartStory(context.Background(), id, models.SessionContext{DiscordUserID: "tester", UserLevel: 12})
		require.NoError(t, err, "story %q", id)
		require.NotEmpty(t, step.Narrative, "story %q", id)

		for i := 0; i < 10 && !step.Done; i++ {
			step, err = eng.ApplyChoice(context.Background(), step.Session.SessionID, models.ChoiceX)
			require.NoError(t, err, "story %q", id)
		}
		require.True(t, step.Done, "story %q must reach a terminal node", id)
		require.NotNil(t, step.Reward, "story %q", id)
		assert.NotZero(t, step.Reward.XP, "story %q", id)
	}
}
