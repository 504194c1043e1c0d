package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/session"
	"github.com/evobug-com/story-server/internal/story"
)

// scriptedSource проигрывает заданную последовательность значений IntN.
type scriptedSource struct {
	values []int
	i      int
}

func (s *scriptedSource) IntN(n int) int {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v % n
}

func (s *scriptedSource) Float64() float64 { return 0 }

// rollValue переводит желаемый бросок [1..100] в значение IntN.
func rollValue(roll int) int { return roll - 1 }

const demoBaseReward = 10

func demoStory() *models.StoryDefinition {
	return &models.StoryDefinition{
		ID:          "demo",
		Title:       "Demo Story",
		StartNodeID: "intro",
		Balancing:   models.Balancing{Category: "work", BaseXP: 100, Weight: 1},
		Nodes: map[models.NodeID]*models.Node{
			"intro": models.NewIntro("intro", models.StaticText("It begins."), "decision_1"),
			"decision_1": models.NewDecision("decision_1", models.StaticText("Pick one."), 0,
				&models.Choice{Label: "Go", BaseReward: demoBaseReward, RiskMultiplier: 1.0, NextNodeID: "outcome_1"},
				&models.Choice{Label: "Stay", BaseReward: 0, RiskMultiplier: 1.0, NextNodeID: "terminal_lose"}),
			"outcome_1": models.NewOutcome("outcome_1", models.StaticText("The dice tumble."), 70, "terminal_win", "terminal_lose"),
			"terminal_win": models.NewTerminal("terminal_win", models.StaticText("You win."),
				models.Coins(500), true, 1.5),
			"terminal_lose": models.NewTerminal("terminal_lose", models.StaticText("You lose."),
				models.Coins(-100), false, 0.75),
		},
	}
}

func newTestEngine(t *testing.T, rng random.Source, defs ...*models.StoryDefinition) (*Engine, *session.MemoryStore) {
	t.Helper()
	catalog := story.NewCatalog()
	for _, def := range defs {
		require.NoError(t, catalog.Register(def))
	}
	store := session.NewMemoryStore(30*time.Minute, zap.NewNop())
	eng := New(catalog, store, rng, zap.NewNop(), DefaultConfig())
	return eng, store
}

func TestStartStory_UnknownStory(t *testing.T) {
	eng, _ := newTestEngine(t, random.NewSeeded(1), demoStory())

	_, err := eng.StartStory(context.Background(), "missing", models.SessionContext{DiscordUserID: "u1"})
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestStartStory_AdvancesToFirstDecision(t *testing.T) {
	eng, store := newTestEngine(t, random.NewSeeded(1), demoStory())

	step, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1", UserLevel: 3})
	require.NoError(t, err)

	assert.False(t, step.Done)
	assert.False(t, step.Pending)
	assert.Equal(t, models.NodeID("decision_1"), step.Session.CurrentNodeID)
	assert.Contains(t, step.Narrative, "It begins.")
	assert.Contains(t, step.Narrative, "Pick one.")

	_, ok, err := store.Get(context.Background(), step.Session.SessionID)
	require.NoError(t, err)
	assert.True(t, ok, "session must persist while the story is unfinished")
}

func TestApplyChoice_SuccessRoll(t *testing.T) {
	// Бросок 50 <= 70: успех, концовка terminal_win.
	rng := &scriptedSource{values: []int{rollValue(50)}}
	eng, store := newTestEngine(t, rng, demoStory())

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
	require.NoError(t, err)

	require.True(t, step.Done)
	require.NotNil(t, step.Reward)
	assert.Equal(t, demoBaseReward+500, step.Reward.Coins)
	assert.Equal(t, 150, step.Reward.XP) // 100 * 1.5
	assert.True(t, step.Reward.IsPositiveEnding)
	assert.Contains(t, step.Narrative, "You win.")

	_, ok, err := store.Get(context.Background(), start.Session.SessionID)
	require.NoError(t, err)
	assert.False(t, ok, "finished session must be removed")
}

func TestApplyChoice_FailRoll(t *testing.T) {
	// Бросок 90 > 70: провал, концовка terminal_lose.
	rng := &scriptedSource{values: []int{rollValue(90)}}
	eng, _ := newTestEngine(t, rng, demoStory())

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
	require.NoError(t, err)

	require.True(t, step.Done)
	require.NotNil(t, step.Reward)
	assert.Equal(t, demoBaseReward-100, step.Reward.Coins)
	assert.Equal(t, 75, step.Reward.XP) // 100 * 0.75
	assert.False(t, step.Reward.IsPositiveEnding)
	assert.Contains(t, step.Narrative, "You lose.")
}

func TestApplyChoice_BoundaryRoll(t *testing.T) {
	// Бросок ровно successChance считается успехом.
	rng := &scriptedSource{values: []int{rollValue(70)}}
	eng, _ := newTestEngine(t, rng, demoStory())

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
	require.NoError(t, err)
	assert.True(t, step.Reward.IsPositiveEnding)
}

func TestApplyChoice_UnknownSession(t *testing.T) {
	eng, _ := newTestEngine(t, random.NewSeeded(1), demoStory())

	_, err := eng.ApplyChoice(context.Background(), models.NewSession("demo", "intro", models.SessionContext{}).SessionID, models.ChoiceX)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestApplyChoice_InvalidKey(t *testing.T) {
	eng, _ := newTestEngine(t, random.NewSeeded(1), demoStory())

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	_, err = eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceKey("choiceZ"))
	assert.ErrorIs(t, err, models.ErrChoiceInvalid)
}

func TestApplyChoice_RiskScalesReward(t *testing.T) {
	def := demoStory()
	def.Nodes["decision_1"].ChoiceX.BaseReward = 60
	def.Nodes["decision_1"].ChoiceX.RiskMultiplier = 1.5
	rng := &scriptedSource{values: []int{rollValue(50)}}
	eng, _ := newTestEngine(t, rng, def)

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
	require.NoError(t, err)
	assert.Equal(t, 90+500, step.Reward.Coins) // round(60*1.5) + 500
}

func TestEntryCoinsAddedOnDecision(t *testing.T) {
	def := demoStory()
	def.Nodes["decision_1"].EntryCoins = 20
	eng, _ := newTestEngine(t, random.NewSeeded(1), def)

	step, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 20, step.Session.AccumulatedCoins)
}

func TestDeterminism_SameSeedSamePath(t *testing.T) {
	run := func(seed int64) *models.RewardSummary {
		eng, _ := newTestEngine(t, random.NewSeeded(seed), demoStory())
		start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
		require.NoError(t, err)
		step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
		require.NoError(t, err)
		return step.Reward
	}

	first := run(42)
	second := run(42)
	assert.Equal(t, first, second)
}

func TestComputedNarrative_ResolvedOncePerVisit(t *testing.T) {
	calls := 0
	def := demoStory()
	def.Nodes["decision_1"].Narrative = models.ComputedText(func(s *models.Session) string {
		calls++
		return "computed"
	})
	eng, _ := newTestEngine(t, random.NewSeeded(1), def)

	step, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	first := eng.ResolveNarrative(step.Session, def.Nodes["decision_1"])
	second := eng.ResolveNarrative(step.Session, def.Nodes["decision_1"])
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "computed narrative must be evaluated once per visit")
}

func TestComputedCoins_CachedAcrossRenders(t *testing.T) {
	calls := 0
	def := demoStory()
	def.Nodes["terminal_win"].CoinsChange = models.ComputedCoins(func() int {
		calls++
		return 400 + calls // меняется при каждом вызове: кэш обязан скрыть это
	})
	rng := &scriptedSource{values: []int{rollValue(50)}}
	eng, _ := newTestEngine(t, rng, def)

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, demoBaseReward+401, step.Reward.Coins)
}

func TestPendingNodeParksSession(t *testing.T) {
	def := demoStory()
	def.Nodes["outcome_1"].SuccessNodeID = "pending_layer"
	def.Nodes["pending_layer"] = models.NewPending("pending_layer", 1)
	rng := &scriptedSource{values: []int{rollValue(50)}}
	eng, store := newTestEngine(t, rng, def)

	start, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	step, err := eng.ApplyChoice(context.Background(), start.Session.SessionID, models.ChoiceX)
	require.NoError(t, err)

	assert.True(t, step.Pending)
	assert.False(t, step.Done)
	assert.Equal(t, models.NodeID("pending_layer"), step.Session.CurrentNodeID)

	parked, ok, err := store.Get(context.Background(), start.Session.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.NodeID("pending_layer"), parked.CurrentNodeID)
}

func TestCanResumeSession(t *testing.T) {
	eng, _ := newTestEngine(t, random.NewSeeded(1), demoStory())

	step, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)
	assert.True(t, eng.CanResumeSession(step.Session))

	step.Session.LastInteractionAt = time.Now().UTC().Add(-16 * time.Minute)
	assert.False(t, eng.CanResumeSession(step.Session))

	assert.False(t, eng.CanResumeSession(nil))
}

func TestGetStoryContext(t *testing.T) {
	eng, _ := newTestEngine(t, random.NewSeeded(1), demoStory())

	step, err := eng.StartStory(context.Background(), "demo", models.SessionContext{DiscordUserID: "u1"})
	require.NoError(t, err)

	sc, ok := eng.GetStoryContext(step.Session)
	require.True(t, ok)
	assert.Equal(t, models.StoryID("demo"), sc.Story.ID)
	assert.Equal(t, models.NodeDecision, sc.CurrentNode.Kind)

	step.Session.StoryID = "missing"
	_, ok = eng.GetStoryContext(step.Session)
	assert.False(t, ok)
}
