package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrative_StaticAndComputed(t *testing.T) {
	static := StaticText("hello")
	assert.False(t, static.IsComputed())
	assert.Equal(t, "hello", static.Render(nil))

	computed := ComputedText(func(s *Session) string {
		if s == nil {
			return "nobody"
		}
		return s.DiscordUserID
	})
	assert.True(t, computed.IsComputed())
	assert.Equal(t, "nobody", computed.Render(nil))

	s := NewSession("demo", "intro", SessionContext{DiscordUserID: "u1"})
	assert.Equal(t, "u1", computed.Render(s))
}

func TestCoinsValue_StaticAndComputed(t *testing.T) {
	static := Coins(50)
	assert.False(t, static.IsComputed())
	assert.Equal(t, 50, static.Resolve())

	n := 0
	computed := ComputedCoins(func() int {
		n++
		return n * 10
	})
	assert.True(t, computed.IsComputed())
	assert.Equal(t, 10, computed.Resolve())
	assert.Equal(t, 20, computed.Resolve(), "raw Resolve does not cache, the engine does")
}

func TestSession_ResolvedValueCaches(t *testing.T) {
	s := NewSession("demo", "intro", SessionContext{DiscordUserID: "u1"})

	_, ok := s.CachedText("n1")
	assert.False(t, ok)

	s.CacheText("n1", "once")
	text, ok := s.CachedText("n1")
	require.True(t, ok)
	assert.Equal(t, "once", text)

	s.CacheCoins("t1", 420)
	coins, ok := s.CachedCoins("t1")
	require.True(t, ok)
	assert.Equal(t, 420, coins)
}

// Кэш вычисленных значений обязан переживать сериализацию: Redis-бэкенд
// хранит сессию как JSON.
func TestSession_CacheSurvivesJSONRoundTrip(t *testing.T) {
	s := NewSession("demo", "intro", SessionContext{DiscordUserID: "u1", UserLevel: 7})
	s.AccumulatedCoins = 30
	s.CacheText("n1", "rolled text")
	s.CacheCoins("t1", 500)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var restored Session
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, s.SessionID, restored.SessionID)
	assert.Equal(t, 30, restored.AccumulatedCoins)
	text, ok := restored.CachedText("n1")
	require.True(t, ok)
	assert.Equal(t, "rolled text", text)
	coins, ok := restored.CachedCoins("t1")
	require.True(t, ok)
	assert.Equal(t, 500, coins)
}

func TestNode_ChoiceLookup(t *testing.T) {
	d := NewDecision("d1", StaticText("pick"), 0,
		&Choice{Label: "x", NextNodeID: "a"},
		&Choice{Label: "y", NextNodeID: "b"})

	require.NotNil(t, d.Choice(ChoiceX))
	assert.Equal(t, "x", d.Choice(ChoiceX).Label)
	require.NotNil(t, d.Choice(ChoiceY))
	assert.Equal(t, "y", d.Choice(ChoiceY).Label)
	assert.Nil(t, d.Choice(ChoiceKey("choiceZ")))
}

func TestValidChoiceKey(t *testing.T) {
	assert.True(t, ValidChoiceKey(ChoiceX))
	assert.True(t, ValidChoiceKey(ChoiceY))
	assert.False(t, ValidChoiceKey(ChoiceKey("choiceZ")))
}
