package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/aigen"
	aiMocks "github.com/evobug-com/story-server/internal/aigen/mocks"
	"github.com/evobug-com/story-server/internal/clients"
	clientMocks "github.com/evobug-com/story-server/internal/clients/mocks"
	"github.com/evobug-com/story-server/internal/engine"
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/session"
	"github.com/evobug-com/story-server/internal/story"
)

const testToken = "test-inter-service-token"

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

func demoStory() *models.StoryDefinition {
	return &models.StoryDefinition{
		ID:          "demo",
		Title:       "Demo Story",
		Marker:      "🎲",
		StartNodeID: "intro",
		Balancing:   models.Balancing{Category: "work", BaseXP: 100, Weight: 1},
		Nodes: map[models.NodeID]*models.Node{
			"intro": models.NewIntro("intro", models.StaticText("It begins."), "decision_1"),
			"decision_1": models.NewDecision("decision_1", models.StaticText("Pick one."), 0,
				&models.Choice{Label: "Go", Description: "Forward.", BaseReward: 10, RiskMultiplier: 1, NextNodeID: "outcome_1"},
				&models.Choice{Label: "Stay", BaseReward: 0, RiskMultiplier: 1, NextNodeID: "terminal_lose"}),
			"outcome_1": models.NewOutcome("outcome_1", models.StaticText("Rolling."), 70, "terminal_win", "terminal_lose"),
			"terminal_win": models.NewTerminal("terminal_win", models.StaticText("You win."),
				models.Coins(500), true, 1.5),
			"terminal_lose": models.NewTerminal("terminal_lose", models.StaticText("You lose."),
				models.Coins(-100), false, 0.75),
		},
	}
}

func newTestServer(t *testing.T, rng random.Source, economy clients.EconomyClient) *echo.Echo {
	t.Helper()
	catalog := story.NewCatalog()
	require.NoError(t, catalog.Register(demoStory()))
	store := session.NewMemoryStore(30*time.Minute, zap.NewNop())
	eng := engine.New(catalog, store, rng, zap.NewNop(), engine.DefaultConfig())

	h := NewStoryHandler(eng, catalog, store, economy, nil, rng, zap.NewNop(), testToken)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func newTestServerWithAI(t *testing.T, rng random.Source, economy clients.EconomyClient, client aigen.AIClient) *echo.Echo {
	t.Helper()
	catalog := story.NewCatalog()
	require.NoError(t, catalog.Register(demoStory()))
	store := session.NewMemoryStore(30*time.Minute, zap.NewNop())
	eng := engine.New(catalog, store, rng, zap.NewNop(), engine.DefaultConfig())
	aiGen := aigen.NewService(catalog, eng, client, nil, zap.NewNop(), aigen.DefaultConfig())

	h := NewStoryHandler(eng, catalog, store, economy, aiGen, rng, zap.NewNop(), testToken)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doRequest(e *echo.Echo, method, path, body string, withToken bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if withToken {
		req.Header.Set("X-Internal-Service-Token", testToken)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeStep(t *testing.T, rec *httptest.ResponseRecorder) StepResponse {
	t.Helper()
	var resp StepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestStartStory_RequiresToken(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartStory_OK(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1","userLevel":5}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeStep(t, rec)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "demo", resp.StoryID)
	assert.Equal(t, "Demo Story", resp.StoryTitle)
	assert.Contains(t, resp.Narrative, "It begins.")
	assert.False(t, resp.Done)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "choiceX", resp.Choices[0].Key)
	assert.Equal(t, "Go", resp.Choices[0].Label)
	assert.False(t, resp.ReplacedSession)
}

func TestStartStory_UnknownStory(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/stories/missing/start", `{"discordUserId":"u1"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStory_UnknownStoryKeepsPendingSession(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodPost, "/internal/stories/missing/start", `{"discordUserId":"u1"}`, true)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Неудачный старт не трогает прежнюю сессию.
	rec = doRequest(e, http.MethodGet, "/internal/users/u1/session", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, start.SessionID, resp.Session.SessionID.String())
}

func TestStartStory_MissingUserID(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartStory_ReplacesPendingSession(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	first := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeStep(t, rec)

	assert.True(t, second.ReplacedSession)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// Старая сессия мертва.
	rec = doRequest(e, http.MethodPost, "/internal/sessions/"+first.SessionID+"/choice", `{"choice":"choiceX"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyChoice_CompletesStoryAndGrantsReward(t *testing.T) {
	economy := new(clientMocks.EconomyClient)
	economy.On("GrantReward", mock.Anything, mock.MatchedBy(func(req clients.GrantRewardRequest) bool {
		return req.DiscordUserID == "u1" && req.Coins == 510 && req.XP == 150 && req.ActivityType == "story_completed"
	})).Return(nil).Once()

	// Бросок 50 <= 70: победная концовка.
	rng := &scriptedSource{values: []int{49}}
	e := newTestServer(t, rng, economy)

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodPost, "/internal/sessions/"+start.SessionID+"/choice", `{"choice":"choiceX"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeStep(t, rec)
	assert.True(t, resp.Done)
	require.NotNil(t, resp.Reward)
	assert.Equal(t, 510, resp.Reward.Coins)
	assert.Equal(t, 150, resp.Reward.XP)
	assert.True(t, resp.RewardGranted)
	economy.AssertExpectations(t)
}

func TestApplyChoice_RewardGrantFailure(t *testing.T) {
	economy := new(clientMocks.EconomyClient)
	economy.On("GrantReward", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	rng := &scriptedSource{values: []int{49}}
	e := newTestServer(t, rng, economy)

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodPost, "/internal/sessions/"+start.SessionID+"/choice", `{"choice":"choiceX"}`, true)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// Сессия уже удалена движком, поэтому подсчитанная награда обязана
	// уйти в ответе: иначе боту нечем повторить начисление.
	resp := decodeStep(t, rec)
	assert.True(t, resp.Done)
	require.NotNil(t, resp.Reward)
	assert.Equal(t, 510, resp.Reward.Coins)
	assert.Equal(t, 150, resp.Reward.XP)
	assert.False(t, resp.RewardGranted)
	assert.NotEmpty(t, resp.RewardError)
	economy.AssertExpectations(t)
}

func TestApplyChoice_InvalidKey(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodPost, "/internal/sessions/"+start.SessionID+"/choice", `{"choice":"choiceZ"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyChoice_BadSessionID(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/sessions/not-a-uuid/choice", `{"choice":"choiceX"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRandomStory_OK(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/stories/random/start", `{"discordUserId":"u1","weights":{"work":3}}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeStep(t, rec)
	assert.Equal(t, "demo", resp.StoryID)
}

func TestStartAIStory_DisabledReturns503(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodPost, "/internal/stories/ai/start", `{"discordUserId":"u1"}`, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartAIStory_FailedGenerationKeepsPendingSession(t *testing.T) {
	client := new(aiMocks.AIClient)
	client.On("GenerateLayer", mock.Anything, mock.Anything, mock.Anything).
		Return("", aigen.UsageInfo{}, assert.AnError).Once()
	e := newTestServerWithAI(t, random.NewSeeded(1), new(clientMocks.EconomyClient), client)

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodPost, "/internal/stories/ai/start", `{"discordUserId":"u1"}`, true)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// Провал генерации не трогает прежнюю сессию.
	rec = doRequest(e, http.MethodGet, "/internal/users/u1/session", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, start.SessionID, resp.Session.SessionID.String())
	client.AssertExpectations(t)
}

func TestGetUserSession(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodGet, "/internal/users/u1/session", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, start.SessionID, resp.Session.SessionID.String())
	assert.Equal(t, "Demo Story", resp.Title)
	assert.True(t, resp.CanResume)
	assert.Len(t, resp.Choices, 2)

	rec = doRequest(e, http.MethodGet, "/internal/users/stranger/session", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	start := decodeStep(t, doRequest(e, http.MethodPost, "/internal/stories/demo/start", `{"discordUserId":"u1"}`, true))

	rec := doRequest(e, http.MethodGet, "/internal/sessions/"+start.SessionID, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz_NoAuth(t *testing.T) {
	e := newTestServer(t, random.NewSeeded(1), new(clientMocks.EconomyClient))

	rec := doRequest(e, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
