package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/aigen"
	"github.com/evobug-com/story-server/internal/clients"
	"github.com/evobug-com/story-server/internal/engine"
	"github.com/evobug-com/story-server/internal/middleware"
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/selector"
	"github.com/evobug-com/story-server/internal/session"
	"github.com/evobug-com/story-server/internal/story"
)

// StoryHandler обрабатывает HTTP запросы бота к движку историй.
type StoryHandler struct {
	engine   *engine.Engine
	catalog  *story.Catalog
	sessions session.Store
	economy  clients.EconomyClient
	aiGen    *aigen.Service // nil, если AI-генерация выключена
	rng      random.Source
	validate *validator.Validate
	logger   *zap.Logger
	token    string
}

// NewStoryHandler создает новый StoryHandler. aiGen может быть nil.
func NewStoryHandler(
	eng *engine.Engine,
	catalog *story.Catalog,
	sessions session.Store,
	economy clients.EconomyClient,
	aiGen *aigen.Service,
	rng random.Source,
	logger *zap.Logger,
	interServiceToken string,
) *StoryHandler {
	return &StoryHandler{
		engine:   eng,
		catalog:  catalog,
		sessions: sessions,
		economy:  economy,
		aiGen:    aiGen,
		rng:      rng,
		validate: validator.New(),
		logger:   logger.Named("StoryHandler"),
		token:    interServiceToken,
	}
}

// RegisterRoutes регистрирует маршруты движка историй.
func (h *StoryHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	internalGroup := e.Group("/internal", middleware.ServiceTokenAuth(h.token, h.logger))
	{
		internalGroup.POST("/stories/:id/start", h.startStory)
		internalGroup.POST("/stories/random/start", h.startRandomStory)
		internalGroup.POST("/stories/ai/start", h.startAIStory)
		internalGroup.POST("/sessions/:id/choice", h.applyChoice)
		internalGroup.GET("/sessions/:id", h.getSession)
		internalGroup.GET("/users/:uid/session", h.getUserSession)
	}
}

// --- Вспомогательные функции --- //

func (h *StoryHandler) bindStartRequest(c echo.Context) (*StartStoryRequest, error) {
	var req StartStoryRequest
	if err := c.Bind(&req); err != nil {
		return nil, c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, c.JSON(http.StatusBadRequest, APIError{Message: "Validation failed: " + err.Error()})
	}
	return &req, nil
}

func sessionContext(req *StartStoryRequest) models.SessionContext {
	return models.SessionContext{
		DiscordUserID: req.DiscordUserID,
		DBUserID:      req.DBUserID,
		MessageID:     req.MessageID,
		ChannelID:     req.ChannelID,
		GuildID:       req.GuildID,
		UserLevel:     req.UserLevel,
	}
}

// retireReplacedSession удаляет прежнюю сессию пользователя. Политика явная:
// запуск новой истории перечеркивает старую, и клиент узнает об этом через
// replacedSession в ответе. Вызывается только после того, как новый старт
// удался: неудачный старт не должен стоить игроку старой сессии. Свежий старт
// уже перезаписал индекс пользователя, так что позднее удаление безопасно,
// а его ошибка не роняет успешный ответ.
func (h *StoryHandler) retireReplacedSession(c echo.Context, old *models.Session) {
	h.logger.Info("Replacing pending session on new story start",
		zap.String("discordUserID", old.DiscordUserID),
		zap.String("oldSessionID", old.SessionID.String()),
		zap.String("oldStoryID", string(old.StoryID)))
	if err := h.sessions.Remove(c.Request().Context(), old.SessionID); err != nil {
		h.logger.Error("Failed to remove replaced session",
			zap.String("sessionID", old.SessionID.String()), zap.Error(err))
	}
	if h.aiGen != nil {
		h.aiGen.DiscardStory(old.StoryID)
	}
}

// buildStepResponse собирает ответ шага: нарратив, варианты выбора текущего
// узла и награду, если история завершена.
func (h *StoryHandler) buildStepResponse(step *models.StepResult, replaced bool) StepResponse {
	resp := StepResponse{
		Narrative:       step.Narrative,
		Done:            step.Done,
		Pending:         step.Pending,
		Reward:          step.Reward,
		ReplacedSession: replaced,
	}
	if step.Session != nil {
		resp.SessionID = step.Session.SessionID.String()
		resp.StoryID = string(step.Session.StoryID)
		resp.AccumulatedCoins = step.Session.AccumulatedCoins
		if sc, ok := h.engine.GetStoryContext(step.Session); ok {
			resp.StoryTitle = sc.Story.Title
			resp.Marker = sc.Story.Marker
			if !step.Done && !step.Pending {
				resp.Choices = choiceViews(sc.CurrentNode)
			}
		}
	}
	if step.Done && step.Reward != nil {
		resp.StoryID = string(step.Reward.StoryID)
		resp.StoryTitle = step.Reward.StoryTitle
	}
	return resp
}

func choiceViews(node *models.Node) []ChoiceView {
	if node == nil || node.Kind != models.NodeDecision {
		return nil
	}
	views := make([]ChoiceView, 0, 2)
	for _, key := range []models.ChoiceKey{models.ChoiceX, models.ChoiceY} {
		if ch := node.Choice(key); ch != nil {
			views = append(views, ChoiceView{
				Key:         string(key),
				Label:       ch.Label,
				Description: ch.Description,
			})
		}
	}
	return views
}

// finishStep начисляет награду завершенной истории и сериализует шаг. Отказ
// экономики не теряет подсчитанные цифры: сессия к этому моменту уже удалена
// движком, поэтому ответ уходит с кодом 502, rewardGranted=false и полным
// Reward, чтобы вызывающая сторона могла повторить начисление сама.
func (h *StoryHandler) finishStep(c echo.Context, okStatus int, step *models.StepResult, replaced bool) error {
	resp := h.buildStepResponse(step, replaced)
	if step.Done {
		if err := h.grantReward(c, step.Session, step.Reward); err != nil {
			h.logger.Error("Failed to grant story reward", zap.Error(err))
			resp.RewardError = "Reward grant failed"
			return c.JSON(http.StatusBadGateway, resp)
		}
		resp.RewardGranted = true
	}
	return c.JSON(okStatus, resp)
}

// grantReward начисляет награду завершенной истории. Вызывается ровно один
// раз и только после терминального узла.
func (h *StoryHandler) grantReward(c echo.Context, s *models.Session, reward *models.RewardSummary) error {
	return h.economy.GrantReward(c.Request().Context(), clients.GrantRewardRequest{
		DiscordUserID: s.DiscordUserID,
		DBUserID:      s.DBUserID,
		Coins:         reward.Coins,
		XP:            reward.XP,
		ActivityType:  "story_completed",
		Notes:         "story: " + string(reward.StoryID),
	})
}

func (h *StoryHandler) handleEngineError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrStoryNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Story not found"}
	case errors.Is(err, models.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Session not found"}
	case errors.Is(err, models.ErrSessionExpired):
		statusCode = http.StatusGone
		apiErr = APIError{Message: "Session expired"}
	case errors.Is(err, models.ErrChoiceInvalid):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrNodePending):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: "Story layer is not generated yet"}
	case errors.Is(err, models.ErrGenerationFailed):
		statusCode = http.StatusBadGateway
		apiErr = APIError{Message: "Story generation failed"}
	case errors.Is(err, models.ErrMalformedNode):
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Story graph is malformed"}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("Engine request failed", zap.Error(err))
	}
	return c.JSON(statusCode, apiErr)
}

// --- Обработчики HTTP --- //

// startStory запускает конкретную историю по id.
func (h *StoryHandler) startStory(c echo.Context) error {
	req, bindErr := h.bindStartRequest(c)
	if req == nil {
		return bindErr
	}
	return h.startByID(c, models.StoryID(c.Param("id")), req)
}

// startRandomStory выбирает историю взвешенной рулеткой по таблице весов
// категорий игрока и запускает ее. AI-истории персональные, в рулетку
// не попадают.
func (h *StoryHandler) startRandomStory(c echo.Context) error {
	req, bindErr := h.bindStartRequest(c)
	if req == nil {
		return bindErr
	}

	authored := make([]*models.StoryDefinition, 0)
	for _, def := range h.catalog.Definitions() {
		if def.Balancing.Category == "ai" {
			continue
		}
		authored = append(authored, def)
	}
	def, ok := selector.SelectStory(h.rng, authored, req.Weights)
	if !ok {
		return c.JSON(http.StatusNotFound, APIError{Message: "No stories registered"})
	}
	return h.startByID(c, def.ID, req)
}

func (h *StoryHandler) startByID(c echo.Context, storyID models.StoryID, req *StartStoryRequest) error {
	ctx := c.Request().Context()
	old, hadOld, err := h.sessions.GetByUser(ctx, req.DiscordUserID)
	if err != nil {
		return h.handleEngineError(c, err)
	}

	step, err := h.engine.StartStory(ctx, storyID, sessionContext(req))
	if err != nil {
		// Старая сессия не тронута: неудачный старт ничего не перечеркивает.
		return h.handleEngineError(c, err)
	}
	replaced := false
	if hadOld {
		h.retireReplacedSession(c, old)
		replaced = true
	}
	return h.finishStep(c, http.StatusCreated, step, replaced)
}

// startAIStory генерирует первый слой новой истории и запускает ее.
func (h *StoryHandler) startAIStory(c echo.Context) error {
	if h.aiGen == nil {
		return c.JSON(http.StatusServiceUnavailable, APIError{Message: "AI generation is disabled"})
	}
	req, bindErr := h.bindStartRequest(c)
	if req == nil {
		return bindErr
	}

	ctx := c.Request().Context()
	old, hadOld, err := h.sessions.GetByUser(ctx, req.DiscordUserID)
	if err != nil {
		return h.handleEngineError(c, err)
	}

	result := h.aiGen.StartIncrementalStory(ctx, sessionContext(req), req.Theme)
	if !result.Success {
		// Старая сессия не тронута: провал генерации ничего не перечеркивает.
		return c.JSON(http.StatusBadGateway, APIError{Message: "Story generation failed: " + result.Error})
	}
	replaced := false
	if hadOld {
		h.retireReplacedSession(c, old)
		replaced = true
	}
	return h.finishStep(c, http.StatusCreated, result.Step, replaced)
}

// applyChoice применяет выбор игрока и продвигает историю до следующего
// узла решения, терминала или несгенерированного слоя.
func (h *StoryHandler) applyChoice(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid session id"})
	}

	var req ChoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Validation failed: " + err.Error()})
	}

	key := models.ChoiceKey(req.Choice)
	var step *models.StepResult
	if h.aiGen != nil {
		// Путь через генератор: он дорисовывает слои AI-историй, а для
		// авторских прозрачно делегирует движку.
		step, err = h.aiGen.ApplyChoice(c.Request().Context(), sessionID, key)
	} else {
		step, err = h.engine.ApplyChoice(c.Request().Context(), sessionID, key)
	}
	if err != nil {
		return h.handleEngineError(c, err)
	}
	return h.finishStep(c, http.StatusOK, step, false)
}

// getSession возвращает снимок сессии по id.
func (h *StoryHandler) getSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid session id"})
	}

	s, ok, err := h.sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		return h.handleEngineError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, APIError{Message: "Session not found"})
	}
	return c.JSON(http.StatusOK, h.sessionResponse(s))
}

// getUserSession возвращает незавершенную сессию пользователя.
func (h *StoryHandler) getUserSession(c echo.Context) error {
	discordUserID := c.Param("uid")

	s, ok, err := h.sessions.GetByUser(c.Request().Context(), discordUserID)
	if err != nil {
		return h.handleEngineError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, APIError{Message: "Session not found"})
	}
	return c.JSON(http.StatusOK, h.sessionResponse(s))
}

func (h *StoryHandler) sessionResponse(s *models.Session) SessionResponse {
	resp := SessionResponse{
		Session:   s,
		StoryID:   string(s.StoryID),
		CanResume: h.engine.CanResumeSession(s),
	}
	if sc, ok := h.engine.GetStoryContext(s); ok {
		resp.Title = sc.Story.Title
		resp.Marker = sc.Story.Marker
		resp.Choices = choiceViews(sc.CurrentNode)
	}
	return resp
}
