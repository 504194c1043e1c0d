// Package engine содержит интерпретатор сюжетного графа: старт истории,
// применение выбора, авто-продвижение через повествовательные и
// вероятностные узлы до следующего выбора или концовки.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/session"
	"github.com/evobug-com/story-server/internal/story"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config — настройки движка.
type Config struct {
	// ResumeWindow — окно возобновления: сколько времени после последнего
	// взаимодействия сессию можно предложить продолжить.
	ResumeWindow time.Duration
	// MaxAdvanceSteps ограничивает цикл авто-продвижения. Валидация графа
	// исключает циклы, но для контента, пришедшего из генератора, лимит
	// превращает зависание в явную ошибку.
	MaxAdvanceSteps int
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		ResumeWindow:    15 * time.Minute,
		MaxAdvanceSteps: 64,
	}
}

// Engine — интерпретатор состояния историй.
type Engine struct {
	catalog  *story.Catalog
	sessions session.Store
	rng      random.Source
	logger   *zap.Logger
	cfg      Config
}

// New создает движок.
func New(catalog *story.Catalog, sessions session.Store, rng random.Source, logger *zap.Logger, cfg Config) *Engine {
	if cfg.MaxAdvanceSteps <= 0 {
		cfg.MaxAdvanceSteps = DefaultConfig().MaxAdvanceSteps
	}
	if cfg.ResumeWindow <= 0 {
		cfg.ResumeWindow = DefaultConfig().ResumeWindow
	}
	return &Engine{
		catalog:  catalog,
		sessions: sessions,
		rng:      rng,
		logger:   logger.Named("Engine"),
		cfg:      cfg,
	}
}

// StartStory создает сессию на стартовом узле истории и авто-продвигает ее
// до первого узла выбора или концовки, склеивая повествование посещенных
// узлов в одну строку.
func (e *Engine) StartStory(ctx context.Context, storyID models.StoryID, sc models.SessionContext) (*models.StepResult, error) {
	log := e.logger.With(zap.String("storyID", string(storyID)), zap.String("discordUserID", sc.DiscordUserID))

	def, ok := e.catalog.Get(storyID)
	if !ok {
		log.Warn("Story not found in catalog")
		return nil, fmt.Errorf("%w: %q", models.ErrStoryNotFound, storyID)
	}

	s := models.NewSession(storyID, def.StartNodeID, sc)
	if err := e.sessions.Create(ctx, s); err != nil {
		log.Error("Failed to create session", zap.Error(err))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Info("Story session started", zap.String("sessionID", s.SessionID.String()))

	storiesStarted.WithLabelValues(def.Balancing.Category).Inc()
	return e.advance(ctx, def, s)
}

// ApplyChoice применяет вариант к текущему узлу выбора сессии: начисляет
// вклад варианта в накопленные монеты (baseReward * riskMultiplier),
// переводит сессию на следующий узел и продолжает авто-продвижение.
func (e *Engine) ApplyChoice(ctx context.Context, sessionID uuid.UUID, key models.ChoiceKey) (*models.StepResult, error) {
	log := e.logger.With(zap.String("sessionID", sessionID.String()), zap.String("choice", string(key)))

	s, ok, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		// Кнопки у сообщения пережили сессию — для вызывающего это
		// ожидаемое состояние, а не авария.
		log.Info("Session not found or expired")
		return nil, models.ErrSessionNotFound
	}

	def, ok := e.catalog.Get(s.StoryID)
	if !ok {
		log.Error("Session references story missing from catalog", zap.String("storyID", string(s.StoryID)))
		return nil, fmt.Errorf("%w: %q", models.ErrStoryNotFound, s.StoryID)
	}

	node, ok := def.Node(s.CurrentNodeID)
	if !ok {
		return nil, fmt.Errorf("%w: story %q node %q", models.ErrMalformedNode, def.ID, s.CurrentNodeID)
	}
	if node.Kind == models.NodePending {
		// Сессия припаркована на несгенерированном слое: без материализации
		// здесь нечего выбирать.
		return nil, fmt.Errorf("%w: node %q", models.ErrNodePending, node.ID)
	}
	if node.Kind != models.NodeDecision {
		log.Warn("Choice applied to non-decision node", zap.String("nodeKind", string(node.Kind)))
		return nil, fmt.Errorf("%w: node %q is %s", models.ErrChoiceInvalid, node.ID, node.Kind)
	}
	choice := node.Choice(key)
	if choice == nil {
		return nil, fmt.Errorf("%w: unknown key %q", models.ErrChoiceInvalid, key)
	}

	s.AccumulatedCoins += scaleReward(choice.BaseReward, choice.RiskMultiplier)
	s.CurrentNodeID = choice.NextNodeID
	s.Touch(time.Now().UTC())

	return e.advance(ctx, def, s)
}

// Resume продолжает авто-продвижение сессии с ее текущего узла. Вызывается
// после материализации pending-слоя AI-истории.
func (e *Engine) Resume(ctx context.Context, sessionID uuid.UUID) (*models.StepResult, error) {
	s, ok, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	def, ok := e.catalog.Get(s.StoryID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrStoryNotFound, s.StoryID)
	}
	return e.advance(ctx, def, s)
}

// advance — общий цикл интерпретатора: идет по графу, пока не встретит узел
// выбора, концовку или несгенерированный слой.
func (e *Engine) advance(ctx context.Context, def *models.StoryDefinition, s *models.Session) (*models.StepResult, error) {
	log := e.logger.With(zap.String("sessionID", s.SessionID.String()), zap.String("storyID", string(def.ID)))
	var narrative strings.Builder

	for step := 0; step < e.cfg.MaxAdvanceSteps; step++ {
		node, ok := def.Node(s.CurrentNodeID)
		if !ok {
			return nil, fmt.Errorf("%w: story %q node %q", models.ErrMalformedNode, def.ID, s.CurrentNodeID)
		}
		nodesVisited.WithLabelValues(string(node.Kind)).Inc()

		switch node.Kind {
		case models.NodeIntro:
			appendNarrative(&narrative, e.ResolveNarrative(s, node))
			s.CurrentNodeID = node.NextNodeID

		case models.NodeDecision:
			s.AccumulatedCoins += node.EntryCoins
			appendNarrative(&narrative, e.ResolveNarrative(s, node))
			if err := e.sessions.Save(ctx, s); err != nil {
				return nil, fmt.Errorf("failed to save session: %w", err)
			}
			return &models.StepResult{Session: s, Narrative: narrative.String()}, nil

		case models.NodeOutcome:
			appendNarrative(&narrative, e.ResolveNarrative(s, node))
			roll := random.Roll(e.rng)
			if roll <= node.SuccessChance {
				s.CurrentNodeID = node.SuccessNodeID
			} else {
				s.CurrentNodeID = node.FailNodeID
			}
			log.Debug("Outcome rolled",
				zap.String("nodeID", string(node.ID)),
				zap.Int("roll", roll),
				zap.Int("successChance", node.SuccessChance),
				zap.String("nextNodeID", string(s.CurrentNodeID)))

		case models.NodeTerminal:
			appendNarrative(&narrative, e.ResolveNarrative(s, node))
			reward := e.terminalReward(def, s, node)
			if err := e.sessions.Remove(ctx, s.SessionID); err != nil {
				log.Error("Failed to remove finished session", zap.Error(err))
			}
			storiesCompleted.WithLabelValues(positiveLabel(node.IsPositiveEnding)).Inc()
			log.Info("Story finished",
				zap.String("terminalNodeID", string(node.ID)),
				zap.Int("coins", reward.Coins),
				zap.Int("xp", reward.XP),
				zap.Bool("positive", node.IsPositiveEnding))
			return &models.StepResult{Session: s, Narrative: narrative.String(), Done: true, Reward: reward}, nil

		case models.NodePending:
			// Слой еще не сгенерирован: паркуем сессию здесь, вызывающий
			// материализует слой и сделает Resume.
			if err := e.sessions.Save(ctx, s); err != nil {
				return nil, fmt.Errorf("failed to save session: %w", err)
			}
			return &models.StepResult{Session: s, Narrative: narrative.String(), Pending: true}, nil

		default:
			return nil, fmt.Errorf("%w: story %q node %q unknown kind %q", models.ErrMalformedNode, def.ID, node.ID, node.Kind)
		}
	}

	return nil, fmt.Errorf("%w: story %q exceeded %d advance steps", models.ErrMalformedNode, def.ID, e.cfg.MaxAdvanceSteps)
}

// ResolveNarrative возвращает текст узла для сессии. Вычисляемые значения
// оцениваются один раз за посещение и кешируются в сессии, поэтому повторный
// рендер (повторный вызов) дает идентичный текст — чтение без мутаций.
func (e *Engine) ResolveNarrative(s *models.Session, node *models.Node) string {
	if !node.Narrative.IsComputed() {
		return node.Narrative.Render(s)
	}
	if text, ok := s.CachedText(node.ID); ok {
		return text
	}
	text := node.Narrative.Render(s)
	s.CacheText(node.ID, text)
	return text
}

// resolveCoins возвращает денежное значение терминального узла с тем же
// контрактом однократного вычисления.
func (e *Engine) resolveCoins(s *models.Session, node *models.Node) int {
	if !node.CoinsChange.IsComputed() {
		return node.CoinsChange.Resolve()
	}
	if amount, ok := s.CachedCoins(node.ID); ok {
		return amount
	}
	amount := node.CoinsChange.Resolve()
	s.CacheCoins(node.ID, amount)
	return amount
}

func (e *Engine) terminalReward(def *models.StoryDefinition, s *models.Session, node *models.Node) *models.RewardSummary {
	coins := s.AccumulatedCoins + e.resolveCoins(s, node)
	xp := int(math.Round(float64(def.Balancing.BaseXP) * node.XPMultiplier))
	return &models.RewardSummary{
		Coins:            coins,
		XP:               xp,
		IsPositiveEnding: node.IsPositiveEnding,
		XPMultiplier:     node.XPMultiplier,
		StoryID:          def.ID,
		StoryTitle:       def.Title,
	}
}

// GetStoryContext — чистое чтение для презентационного слоя: история и
// текущий узел сессии. false, если история или узел не разрешаются
// (устаревший каталог, битые данные).
func (e *Engine) GetStoryContext(s *models.Session) (*models.StoryContext, bool) {
	def, ok := e.catalog.Get(s.StoryID)
	if !ok {
		return nil, false
	}
	node, ok := def.Node(s.CurrentNodeID)
	if !ok {
		return nil, false
	}
	return &models.StoryContext{Story: def, CurrentNode: node}, true
}

// CanResumeSession сообщает, попадает ли сессия в окно возобновления.
// Терминальные сессии удаляются из хранилища, так что само существование
// сессии означает незавершенность.
func (e *Engine) CanResumeSession(s *models.Session) bool {
	if s == nil {
		return false
	}
	return time.Now().UTC().Sub(s.LastInteractionAt) <= e.cfg.ResumeWindow
}

func scaleReward(base int, risk float64) int {
	return int(math.Round(float64(base) * risk))
}

func appendNarrative(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(text)
}

func positiveLabel(positive bool) string {
	if positive {
		return "positive"
	}
	return "negative"
}
