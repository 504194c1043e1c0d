// Package aigen реализует инкрементальную генерацию AI-историй: на старте
// материализуется только первый слой графа (интро + первый выбор), более
// глубокие слои генерируются лениво, когда сессия реально в них переходит.
// Так стоимость генерации ограничена фактически пройденным путем.
package aigen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/engine"
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/repository"
	"github.com/evobug-com/story-server/internal/story"
)

const (
	introNodeID     models.NodeID = "intro"
	firstDecisionID models.NodeID = "d1"
	aiStoryIDPrefix               = "ai-"
	aiStoryCategory               = "ai"
)

// Config — настройки генератора.
type Config struct {
	// MaxDepth — максимальное число узлов выбора на любом пути; на этой
	// глубине обе ветви обязаны быть концовками.
	MaxDepth int
	// BaseXP и Weight — балансировочные метаданные создаваемых историй.
	BaseXP int
	Weight float64
	// DefaultMarker используется, если модель не вернула маркер.
	DefaultMarker string
}

// DefaultConfig возвращает настройки генератора по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxDepth:      3,
		BaseXP:        100,
		Weight:        1,
		DefaultMarker: "✨",
	}
}

// StartResult — структурированный результат запуска AI-истории. Ошибки
// генерации не пробрасываются паникой или error: вызывающий по Success
// решает, не откатиться ли на заранее написанную историю.
type StartResult struct {
	Success bool               `json:"success"`
	StoryID models.StoryID     `json:"storyId,omitempty"`
	Step    *models.StepResult `json:"-"`
	Usage   *UsageInfo         `json:"usage,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Service — инкрементальный генератор поверх движка и каталога.
type Service struct {
	catalog  *story.Catalog
	engine   *engine.Engine
	client   AIClient
	archive  repository.StoryArchive // может быть nil: архивация опциональна
	validate *validator.Validate
	logger   *zap.Logger
	cfg      Config
}

// NewService создает генератор.
func NewService(catalog *story.Catalog, eng *engine.Engine, client AIClient, archive repository.StoryArchive, logger *zap.Logger, cfg Config) *Service {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.BaseXP <= 0 {
		cfg.BaseXP = DefaultConfig().BaseXP
	}
	if cfg.DefaultMarker == "" {
		cfg.DefaultMarker = DefaultConfig().DefaultMarker
	}
	return &Service{
		catalog:  catalog,
		engine:   eng,
		client:   client,
		archive:  archive,
		validate: validator.New(),
		logger:   logger.Named("AIGenerator"),
		cfg:      cfg,
	}
}

// StartIncrementalStory генерирует первый слой новой истории, регистрирует
// ее в каталоге под свежим id и запускает на ней обычную сессию.
func (g *Service) StartIncrementalStory(ctx context.Context, sc models.SessionContext, theme string) *StartResult {
	log := g.logger.With(zap.String("discordUserID", sc.DiscordUserID))

	raw, usage, err := g.client.GenerateLayer(ctx, firstLayerSystemPrompt, buildFirstLayerInput(theme))
	if err != nil {
		log.Warn("First layer generation failed", zap.Error(err))
		return &StartResult{Success: false, Usage: &usage, Error: err.Error()}
	}

	layer, err := parseFirstLayer(g.validate, raw)
	if err != nil {
		log.Warn("First layer rejected", zap.Error(err))
		return &StartResult{Success: false, Usage: &usage, Error: err.Error()}
	}

	def := g.buildFirstLayerDefinition(layer)
	if err := g.catalog.Register(def); err != nil {
		log.Error("Failed to register generated story", zap.Error(err))
		return &StartResult{Success: false, Usage: &usage, Error: err.Error()}
	}
	layersMaterialized.WithLabelValues("first").Inc()
	log.Info("AI story registered", zap.String("storyID", string(def.ID)), zap.String("title", def.Title))

	g.archiveCreate(ctx, def, sc.DiscordUserID, usage)

	step, err := g.engine.StartStory(ctx, def.ID, sc)
	if err != nil {
		log.Error("Failed to start session on generated story", zap.Error(err))
		return &StartResult{Success: false, StoryID: def.ID, Usage: &usage, Error: err.Error()}
	}

	return &StartResult{Success: true, StoryID: def.ID, Step: step, Usage: &usage}
}

// ApplyChoice применяет выбор через движок и, если сессия уперлась в
// несгенерированный слой, материализует его и продолжает. Для обычных
// историй путь полностью совпадает с engine.ApplyChoice.
func (g *Service) ApplyChoice(ctx context.Context, sessionID uuid.UUID, key models.ChoiceKey) (*models.StepResult, error) {
	step, err := g.engine.ApplyChoice(ctx, sessionID, key)
	if errors.Is(err, models.ErrNodePending) {
		// Сессия осталась припаркованной после неудавшейся генерации:
		// повторная попытка выбора — повод догенерировать слой. Resume
		// вернет Pending-шаг, и цикл ниже материализует его.
		step, err = g.engine.Resume(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	// Один ApplyChoice может пересечь не более одного pending-узла: слой
	// материализуется с концовками или следующим выбором, но лимит
	// оставлен на случай дефектного контента.
	for attempts := 0; step.Pending && attempts < g.cfg.MaxDepth+1; attempts++ {
		if err := g.materializeLayer(ctx, step.Session); err != nil {
			return nil, err
		}
		step, err = g.engine.Resume(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}
	if step.Pending {
		return nil, fmt.Errorf("%w: session %s still pending after materialization", models.ErrGenerationFailed, sessionID)
	}
	if step.Done {
		// Персональная история отыграна: в каталоге ей делать нечего,
		// содержимое уже сохранено в архиве.
		g.DiscardStory(step.Reward.StoryID)
	}
	return step, nil
}

// DiscardStory удаляет персональную AI-историю из каталога; авторские
// истории метод не трогает. Без этого каталог рос бы на каждую
// сгенерированную историю до конца жизни процесса.
func (g *Service) DiscardStory(id models.StoryID) {
	if !strings.HasPrefix(string(id), aiStoryIDPrefix) {
		return
	}
	if g.catalog.Remove(id) {
		g.logger.Info("Generated story removed from catalog", zap.String("storyID", string(id)))
	}
}

// materializeLayer генерирует слой для pending-узла, на котором припаркована
// сессия, и подменяет определение истории в каталоге.
func (g *Service) materializeLayer(ctx context.Context, s *models.Session) error {
	log := g.logger.With(zap.String("sessionID", s.SessionID.String()), zap.String("storyID", string(s.StoryID)))

	def, ok := g.catalog.Get(s.StoryID)
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrStoryNotFound, s.StoryID)
	}
	pending, ok := def.Node(s.CurrentNodeID)
	if !ok || pending.Kind != models.NodePending {
		return fmt.Errorf("%w: node %q is not pending", models.ErrGenerationFailed, s.CurrentNodeID)
	}

	choiceLabel, choiceDesc := findLeadingChoice(def, pending.ID)
	prior := collectPriorNarrative(def, pending.ID)
	forceEnding := pending.LayerDepth >= g.cfg.MaxDepth

	raw, usage, err := g.client.GenerateLayer(ctx,
		buildContinuationSystemPrompt(forceEnding),
		buildContinuationInput(def.Title, prior, choiceLabel, choiceDesc))
	if err != nil {
		log.Warn("Layer generation failed", zap.Error(err))
		return err
	}

	layer, err := parseContinuationLayer(g.validate, raw, forceEnding)
	if err != nil {
		log.Warn("Layer rejected", zap.Error(err))
		return err
	}

	next := &models.StoryDefinition{
		ID:          def.ID,
		Title:       def.Title,
		Marker:      def.Marker,
		StartNodeID: def.StartNodeID,
		Nodes:       def.CloneNodes(),
		Balancing:   def.Balancing,
	}
	graftContinuation(next, pending, layer)

	if err := g.catalog.Replace(next); err != nil {
		log.Error("Materialized layer failed graph validation", zap.Error(err))
		return err
	}
	layersMaterialized.WithLabelValues("continuation").Inc()
	log.Info("Story layer materialized",
		zap.String("pendingNodeID", string(pending.ID)),
		zap.Int("depth", pending.LayerDepth),
		zap.Bool("forcedEnding", forceEnding))

	g.archiveUpdate(ctx, next, usage)
	return nil
}

// buildFirstLayerDefinition собирает определение истории из первого слоя:
// интро -> первый выбор, обе ветви которого ведут в pending-заглушки.
func (g *Service) buildFirstLayerDefinition(layer *firstLayer) *models.StoryDefinition {
	id := models.StoryID(aiStoryIDPrefix + uuid.NewString()[:8])
	marker := layer.Marker
	if strings.TrimSpace(marker) == "" {
		marker = g.cfg.DefaultMarker
	}

	nodes := make(map[models.NodeID]*models.Node)
	nodes[introNodeID] = models.NewIntro(introNodeID, models.StaticText(layer.Intro), firstDecisionID)
	addDecision(nodes, firstDecisionID, layer.Decision, 1)

	return &models.StoryDefinition{
		ID:          id,
		Title:       layer.Title,
		Marker:      marker,
		StartNodeID: introNodeID,
		Nodes:       nodes,
		Balancing: models.Balancing{
			Category: aiStoryCategory,
			BaseXP:   g.cfg.BaseXP,
			Weight:   g.cfg.Weight,
		},
	}
}

// graftContinuation подменяет pending-узел сгенерированным слоем: узел
// исхода и две ветви, каждая — концовка или новый выбор с pending-листьями.
func graftContinuation(def *models.StoryDefinition, pending *models.Node, layer *continuationLayer) {
	winID := pending.ID + "w"
	loseID := pending.ID + "l"
	def.Nodes[pending.ID] = models.NewOutcome(pending.ID, models.StaticText(layer.Outcome), layer.Chance, winID, loseID)
	graftBranch(def, winID, layer.Win, pending.LayerDepth)
	graftBranch(def, loseID, layer.Lose, pending.LayerDepth)
}

func graftBranch(def *models.StoryDefinition, id models.NodeID, branch *layerBranch, depth int) {
	if branch.Ending {
		def.Nodes[id] = models.NewTerminal(id, models.StaticText(branch.Text), models.Coins(branch.Coins), branch.Positive, branch.XP)
		return
	}
	narrative := branch.Text
	if branch.Decision.Text != "" {
		narrative = branch.Text + "\n\n" + branch.Decision.Text
	}
	decision := &layerDecision{Text: narrative, X: branch.Decision.X, Y: branch.Decision.Y}
	addDecision(def.Nodes, id, decision, depth+1)
}

// addDecision добавляет узел выбора и pending-заглушки для обеих ветвей.
func addDecision(nodes map[models.NodeID]*models.Node, id models.NodeID, d *layerDecision, depth int) {
	xPending := id + "x"
	yPending := id + "y"
	nodes[id] = models.NewDecision(id, models.StaticText(d.Text), 0,
		&models.Choice{Label: d.X.Label, Description: d.X.Description, BaseReward: d.X.Coins, RiskMultiplier: d.X.Risk, NextNodeID: xPending},
		&models.Choice{Label: d.Y.Label, Description: d.Y.Description, BaseReward: d.Y.Coins, RiskMultiplier: d.Y.Risk, NextNodeID: yPending},
	)
	nodes[xPending] = models.NewPending(xPending, depth)
	nodes[yPending] = models.NewPending(yPending, depth)
}

// findLeadingChoice ищет вариант выбора, чей переход ведет в pending-узел.
func findLeadingChoice(def *models.StoryDefinition, pendingID models.NodeID) (label, description string) {
	for _, node := range def.Nodes {
		if node.Kind != models.NodeDecision {
			continue
		}
		for _, choice := range []*models.Choice{node.ChoiceX, node.ChoiceY} {
			if choice != nil && choice.NextNodeID == pendingID {
				return choice.Label, choice.Description
			}
		}
	}
	return "", ""
}

// collectPriorNarrative собирает текст пути от старта до pending-узла.
// Узлы AI-историй статичны, поэтому Render без сессии безопасен.
func collectPriorNarrative(def *models.StoryDefinition, target models.NodeID) string {
	path, ok := findPath(def, def.StartNodeID, target, map[models.NodeID]bool{})
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(path))
	for _, id := range path {
		node := def.Nodes[id]
		if node == nil || node.Kind == models.NodePending {
			continue
		}
		if text := node.Narrative.Render(nil); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func findPath(def *models.StoryDefinition, from, target models.NodeID, seen map[models.NodeID]bool) ([]models.NodeID, bool) {
	if seen[from] {
		return nil, false
	}
	seen[from] = true
	if from == target {
		return []models.NodeID{from}, true
	}
	node, ok := def.Nodes[from]
	if !ok {
		return nil, false
	}
	for _, next := range nodeSuccessors(node) {
		if path, ok := findPath(def, next, target, seen); ok {
			return append([]models.NodeID{from}, path...), true
		}
	}
	return nil, false
}

func nodeSuccessors(node *models.Node) []models.NodeID {
	switch node.Kind {
	case models.NodeIntro:
		return []models.NodeID{node.NextNodeID}
	case models.NodeDecision:
		return []models.NodeID{node.ChoiceX.NextNodeID, node.ChoiceY.NextNodeID}
	case models.NodeOutcome:
		return []models.NodeID{node.SuccessNodeID, node.FailNodeID}
	}
	return nil
}

func (g *Service) archiveCreate(ctx context.Context, def *models.StoryDefinition, discordUserID string, usage UsageInfo) {
	if g.archive == nil {
		return
	}
	record := &repository.GeneratedStory{
		StoryID:          string(def.ID),
		DiscordUserID:    discordUserID,
		Title:            def.Title,
		Definition:       marshalDefinition(def),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		EstimatedCostUSD: usage.EstimatedCostUSD,
	}
	if err := g.archive.Save(ctx, record); err != nil {
		// Архив — best effort: генерация и игра не зависят от него.
		g.logger.Error("Failed to archive generated story", zap.String("storyID", string(def.ID)), zap.Error(err))
	}
}

func (g *Service) archiveUpdate(ctx context.Context, def *models.StoryDefinition, usage UsageInfo) {
	if g.archive == nil {
		return
	}
	err := g.archive.AppendLayer(ctx, string(def.ID), marshalDefinition(def), usage.PromptTokens, usage.CompletionTokens, usage.EstimatedCostUSD)
	if err != nil {
		g.logger.Error("Failed to update archived story", zap.String("storyID", string(def.ID)), zap.Error(err))
	}
}
