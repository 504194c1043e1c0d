package aigen

import (
	"encoding/json"

	"github.com/evobug-com/story-server/internal/models"
)

// DTO для архивации сгенерированных историй. Узлы AI-историй полностью
// статичны, поэтому определение сериализуемо без потерь.

type nodeDTO struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Narrative     string     `json:"narrative,omitempty"`
	NextNodeID    string     `json:"nextNodeId,omitempty"`
	ChoiceX       *choiceDTO `json:"choiceX,omitempty"`
	ChoiceY       *choiceDTO `json:"choiceY,omitempty"`
	SuccessChance int        `json:"successChance,omitempty"`
	SuccessNodeID string     `json:"successNodeId,omitempty"`
	FailNodeID    string     `json:"failNodeId,omitempty"`
	CoinsChange   int        `json:"coinsChange,omitempty"`
	Positive      bool       `json:"positive,omitempty"`
	XPMultiplier  float64    `json:"xpMultiplier,omitempty"`
	LayerDepth    int        `json:"layerDepth,omitempty"`
}

type choiceDTO struct {
	Label          string  `json:"label"`
	Description    string  `json:"description,omitempty"`
	BaseReward     int     `json:"baseReward"`
	RiskMultiplier float64 `json:"riskMultiplier"`
	NextNodeID     string  `json:"nextNodeId"`
}

type definitionDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Marker      string    `json:"marker,omitempty"`
	StartNodeID string    `json:"startNodeId"`
	Nodes       []nodeDTO `json:"nodes"`
}

func marshalDefinition(def *models.StoryDefinition) json.RawMessage {
	dto := definitionDTO{
		ID:          string(def.ID),
		Title:       def.Title,
		Marker:      def.Marker,
		StartNodeID: string(def.StartNodeID),
		Nodes:       make([]nodeDTO, 0, len(def.Nodes)),
	}
	for _, node := range def.Nodes {
		dto.Nodes = append(dto.Nodes, nodeToDTO(node))
	}
	data, err := json.Marshal(dto)
	if err != nil {
		// Статические определения маршалятся всегда; пустой объект
		// оставит след в архиве вместо паники.
		return json.RawMessage("{}")
	}
	return data
}

func nodeToDTO(node *models.Node) nodeDTO {
	dto := nodeDTO{
		ID:   string(node.ID),
		Kind: string(node.Kind),
	}
	switch node.Kind {
	case models.NodeIntro:
		dto.Narrative = node.Narrative.Render(nil)
		dto.NextNodeID = string(node.NextNodeID)
	case models.NodeDecision:
		dto.Narrative = node.Narrative.Render(nil)
		dto.ChoiceX = choiceToDTO(node.ChoiceX)
		dto.ChoiceY = choiceToDTO(node.ChoiceY)
	case models.NodeOutcome:
		dto.Narrative = node.Narrative.Render(nil)
		dto.SuccessChance = node.SuccessChance
		dto.SuccessNodeID = string(node.SuccessNodeID)
		dto.FailNodeID = string(node.FailNodeID)
	case models.NodeTerminal:
		dto.Narrative = node.Narrative.Render(nil)
		dto.CoinsChange = node.CoinsChange.Resolve()
		dto.Positive = node.IsPositiveEnding
		dto.XPMultiplier = node.XPMultiplier
	case models.NodePending:
		dto.LayerDepth = node.LayerDepth
	}
	return dto
}

func choiceToDTO(c *models.Choice) *choiceDTO {
	if c == nil {
		return nil
	}
	return &choiceDTO{
		Label:          c.Label,
		Description:    c.Description,
		BaseReward:     c.BaseReward,
		RiskMultiplier: c.RiskMultiplier,
		NextNodeID:     string(c.NextNodeID),
	}
}
