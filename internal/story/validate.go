package story

import (
	"fmt"

	"github.com/evobug-com/story-server/internal/models"
)

// Validate проверяет сюжетный граф целиком при регистрации, а не при
// обходе: висячая ссылка или цикл — дефект авторского контента, и падать
// нужно громко и сразу.
//
// Инварианты:
//   - стартовый узел существует;
//   - каждая ссылка nextNodeId/successNodeId/failNodeId разрешается в узел
//     той же истории;
//   - у узла выбора заполнены оба варианта, riskMultiplier >= 0;
//   - successChance лежит в [0, 100];
//   - граф ацикличен, и любой достижимый путь упирается в терминальный
//     узел (pending-заглушка AI-истории считается легальным листом).
func Validate(def *models.StoryDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: empty story id", models.ErrMalformedNode)
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("%w: story %q has no nodes", models.ErrMalformedNode, def.ID)
	}
	if _, ok := def.Nodes[def.StartNodeID]; !ok {
		return fmt.Errorf("%w: story %q start node %q does not exist", models.ErrMalformedNode, def.ID, def.StartNodeID)
	}

	for id, node := range def.Nodes {
		if node == nil {
			return fmt.Errorf("%w: story %q node %q is nil", models.ErrMalformedNode, def.ID, id)
		}
		if node.ID != id {
			return fmt.Errorf("%w: story %q node keyed %q has id %q", models.ErrMalformedNode, def.ID, id, node.ID)
		}
		if err := validateNode(def, node); err != nil {
			return err
		}
	}

	return checkClosure(def)
}

func validateNode(def *models.StoryDefinition, node *models.Node) error {
	switch node.Kind {
	case models.NodeIntro:
		return checkRef(def, node.ID, "nextNodeId", node.NextNodeID)
	case models.NodeDecision:
		if node.ChoiceX == nil || node.ChoiceY == nil {
			return fmt.Errorf("%w: story %q decision %q must have both choices", models.ErrMalformedNode, def.ID, node.ID)
		}
		for key, choice := range map[models.ChoiceKey]*models.Choice{models.ChoiceX: node.ChoiceX, models.ChoiceY: node.ChoiceY} {
			if choice.RiskMultiplier < 0 {
				return fmt.Errorf("%w: story %q decision %q %s has negative risk multiplier", models.ErrMalformedNode, def.ID, node.ID, key)
			}
			if err := checkRef(def, node.ID, string(key)+".nextNodeId", choice.NextNodeID); err != nil {
				return err
			}
		}
		return nil
	case models.NodeOutcome:
		if node.SuccessChance < 0 || node.SuccessChance > 100 {
			return fmt.Errorf("%w: story %q outcome %q chance %d out of [0,100]", models.ErrMalformedNode, def.ID, node.ID, node.SuccessChance)
		}
		if err := checkRef(def, node.ID, "successNodeId", node.SuccessNodeID); err != nil {
			return err
		}
		return checkRef(def, node.ID, "failNodeId", node.FailNodeID)
	case models.NodeTerminal, models.NodePending:
		return nil
	}
	return fmt.Errorf("%w: story %q node %q has unknown kind %q", models.ErrMalformedNode, def.ID, node.ID, node.Kind)
}

func checkRef(def *models.StoryDefinition, from models.NodeID, field string, to models.NodeID) error {
	if _, ok := def.Nodes[to]; !ok {
		return fmt.Errorf("%w: story %q node %q %s references missing node %q", models.ErrMalformedNode, def.ID, from, field, to)
	}
	return nil
}

// checkClosure обходит граф в глубину от стартового узла, детектирует циклы
// (обратное ребро на узел в текущем стеке) и проверяет, что каждый лист —
// терминальный или pending узел.
func checkClosure(def *models.StoryDefinition) error {
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[models.NodeID]int, len(def.Nodes))

	var visit func(id models.NodeID) error
	visit = func(id models.NodeID) error {
		switch state[id] {
		case onStack:
			return fmt.Errorf("%w: story %q has a cycle through node %q", models.ErrMalformedNode, def.ID, id)
		case done:
			return nil
		}
		state[id] = onStack
		node := def.Nodes[id]
		for _, next := range successors(node) {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	return visit(def.StartNodeID)
}

func successors(node *models.Node) []models.NodeID {
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
