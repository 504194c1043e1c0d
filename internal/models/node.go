package models

// NodeID идентифицирует узел внутри одной истории.
type NodeID string

// NodeKind — вид узла сюжетного графа.
type NodeKind string

const (
	// NodeIntro — повествовательный узел с безусловным переходом дальше.
	NodeIntro NodeKind = "intro"
	// NodeDecision — узел выбора с двумя вариантами; ждет ввода игрока.
	NodeDecision NodeKind = "decision"
	// NodeOutcome — вероятностный узел: бросок 1..100 против SuccessChance.
	NodeOutcome NodeKind = "outcome"
	// NodeTerminal — конец истории с наградой.
	NodeTerminal NodeKind = "terminal"
	// NodePending — еще не сгенерированный слой AI-истории. Интерпретатор
	// останавливается на нем и ждет материализации.
	NodePending NodeKind = "pending"
)

// ChoiceKey — ключ варианта в узле выбора.
type ChoiceKey string

const (
	ChoiceX ChoiceKey = "choiceX"
	ChoiceY ChoiceKey = "choiceY"
)

// ValidChoiceKey проверяет, что ключ является одним из двух известных.
func ValidChoiceKey(key ChoiceKey) bool {
	return key == ChoiceX || key == ChoiceY
}

// Choice — один из двух вариантов узла выбора.
type Choice struct {
	Label          string
	Description    string
	BaseReward     int     // базовая награда до учета риска, может быть отрицательной
	RiskMultiplier float64 // >= 0, масштабирует вклад BaseReward
	NextNodeID     NodeID
}

// Node — узел сюжетного графа. Тегированное объединение: смысл полей
// определяется Kind, остальные поля остаются нулевыми.
type Node struct {
	ID        NodeID
	Kind      NodeKind
	Narrative Narrative

	// NodeIntro
	NextNodeID NodeID

	// NodeDecision
	EntryCoins int // немедленная дельта монет при входе в узел выбора
	ChoiceX    *Choice
	ChoiceY    *Choice

	// NodeOutcome
	SuccessChance int // 0..100
	SuccessNodeID NodeID
	FailNodeID    NodeID

	// NodeTerminal
	CoinsChange      CoinsValue
	IsPositiveEnding bool // аналитический флаг, не знак награды
	XPMultiplier     float64

	// NodePending
	LayerDepth int // глубина слоя для инкрементальной генерации
}

// Choice возвращает вариант по ключу или nil для неизвестного ключа.
func (n *Node) Choice(key ChoiceKey) *Choice {
	switch key {
	case ChoiceX:
		return n.ChoiceX
	case ChoiceY:
		return n.ChoiceY
	}
	return nil
}

// NewIntro создает повествовательный узел.
func NewIntro(id NodeID, narrative Narrative, next NodeID) *Node {
	return &Node{ID: id, Kind: NodeIntro, Narrative: narrative, NextNodeID: next}
}

// NewDecision создает узел выбора.
func NewDecision(id NodeID, narrative Narrative, entryCoins int, choiceX, choiceY *Choice) *Node {
	return &Node{
		ID:         id,
		Kind:       NodeDecision,
		Narrative:  narrative,
		EntryCoins: entryCoins,
		ChoiceX:    choiceX,
		ChoiceY:    choiceY,
	}
}

// NewOutcome создает вероятностный узел.
func NewOutcome(id NodeID, narrative Narrative, successChance int, successID, failID NodeID) *Node {
	return &Node{
		ID:            id,
		Kind:          NodeOutcome,
		Narrative:     narrative,
		SuccessChance: successChance,
		SuccessNodeID: successID,
		FailNodeID:    failID,
	}
}

// NewTerminal создает конечный узел.
func NewTerminal(id NodeID, narrative Narrative, coins CoinsValue, positive bool, xpMultiplier float64) *Node {
	return &Node{
		ID:               id,
		Kind:             NodeTerminal,
		Narrative:        narrative,
		CoinsChange:      coins,
		IsPositiveEnding: positive,
		XPMultiplier:     xpMultiplier,
	}
}

// NewPending создает заглушку несгенерированного слоя.
func NewPending(id NodeID, depth int) *Node {
	return &Node{ID: id, Kind: NodePending, LayerDepth: depth}
}
