package models

// StoryID идентифицирует историю в каталоге.
type StoryID string

// Balancing — балансировочные метаданные истории.
type Balancing struct {
	Category string  // категория для таблицы весов игрока ("work", "risk", ...)
	BaseXP   int     // базовый грант опыта, масштабируется XPMultiplier концовки
	Weight   float64 // собственный вес истории внутри категории
}

// StoryDefinition — определение истории: неизменяемо после регистрации
// в каталоге. Все перекрестные ссылки узлов проверяются при регистрации.
type StoryDefinition struct {
	ID          StoryID
	Title       string
	Marker      string // декоративный маркер (emoji) для презентационного слоя
	StartNodeID NodeID
	Nodes       map[NodeID]*Node
	Balancing   Balancing
}

// Node возвращает узел по id.
func (d *StoryDefinition) Node(id NodeID) (*Node, bool) {
	n, ok := d.Nodes[id]
	return n, ok
}

// CloneNodes возвращает поверхностную копию карты узлов. Используется при
// инкрементальной материализации слоев, чтобы не мутировать определение,
// на которое могут смотреть другие сессии.
func (d *StoryDefinition) CloneNodes() map[NodeID]*Node {
	nodes := make(map[NodeID]*Node, len(d.Nodes))
	for id, n := range d.Nodes {
		nodes[id] = n
	}
	return nodes
}
