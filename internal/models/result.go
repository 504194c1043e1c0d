package models

// RewardSummary — итоговые числа награды терминального узла. Движок только
// вычисляет их; начислением занимается внешний экономический сервис.
type RewardSummary struct {
	Coins            int     `json:"coins"`
	XP               int     `json:"xp"`
	IsPositiveEnding bool    `json:"isPositiveEnding"`
	XPMultiplier     float64 `json:"xpMultiplier"`
	StoryID          StoryID `json:"storyId"`
	StoryTitle       string  `json:"storyTitle"`
}

// StepResult — результат одного шага интерпретатора (StartStory, ApplyChoice
// или Resume): накопленное повествование посещенных узлов и состояние сессии.
type StepResult struct {
	Session   *Session
	Narrative string
	// Done — история завершена терминальным узлом, сессия удалена.
	Done bool
	// Reward заполнен только при Done.
	Reward *RewardSummary
	// Pending — сессия припаркована на несгенерированном слое AI-истории.
	Pending bool
}

// StoryContext — данные для презентационного слоя: история и текущий узел
// сессии. Чистое чтение, без побочных эффектов.
type StoryContext struct {
	Story       *StoryDefinition
	CurrentNode *Node
}
