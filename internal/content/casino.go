package content

import (
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
)

// casinoStory — рисковая история. Джекпот вычисляется инжектированным
// источником; движок кеширует результат в сессии, повторный рендер
// не перебрасывает значение.
func casinoStory(flavor random.Source) *models.StoryDefinition {
	return &models.StoryDefinition{
		ID:          "casino",
		Title:       "Midnight at the Lucky Prawn",
		Marker:      "🎰",
		StartNodeID: "intro",
		Balancing:   models.Balancing{Category: "risk", BaseXP: 100, Weight: 0.8},
		Nodes: map[models.NodeID]*models.Node{
			"intro": models.NewIntro("intro",
				models.StaticText("The Lucky Prawn never closes and never pays out, or so they say. Tonight the roulette wheel has been hitting red all evening, and you have a pocketful of coins that want to multiply."),
				"d1"),
			"d1": models.NewDecision("d1",
				models.StaticText("The croupier raises an eyebrow. Table minimum just dropped. How do you play it?"),
				0,
				&models.Choice{
					Label:          "All in",
					Description:    "Everything on red. One spin, one answer.",
					BaseReward:     0,
					RiskMultiplier: 2.0,
					NextNodeID:     "o_allin",
				},
				&models.Choice{
					Label:          "Play it slow",
					Description:    "Small bets, free snacks, walk out even-ish.",
					BaseReward:     30,
					RiskMultiplier: 0.8,
					NextNodeID:     "o_slow",
				}),
			"o_allin": models.NewOutcome("o_allin",
				models.StaticText("The wheel blurs. Your entire evening rides on a bouncing white ball..."),
				35, "t_jackpot", "t_bust"),
			"o_slow": models.NewOutcome("o_slow",
				models.StaticText("An hour of careful bets later, the pile in front of you has been quietly growing. One last hand..."),
				75, "t_evening", "t_tilt"),
			"t_jackpot": models.NewTerminal("t_jackpot",
				models.StaticText("Red. The table erupts. The croupier pushes a frankly embarrassing pile of chips your way and asks you, politely, to leave."),
				models.ComputedCoins(func() int {
					// 400..700, шаг 50
					return 400 + flavor.IntN(7)*50
				}), true, 2.0),
			"t_bust": models.NewTerminal("t_bust",
				models.StaticText("Black. The ball settles with a tiny, final click. You walk home past closed kebab shops, composing the story of how you almost won."),
				models.Coins(-200), false, 0.5),
			"t_evening": models.NewTerminal("t_evening",
				models.StaticText("You cash out modestly up, pockets heavier, dignity intact. The croupier nods like you passed some kind of test."),
				models.Coins(120), true, 1.0),
			"t_tilt": models.NewTerminal("t_tilt",
				models.StaticText("The last hand goes sideways and takes half your careful winnings with it. Lesson logged, snacks consumed."),
				models.Coins(-50), false, 0.8),
		},
	}
}
