package content

import (
	"fmt"

	"github.com/evobug-com/story-server/internal/models"
)

// overtimeStory — рабочая история со вторым слоем выбора: показывает
// вычисляемый нарратив, который читает накопленный банк сессии.
func overtimeStory() *models.StoryDefinition {
	return &models.StoryDefinition{
		ID:          "overtime",
		Title:       "The Late Shift",
		Marker:      "💼",
		StartNodeID: "intro",
		Balancing:   models.Balancing{Category: "work", BaseXP: 100, Weight: 1.0},
		Nodes: map[models.NodeID]*models.Node{
			"intro": models.NewIntro("intro",
				models.StaticText("It's 18:47. The office is emptying out, but the quarterly report your team lead \"urgently\" needs is still a pile of half-finished tabs. Your chair creaks as you weigh your evening."),
				"d1"),
			"d1": models.NewDecision("d1",
				models.StaticText("The building AC shuts off with a clunk. Do you grind through the report tonight, or slip out and gamble on tomorrow morning?"),
				20,
				&models.Choice{
					Label:          "Stay late",
					Description:    "Finish the report while the office is quiet.",
					BaseReward:     60,
					RiskMultiplier: 1.0,
					NextNodeID:     "o1",
				},
				&models.Choice{
					Label:          "Slip out",
					Description:    "Leave now and wing it at dawn.",
					BaseReward:     -10,
					RiskMultiplier: 0.5,
					NextNodeID:     "o2",
				}),
			"o1": models.NewOutcome("o1",
				models.StaticText("Two hours in, the numbers finally start lining up. Then the VPN drops. You hold your breath as it reconnects..."),
				65, "d2", "t_crash"),
			"d2": models.NewDecision("d2",
				models.ComputedText(func(s *models.Session) string {
					return fmt.Sprintf("The report is done and it's good. Your pocket already holds %d coins for the evening. The team lead is still online and just posted about a bonus task.", s.AccumulatedCoins)
				}),
				0,
				&models.Choice{
					Label:          "Take the bonus task",
					Description:    "Push your luck for a bigger payout.",
					BaseReward:     40,
					RiskMultiplier: 1.5,
					NextNodeID:     "o3",
				},
				&models.Choice{
					Label:          "Log off",
					Description:    "Bank what you have and go home.",
					BaseReward:     20,
					RiskMultiplier: 1.0,
					NextNodeID:     "t_home",
				}),
			"o3": models.NewOutcome("o3",
				models.StaticText("The bonus task turns out to be untangling a three-month-old spreadsheet. You dive in, coffee in hand..."),
				50, "t_hero", "t_burnout"),
			"o2": models.NewOutcome("o2",
				models.StaticText("You ghost past the team lead's office, badge in your pocket, elevator doors closing in slow motion..."),
				80, "t_sneak", "t_caught"),
			"t_crash": models.NewTerminal("t_crash",
				models.StaticText("The VPN never comes back, and neither does your unsaved work. You stumble home at midnight with nothing to show for it."),
				models.Coins(-60), false, 0.75),
			"t_home": models.NewTerminal("t_home",
				models.StaticText("Report delivered, inbox zero, and you still catch the late bus. Solid, unglamorous, exactly what was needed."),
				models.Coins(80), true, 1.0),
			"t_hero": models.NewTerminal("t_hero",
				models.StaticText("The spreadsheet yields. By morning your name is at the top of the team channel with three fire emojis under it."),
				models.Coins(300), true, 1.5),
			"t_burnout": models.NewTerminal("t_burnout",
				models.StaticText("At 2 AM the spreadsheet wins. You close the laptop mid-formula and sleep through two alarms."),
				models.Coins(-120), false, 0.75),
			"t_sneak": models.NewTerminal("t_sneak",
				models.StaticText("Morning-you, against all odds, hammers the report out before standup. Nobody ever knows how close it was."),
				models.Coins(50), true, 0.9),
			"t_caught": models.NewTerminal("t_caught",
				models.StaticText("The elevator opens straight onto your team lead holding two coffees, one clearly meant for you. The report gets finished tonight after all, unpaid."),
				models.Coins(-80), false, 0.6),
		},
	}
}
