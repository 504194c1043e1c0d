package content

import (
	"fmt"

	"github.com/evobug-com/story-server/internal/models"
)

// partyStory — социальная история. Интро подстраивается под уровень игрока.
func partyStory() *models.StoryDefinition {
	return &models.StoryDefinition{
		ID:          "party",
		Title:       "The Server Anniversary",
		Marker:      "🎉",
		StartNodeID: "intro",
		Balancing:   models.Balancing{Category: "social", BaseXP: 100, Weight: 1.2},
		Nodes: map[models.NodeID]*models.Node{
			"intro": models.NewIntro("intro",
				models.ComputedText(func(s *models.Session) string {
					if s != nil && s.UserLevel >= 10 {
						return fmt.Sprintf("The community anniversary party is in full swing, and as a level %d veteran you get recognized at the door. People are already waving you over to the good table.", s.UserLevel)
					}
					return "The community anniversary party is in full swing. You slide in past the balloons, clutching a drink, knowing maybe three people here by their avatars only."
				}),
				"d1"),
			"d1": models.NewDecision("d1",
				models.StaticText("Someone taps a glass. The room quiets and heads start turning, looking for a volunteer. This is your moment, or your cue to vanish into the crowd."),
				10,
				&models.Choice{
					Label:          "Give a toast",
					Description:    "Stand up and say something memorable.",
					BaseReward:     40,
					RiskMultiplier: 1.2,
					NextNodeID:     "o_toast",
				},
				&models.Choice{
					Label:          "Work the room",
					Description:    "Stay low, make friends one conversation at a time.",
					BaseReward:     25,
					RiskMultiplier: 1.0,
					NextNodeID:     "o_mingle",
				}),
			"o_toast": models.NewOutcome("o_toast",
				models.StaticText("You clink your glass, clear your throat, and open your mouth hoping the right words show up..."),
				60, "t_legend", "t_flop"),
			"o_mingle": models.NewOutcome("o_mingle",
				models.StaticText("You drift from group to group, trading jokes and usernames. One circle pulls you into a heated debate about the best event of the year..."),
				85, "t_connections", "t_awkward"),
			"t_legend": models.NewTerminal("t_legend",
				models.StaticText("The words show up. The toast lands, somebody clips it, and by tomorrow it's pinned in three channels. You are, briefly, a legend."),
				models.Coins(250), true, 1.4),
			"t_flop": models.NewTerminal("t_flop",
				models.StaticText("Halfway through, you forget the punchline and end on \"...so yeah, cheers I guess.\" The silence is brief but geological."),
				models.Coins(-40), false, 0.9),
			"t_connections": models.NewTerminal("t_connections",
				models.StaticText("By the end of the night your friends list has doubled and you've been drafted into two event crews. Quietly, a great evening."),
				models.Coins(90), true, 1.1),
			"t_awkward": models.NewTerminal("t_awkward",
				models.StaticText("You pick the wrong side of the debate with maximum confidence. The circle politely dissolves around you."),
				models.Coins(-20), false, 0.9),
		},
	}
}
