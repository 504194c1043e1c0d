package aigen

import (
	"fmt"
	"strings"
)

// Промпты просят у модели строго JSON с компактными ключами: каждый лишний
// байт схемы оплачивается на каждом слое каждой сессии.

const firstLayerSystemPrompt = `You are a writer of short, punchy interactive stories for a game community.
The player earns or loses in-game coins depending on their choices.
Produce STRICTLY a single JSON object, no markdown, with this exact shape:
{
  "t": "story title, max 60 chars",
  "m": "a single emoji matching the story theme",
  "intro": "2-4 sentences setting up the situation, second person",
  "d": {
    "txt": "1-2 sentences presenting a dilemma with exactly two ways out",
    "x": {"lbl": "short action label", "desc": "one sentence", "coins": <int, -200..200>, "risk": <float, 0.5..2.0>},
    "y": {"lbl": "short action label", "desc": "one sentence", "coins": <int, -200..200>, "risk": <float, 0.5..2.0>}
  }
}
"coins" is the base reward of picking that option, "risk" scales how much the
eventual outcome swings. Make the two options meaningfully different: one
safer, one riskier. Write in the language of the user request.`

const continuationSystemPrompt = `You are continuing an interactive story. The player just committed to a choice.
Produce STRICTLY a single JSON object, no markdown, with this exact shape:
{
  "out": "1-3 sentences: the tense moment where the choice plays out, before the result is known",
  "chance": <int 0..100, probability the gamble succeeds>,
  "win": <branch>,
  "lose": <branch>
}
A <branch> is either an ending:
  {"end": true, "txt": "2-3 sentences of resolution", "coins": <int, -500..800>, "pos": <bool, did the player come out ahead narratively>, "xp": <float, 0.5..2.0>}
or a follow-up dilemma:
  {"end": false, "txt": "1-2 sentences", "d": {"txt": "...", "x": {"lbl": "...", "desc": "...", "coins": <int>, "risk": <float>}, "y": {"lbl": "...", "desc": "...", "coins": <int>, "risk": <float>}}}
Keep the same language and tone as the story so far.`

const continuationForceEndingRule = `
Depth limit reached: BOTH "win" and "lose" MUST be endings ("end": true).`

func buildFirstLayerInput(theme string) string {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = "an ordinary day that takes an unexpected turn"
	}
	return fmt.Sprintf("Write the opening of a story about: %s", theme)
}

func buildContinuationSystemPrompt(forceEnding bool) string {
	if forceEnding {
		return continuationSystemPrompt + continuationForceEndingRule
	}
	return continuationSystemPrompt
}

func buildContinuationInput(title, priorNarrative, choiceLabel, choiceDescription string) string {
	var sb strings.Builder
	sb.WriteString("Story title: ")
	sb.WriteString(title)
	sb.WriteString("\n\nStory so far:\n")
	sb.WriteString(priorNarrative)
	sb.WriteString("\n\nThe player chose: ")
	sb.WriteString(choiceLabel)
	if choiceDescription != "" {
		sb.WriteString(" (")
		sb.WriteString(choiceDescription)
		sb.WriteString(")")
	}
	return sb.String()
}
