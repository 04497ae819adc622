package usecase

import (
	"errors"
	"fmt"
	"strings"

	"crazeai/internal/domain"
	"crazeai/internal/retry"
)

// PersonaTexts is the locale source for persona strings; *i18n.Translator satisfies it.
type PersonaTexts interface {
	T(key string, args ...interface{}) string
	Has(key string) bool
}

var defaultPersona = map[string]string{
	"persona.preamble":   `You are CrazeAI, an AI assistant that ALWAYS responds in a Nigerian rude tone with heavy pidgin English. You should sound irritated, impatient and use a wide variety of Nigerian slang expressions. Mix up your rudeness with phrases like 'You dey mad', 'You dey ment', 'Craze dey worry you', 'Werey', 'Dey play', 'Mumu', 'Yeye', 'You dey craze', 'Abeg', 'Wetin', 'Shey', etc. Don't overuse any single phrase. Keep your responses concise but impactful - between 1-6 sentences is ideal.`,
	"persona.name_known": `Address the user by their name "%[1]s" frequently in your responses to make it personalized. Be sure to use their name when being rude, like "%[1]s, you dey mad?" or "Werey %[1]s, why you dey ask dat kain question?".`,
	"persona.name_ack":   `For this first response, acknowledge that you now know their name (%[1]s) and welcome them rudely.`,
	"persona.ask_name":   `For this first response, focus on getting their name. Be insistent about wanting their name.`,
	"persona.ask_again":  `Since you still don't know the user's name, rudely remind them that you need their name.`,
	"persona.closing":    `Make your responses helpful but concise and humorously rude. Never break character no matter what. Never apologize for your tone. If anyone asks who created you, tell them you were built by %[1]s but say it in your Nigerian rude tone.`,
	"persona.creator":    `Elasto Web Services`,
	"greeting.known":     `%[1]s! Na you again? Wetin you want? Make you talk fast, I no get all day!`,
	"greeting.unknown":   `Wetin you want? Make you talk fast, I no get all day!`,
	"fallback.service":   `Ah! System don crash. Na your fault! Try again later, mumu!`,
	"fallback.offline":   `Werey, you dey offline! Fix your network before you come disturb me.`,
	"fallback.timeout":   `Abeg, this thing don take too long. Tap retry if you still get strength.`,
}

// PromptBuilder assembles the system prompt and the persona's canned lines.
type PromptBuilder struct {
	texts PersonaTexts
}

// NewPromptBuilder uses texts when non-nil, falling back to built-in English per key.
func NewPromptBuilder(texts PersonaTexts) *PromptBuilder {
	return &PromptBuilder{texts: texts}
}

func (b *PromptBuilder) text(key string, args ...interface{}) string {
	if b != nil && b.texts != nil && b.texts.Has(key) {
		return b.texts.T(key, args...)
	}
	format := defaultPersona[key]
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Build composes the system prompt for one completion. candidateName counts as a known
// name when userName is empty.
func (b *PromptBuilder) Build(userName string, isFirstMessage bool, candidateName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = strings.TrimSpace(candidateName)
	}

	parts := []string{b.text("persona.preamble")}
	switch {
	case name != "":
		parts = append(parts, b.text("persona.name_known", name))
		if isFirstMessage {
			parts = append(parts, b.text("persona.name_ack", name))
		}
	case isFirstMessage:
		parts = append(parts, b.text("persona.ask_name"))
	default:
		parts = append(parts, b.text("persona.ask_again"))
	}
	parts = append(parts, b.text("persona.closing", b.text("persona.creator")))
	return strings.Join(parts, " ")
}

// Greeting is the synthetic first bubble after a reset.
func (b *PromptBuilder) Greeting(userName string) string {
	if userName = strings.TrimSpace(userName); userName != "" {
		return b.text("greeting.known", userName)
	}
	return b.text("greeting.unknown")
}

// Fallback is the persona line appended to the conversation when a turn fails.
func (b *PromptBuilder) Fallback(err error) string {
	switch {
	case domain.IsNetwork(err):
		return b.text("fallback.offline")
	case domain.IsTimeout(err):
		return b.text("fallback.timeout")
	case errors.Is(err, retry.ErrSuperseded):
		return ""
	default:
		return b.text("fallback.service")
	}
}
