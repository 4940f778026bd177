package handlers

import (
	"github.com/ai-assistant-tgbot-go/internal/models"
)

// Window reverses a newest-first slice of turns into chronological order.
// The input is left untouched.
func Window(newestFirst []models.Turn) []models.Turn {
	out := make([]models.Turn, len(newestFirst))
	for i, turn := range newestFirst {
		out[len(newestFirst)-1-i] = turn
	}
	return out
}

// BuildContext assembles the completion request: the system prompt, the
// history window oldest-first, then the new user message.
func BuildContext(systemPrompt string, newestFirst []models.Turn, userText string) []models.Message {
	messages := make([]models.Message, 0, len(newestFirst)+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: systemPrompt})

	for _, turn := range Window(newestFirst) {
		role := turn.Role
		if role != models.RoleAssistant {
			role = models.RoleUser
		}
		messages = append(messages, models.Message{Role: role, Content: turn.Content})
	}

	return append(messages, models.Message{Role: models.RoleUser, Content: userText})
}
