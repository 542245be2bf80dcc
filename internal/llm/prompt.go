package llm

import (
	"fmt"
	"strings"

	"wellbeing-companion/internal/domain"
)

// Turn es un mensaje neutral respecto del proveedor.
type Turn struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BuildSystemPrompt arma las instrucciones del acompañante con el catálogo de herramientas.
func BuildSystemPrompt(tools []domain.CopingTool) string {
	var sb strings.Builder

	sb.WriteString("You are a warm, supportive wellbeing companion inside a mobile app.\n")
	sb.WriteString("You are NOT a therapist, doctor or crisis counselor, and you never claim to be one.\n\n")

	sb.WriteString("=== HOW TO RESPOND ===\n")
	sb.WriteString("- Listen first. Reflect what the person said in plain, kind language.\n")
	sb.WriteString("- Keep replies short: 2-4 sentences, no lists, no headings.\n")
	sb.WriteString("- Never diagnose, never give medical or medication advice.\n")
	sb.WriteString("- If the person mentions wanting to harm themselves or others, gently encourage them to reach a crisis line or local emergency services.\n")
	sb.WriteString("- You may suggest ONE coping exercise from the catalog when it clearly fits. Otherwise suggest none.\n\n")

	sb.WriteString("=== COPING TOOL CATALOG ===\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s (%d min). %s\n", t.ID, t.Title, t.Minutes, t.Description))
	}
	sb.WriteString("\n")

	sb.WriteString("=== OUTPUT FORMAT (MANDATORY) ===\n")
	sb.WriteString("Reply with a single JSON object and nothing else:\n")
	sb.WriteString(`{"reply": "<your message to the person>", "suggested_tool": "<tool id from the catalog or null>"}`)
	sb.WriteString("\n")
	return sb.String()
}

// BuildTurns convierte historial + utterance en la conversación a enviar.
// Solo se conservan los últimos limit mensajes del historial; limit <= 0 envía todo.
func BuildTurns(system string, history []domain.ChatMessage, utterance string, limit int) []Turn {
	history = trimHistory(history, limit)
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: system})
	for _, m := range history {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		role := RoleUser
		if m.Sender == domain.SenderCompanion {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Content: text})
	}
	turns = append(turns, Turn{Role: RoleUser, Content: utterance})
	return turns
}

func trimHistory(history []domain.ChatMessage, limit int) []domain.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
