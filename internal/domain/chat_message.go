package domain

import "time"

// Sender identifica el autor de un mensaje.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderCompanion Sender = "companion"
)

// SafetyFlag es la marca de seguridad adjunta al crear un mensaje.
type SafetyFlag string

const (
	SafetyFlagNone           SafetyFlag = "none"
	SafetyFlagCrisisDetected SafetyFlag = "crisis_detected"
)

// ChatMessage es una entrada inmutable del log append-only de una sesión.
// Seq es asignado por el store y define el orden dentro de la sesión.
type ChatMessage struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	Seq           int64      `json:"seq"`
	Sender        Sender     `json:"sender"`
	Text          string     `json:"text"`
	SafetyFlag    SafetyFlag `json:"safety_flag,omitempty"`
	SuggestedTool *ToolID    `json:"suggested_tool,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsCrisis indica si el mensaje quedó marcado con crisis al crearse.
func (m ChatMessage) IsCrisis() bool {
	return m.SafetyFlag == SafetyFlagCrisisDetected
}
