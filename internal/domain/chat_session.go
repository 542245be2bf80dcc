package domain

import "time"

// ChatSession es la unidad de continuidad conversacional de un dispositivo.
// Nunca se borra: termina explícitamente o al ser reemplazada por una sesión nueva.
type ChatSession struct {
	ID               string     `json:"id"`
	DeviceID         string     `json:"device_id"`
	CreatedAt        time.Time  `json:"created_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
	CrisisFlag       bool       `json:"crisis_flag"`
	CrisisFlagReason *string    `json:"crisis_flag_reason,omitempty"`
}

// Ended indica si la sesión ya no admite mensajes nuevos.
func (s ChatSession) Ended() bool {
	return s.EndedAt != nil
}

// IsStale indica si la última actividad quedó fuera de la ventana de retoma.
func (s ChatSession) IsStale(now time.Time, window time.Duration) bool {
	last := s.LastActivityAt
	if last.IsZero() {
		last = s.CreatedAt
	}
	return now.Sub(last) > window
}
