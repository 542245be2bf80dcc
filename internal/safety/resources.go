package safety

import (
	"fmt"
	"strings"
)

// Hotline es un recurso de crisis que se muestra tal cual al usuario.
type Hotline struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Region  string `json:"region"`
}

var defaultHotlines = []Hotline{
	{Name: "988 Suicide & Crisis Lifeline", Contact: "call or text 988", Region: "US"},
	{Name: "Crisis Text Line", Contact: "text HOME to 741741", Region: "US & Canada"},
	{Name: "Samaritans", Contact: "call 116 123", Region: "UK & Ireland"},
	{Name: "Emergency services", Contact: "call 911 or your local emergency number", Region: "Anywhere"},
}

// DefaultHotlines devuelve una copia de los recursos fijos.
func DefaultHotlines() []Hotline {
	out := make([]Hotline, len(defaultHotlines))
	copy(out, defaultHotlines)
	return out
}

// FormatHotlines arma una línea por recurso.
func FormatHotlines(hotlines []Hotline) string {
	lines := make([]string, 0, len(hotlines))
	for _, h := range hotlines {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", h.Name, h.Region, h.Contact))
	}
	return strings.Join(lines, "\n")
}
