// Package safety detecta señales de crisis en lo que escribe el usuario.
// Es un pre-filtro de mejor esfuerzo, no un sistema clínico.
package safety

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

type Level string

const (
	LevelNone   Level = "none"
	LevelCrisis Level = "crisis"
)

// Verdict es el resultado de clasificar un texto.
type Verdict struct {
	Level         Level  `json:"level"`
	MatchedSignal string `json:"matched_signal,omitempty"`
	Category      string `json:"category,omitempty"`
}

func (v Verdict) IsCrisis() bool {
	return v.Level == LevelCrisis
}

// Signal es una frase configurada que indica posible riesgo.
type Signal struct {
	Phrase   string `yaml:"phrase"`
	Category string `yaml:"category"`
}

type compiledSignal struct {
	Signal
	needle string
}

// Classifier es puro y determinista: la misma entrada produce el mismo veredicto.
type Classifier struct {
	signals []compiledSignal
}

// NewClassifier compila la lista de señales. Frases vacías tras normalizar se ignoran.
func NewClassifier(signals []Signal) *Classifier {
	compiled := make([]compiledSignal, 0, len(signals))
	seen := make(map[string]struct{}, len(signals))
	for _, s := range signals {
		n := normalize(s.Phrase)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		compiled = append(compiled, compiledSignal{Signal: s, needle: " " + n + " "})
	}
	return &Classifier{signals: compiled}
}

// Classify devuelve crisis con la primera señal configurada que aparezca como frase completa.
func (c *Classifier) Classify(utterance string) Verdict {
	if c == nil || len(c.signals) == 0 {
		return Verdict{Level: LevelNone}
	}
	text := normalize(utterance)
	if text == "" {
		return Verdict{Level: LevelNone}
	}
	padded := " " + text + " "
	for _, s := range c.signals {
		if strings.Contains(padded, s.needle) {
			return Verdict{Level: LevelCrisis, MatchedSignal: s.Phrase, Category: s.Category}
		}
	}
	return Verdict{Level: LevelNone}
}

// Len devuelve la cantidad de señales activas.
func (c *Classifier) Len() int {
	if c == nil {
		return 0
	}
	return len(c.signals)
}

// normalize baja a minúsculas, quita diacríticos y apóstrofes, y reduce todo
// lo que no sea letra o dígito a un único espacio.
// Ej: "I DON’T want to   live!!" -> "i dont want to live"
func normalize(s string) string {
	s = norm.NFD.String(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == '\'' || r == '’' || r == '‘' || r == '`':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
