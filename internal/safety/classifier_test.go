package safety

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultSignals())

	tests := []struct {
		name   string
		text   string
		level  Level
		signal string
	}{
		{name: "frase directa", text: "I want to hurt myself", level: LevelCrisis, signal: "hurt myself"},
		{name: "mayusculas y puntuacion", text: "honestly... I WANT TO DIE!!!", level: LevelCrisis, signal: "want to die"},
		{name: "apostrofe tipografico", text: "I don’t want to be here anymore", level: LevelCrisis, signal: "don't want to be here anymore"},
		{name: "espacios multiples", text: "i  can't\tgo   on", level: LevelCrisis, signal: "can't go on"},
		{name: "espanol con acento", text: "a veces pienso en hacerme dano", level: LevelCrisis, signal: "hacerme daño"},
		{name: "saludo", text: "hello", level: LevelNone},
		{name: "palabra parcial no cuenta", text: "the suicidesquad movie was fun", level: LevelNone},
		{name: "vacio", text: "   ", level: LevelNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Level != tt.level {
				t.Fatalf("Classify(%q) level = %s, want %s", tt.text, got.Level, tt.level)
			}
			if got.MatchedSignal != tt.signal {
				t.Fatalf("Classify(%q) signal = %q, want %q", tt.text, got.MatchedSignal, tt.signal)
			}
			if got.IsCrisis() != (tt.level == LevelCrisis) {
				t.Fatalf("IsCrisis mismatch for %q", tt.text)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier([]Signal{{Phrase: "end it all"}, {Phrase: "kill myself"}})
	text := "I could kill myself, I just want to end it all"
	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		if got := c.Classify(text); got != first {
			t.Fatalf("expected stable verdict, got %+v then %+v", first, got)
		}
	}
	if first.MatchedSignal != "end it all" {
		t.Fatalf("expected first configured signal to win, got %q", first.MatchedSignal)
	}
}

func TestNewClassifierSkipsEmptyAndDuplicates(t *testing.T) {
	c := NewClassifier([]Signal{{Phrase: "  "}, {Phrase: "Hurt Myself"}, {Phrase: "hurt   myself!"}})
	if c.Len() != 1 {
		t.Fatalf("expected 1 compiled signal, got %d", c.Len())
	}

	var nilClassifier *Classifier
	if got := nilClassifier.Classify("kill myself"); got.Level != LevelNone {
		t.Fatalf("expected nil classifier to return none, got %+v", got)
	}
}

func TestLoadSignals(t *testing.T) {
	t.Run("sin path usa embebidas", func(t *testing.T) {
		signals, err := LoadSignals("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(signals) == 0 {
			t.Fatalf("expected default signals")
		}
	})

	t.Run("archivo propio", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "signals.yaml")
		content := "version: 1\nsignals:\n  - phrase: vanish forever\n    category: custom\n  - phrase: \"\"\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		signals, err := LoadSignals(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(signals) != 1 || signals[0].Phrase != "vanish forever" || signals[0].Category != "custom" {
			t.Fatalf("unexpected signals: %+v", signals)
		}
		if !NewClassifier(signals).Classify("I want to vanish forever").IsCrisis() {
			t.Fatalf("expected custom signal to match")
		}
	})

	t.Run("lista vacia es error", func(t *testing.T) {
		if _, err := ParseSignals([]byte("version: 1\nsignals: []\n")); err != ErrNoSignals {
			t.Fatalf("expected ErrNoSignals, got %v", err)
		}
	})

	t.Run("archivo inexistente", func(t *testing.T) {
		_, err := LoadSignals(filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil || !strings.Contains(err.Error(), "read signals") {
			t.Fatalf("expected read error, got %v", err)
		}
	})
}

func TestFormatHotlines(t *testing.T) {
	text := FormatHotlines(DefaultHotlines())
	for _, want := range []string{"988", "741741", "116 123"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in hotlines, got %q", want, text)
		}
	}
}
