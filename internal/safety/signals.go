package safety

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed signals_default.yaml
var defaultSignalsYAML []byte

var ErrNoSignals = errors.New("crisis signal list is empty")

type signalFile struct {
	Version int      `yaml:"version"`
	Signals []Signal `yaml:"signals"`
}

// ParseSignals decodifica una lista de señales en YAML.
func ParseSignals(data []byte) ([]Signal, error) {
	var f signalFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	out := make([]Signal, 0, len(f.Signals))
	for _, s := range f.Signals {
		s.Phrase = strings.TrimSpace(s.Phrase)
		s.Category = strings.TrimSpace(s.Category)
		if s.Phrase == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, ErrNoSignals
	}
	return out, nil
}

// DefaultSignals devuelve la lista mantenida que viaja embebida en el binario.
func DefaultSignals() []Signal {
	signals, err := ParseSignals(defaultSignalsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded crisis signals invalid: %v", err))
	}
	return signals
}

// LoadSignals lee la lista desde path; sin path usa la lista embebida.
func LoadSignals(path string) ([]Signal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultSignals(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signals %s: %w", path, err)
	}
	return ParseSignals(data)
}
