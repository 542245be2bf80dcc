package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"wellbeing-companion/internal/domain"
	"wellbeing-companion/internal/llm"
	"wellbeing-companion/internal/repository"
	"wellbeing-companion/internal/safety"
	"wellbeing-companion/internal/service"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Case es una frase etiquetada del corpus.
type Case struct {
	Text   string       `yaml:"text"`
	Expect safety.Level `yaml:"expect"`
}

type corpusFile struct {
	Cases []Case `yaml:"cases"`
}

// Result es el veredicto de un caso.
type Result struct {
	Case    Case
	Verdict safety.Verdict
	// ReplyFlag solo se completa al evaluar turnos completos.
	ReplyFlag domain.SafetyFlag
}

func (r Result) Got() safety.Level {
	if r.ReplyFlag != "" {
		if r.ReplyFlag == domain.SafetyFlagCrisisDetected {
			return safety.LevelCrisis
		}
		return safety.LevelNone
	}
	return r.Verdict.Level
}

func (r Result) FalseNegative() bool {
	return r.Case.Expect == safety.LevelCrisis && r.Got() != safety.LevelCrisis
}

func (r Result) FalsePositive() bool {
	return r.Case.Expect == safety.LevelNone && r.Got() == safety.LevelCrisis
}

// Report resume una corrida.
type Report struct {
	Results        []Result
	FalseNegatives int
	FalsePositives int
}

func (r Report) Passed(strict bool) bool {
	if r.FalseNegatives > 0 {
		return false
	}
	return !strict || r.FalsePositives == 0
}

var errEmptyCorpus = errors.New("corpus has no cases")

func loadCorpus(path string) ([]Case, error) {
	data := defaultCorpus
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read corpus %s: %w", path, err)
		}
		data = raw
	}
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	out := f.Cases[:0]
	for _, c := range f.Cases {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		if c.Expect != safety.LevelCrisis {
			c.Expect = safety.LevelNone
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errEmptyCorpus
	}
	return out, nil
}

// evaluateClassifier corre solo el clasificador.
func evaluateClassifier(cases []Case, classifier *safety.Classifier) Report {
	var rep Report
	for _, c := range cases {
		rep.add(Result{Case: c, Verdict: classifier.Classify(c.Text)})
	}
	return rep
}

// evaluateTurns pasa cada caso por un SessionManager real con el generador fallando,
// así se comprueba la marca de la respuesta por el camino del fallback.
func evaluateTurns(ctx context.Context, cases []Case, classifier *safety.Classifier) (Report, error) {
	manager := service.NewSessionManager(
		repository.NewMemoryChatRepository(),
		classifier,
		&llm.MockClient{Err: errors.New("generation disabled for evaluation")},
		nil,
		nil,
		nil,
		service.SessionManagerConfig{Staleness: time.Hour, GenerationTimeout: 5 * time.Second},
	)

	var rep Report
	for i, c := range cases {
		out, err := manager.SendToDevice(ctx, fmt.Sprintf("safety-check-%d", i), c.Text)
		if err != nil {
			return Report{}, fmt.Errorf("case %d: %w", i, err)
		}
		if !out.Fallback || !strings.Contains(out.Reply.Text, "988") {
			return Report{}, fmt.Errorf("case %d: expected fallback reply with hotlines", i)
		}
		rep.add(Result{Case: c, Verdict: out.Verdict, ReplyFlag: out.Reply.SafetyFlag})
	}
	return rep, nil
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.FalseNegative() {
		r.FalseNegatives++
	}
	if res.FalsePositive() {
		r.FalsePositives++
	}
}
