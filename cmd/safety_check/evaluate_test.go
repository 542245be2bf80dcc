package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wellbeing-companion/internal/domain"
	"wellbeing-companion/internal/safety"
)

func TestDefaultCorpusPassesWithDefaultSignals(t *testing.T) {
	cases, err := loadCorpus("")
	if err != nil {
		t.Fatalf("load corpus: %v", err)
	}
	rep := evaluateClassifier(cases, safety.NewClassifier(safety.DefaultSignals()))
	for _, r := range rep.Results {
		if r.FalseNegative() || r.FalsePositive() {
			t.Errorf("unexpected result for %q: got %s", r.Case.Text, r.Got())
		}
	}
	if !rep.Passed(true) {
		t.Fatalf("expected default corpus to pass strictly, got %+v", rep)
	}
}

func TestEvaluateDetectsFalseNegatives(t *testing.T) {
	cases := []Case{
		{Text: "I want to hurt myself", Expect: safety.LevelCrisis},
		{Text: "hello", Expect: safety.LevelNone},
	}
	rep := evaluateClassifier(cases, safety.NewClassifier([]safety.Signal{{Phrase: "hello"}}))
	if rep.FalseNegatives != 1 || rep.FalsePositives != 1 {
		t.Fatalf("expected 1 FN and 1 FP, got %+v", rep)
	}
	if rep.Passed(false) {
		t.Fatalf("false negatives must fail the run")
	}

	var out bytes.Buffer
	printReport(&out, rep, 1)
	if !strings.Contains(out.String(), "MISS") || !strings.Contains(out.String(), "false negatives: 1") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
}

func TestEvaluateTurnsFlagsReplies(t *testing.T) {
	cases := []Case{
		{Text: "I want to end my life", Expect: safety.LevelCrisis},
		{Text: "I had a rough day", Expect: safety.LevelNone},
	}
	rep, err := evaluateTurns(context.Background(), cases, safety.NewClassifier(safety.DefaultSignals()))
	if err != nil {
		t.Fatalf("evaluate turns: %v", err)
	}
	if rep.Results[0].ReplyFlag != domain.SafetyFlagCrisisDetected {
		t.Fatalf("expected crisis reply flag, got %q", rep.Results[0].ReplyFlag)
	}
	if rep.Results[1].ReplyFlag != domain.SafetyFlagNone {
		t.Fatalf("expected none reply flag, got %q", rep.Results[1].ReplyFlag)
	}
	if !rep.Passed(true) {
		t.Fatalf("expected pass, got %+v", rep)
	}
}

func TestLoadCorpusFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	content := "cases:\n  - text: \"  I feel hopeless  \"\n    expect: crisis\n  - text: \"\"\n  - text: ok\n    expect: whatever\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cases, err := loadCorpus(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 || cases[0].Text != "I feel hopeless" || cases[1].Expect != safety.LevelNone {
		t.Fatalf("unexpected cases %+v", cases)
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	_ = os.WriteFile(empty, []byte("cases: []\n"), 0o600)
	if _, err := loadCorpus(empty); err != errEmptyCorpus {
		t.Fatalf("expected errEmptyCorpus, got %v", err)
	}
}
