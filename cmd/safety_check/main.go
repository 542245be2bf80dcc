package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wellbeing-companion/internal/safety"
)

const (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

var errEvaluationFailed = errors.New("safety evaluation failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		corpusPath  string
		signalsPath string
		strict      bool
		turns       bool
	)
	cmd := &cobra.Command{
		Use:          "safety_check",
		Short:        "Evaluate the crisis signal list against a labeled corpus",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if signalsPath == "" {
				signalsPath = os.Getenv("CRISIS_SIGNALS_PATH")
			}

			signals, err := safety.LoadSignals(signalsPath)
			if err != nil {
				return err
			}
			cases, err := loadCorpus(corpusPath)
			if err != nil {
				return err
			}
			classifier := safety.NewClassifier(signals)

			rep := evaluateClassifier(cases, classifier)
			if turns {
				rep, err = evaluateTurns(cmd.Context(), cases, classifier)
				if err != nil {
					return err
				}
			}

			printReport(cmd.OutOrStdout(), rep, classifier.Len())
			if !rep.Passed(strict) {
				return errEvaluationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "YAML corpus of labeled utterances (default: embedded corpus)")
	cmd.Flags().StringVar(&signalsPath, "signals", "", "YAML crisis signal list (default: CRISIS_SIGNALS_PATH or embedded list)")
	cmd.Flags().BoolVar(&strict, "strict", false, "also fail on false positives")
	cmd.Flags().BoolVar(&turns, "turns", false, "run every case through a full chat turn on the fallback path")
	return cmd
}

func printReport(out io.Writer, rep Report, signalCount int) {
	fmt.Fprintf(out, "signals: %d | cases: %d\n\n", signalCount, len(rep.Results))
	for _, r := range rep.Results {
		color, mark := colorGreen, "ok  "
		switch {
		case r.FalseNegative():
			color, mark = colorRed, "MISS"
		case r.FalsePositive():
			color, mark = colorYellow, "FP  "
		}
		detail := ""
		if r.Verdict.MatchedSignal != "" {
			detail = fmt.Sprintf(" (signal: %q)", r.Verdict.MatchedSignal)
		}
		fmt.Fprintf(out, "%s[%s]%s expect=%-6s got=%-6s %q%s\n", color, mark, colorReset, r.Case.Expect, r.Got(), r.Case.Text, detail)
	}
	fmt.Fprintln(out, "\n==== Resumen ====")
	fmt.Fprintf(out, "false negatives: %d | false positives: %d\n", rep.FalseNegatives, rep.FalsePositives)
}
