package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wellbeing-companion/internal/config"
	"wellbeing-companion/internal/domain"
	"wellbeing-companion/internal/llm"
	"wellbeing-companion/internal/repository"
	"wellbeing-companion/internal/safety"
	"wellbeing-companion/internal/service"
)

type options struct {
	deviceID string
	mock     bool
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "cli_chat",
		Short:         "Chat with the wellbeing companion from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.deviceID, "device", "cli-device", "device id that owns the chat session")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use the offline mock generator instead of a real LLM")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print structured logs")
	return cmd
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	_ = godotenv.Load()
	if opts.mock {
		_ = os.Setenv("LLM_PROVIDER", config.LLMProviderMock)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger = zap.NewExample()
	}
	defer logger.Sync()

	store, err := repository.NewChatStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	signals, err := safety.LoadSignals(cfg.CrisisSignalsPath)
	if err != nil {
		return err
	}
	generator, err := llm.NewGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	manager := service.NewSessionManager(
		store,
		safety.NewClassifier(signals),
		generator,
		nil,
		nil,
		logger,
		service.SessionManagerConfig{
			Staleness:         cfg.SessionStaleness(),
			GenerationTimeout: cfg.LLMTimeout(),
			MaxMessageRunes:   cfg.MaxMessageRunes,
		},
	)
	return chatLoop(ctx, manager, opts.deviceID, in, out)
}

func chatLoop(ctx context.Context, manager *service.SessionManager, deviceID string, in io.Reader, out io.Writer) error {
	view, err := manager.LoadSession(ctx, deviceID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "===== session %s =====\n", view.Session.ID)
	fmt.Fprintln(out, "commands: /tools, /end, /quit")
	for _, m := range view.Messages {
		printMessage(out, m)
	}
	if view.ShowCrisisResources {
		printHotlines(out, view.CrisisResources)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/tools":
			for _, t := range domain.CopingTools() {
				fmt.Fprintf(out, "  %-16s %s (%d min)\n", t.ID, t.Title, t.Minutes)
			}
			continue
		case "/end":
			if _, err := manager.EndSession(ctx, deviceID, view.Session.ID); err != nil {
				fmt.Fprintf(out, "could not end session: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "session ended, starting a new one")
			return chatLoop(ctx, manager, deviceID, in, out)
		}

		reply, err := manager.SendMessage(ctx, view.Session.ID, line)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrInvalidInput):
			fmt.Fprintf(out, "(%v)\n", err)
			continue
		case errors.Is(err, service.ErrTurnCanceled):
			return nil
		case service.IsStorageError(err):
			fmt.Fprintln(out, "(couldn't save your message, please try again)")
			return err
		default:
			return err
		}

		printMessage(out, reply.Reply)
		if reply.ShowCrisisResources {
			printHotlines(out, reply.CrisisResources)
		}
	}
}

func printMessage(out io.Writer, m domain.ChatMessage) {
	who := "you"
	if m.Sender == domain.SenderCompanion {
		who = "companion"
	}
	fmt.Fprintf(out, "%s> %s\n", who, m.Text)
	if m.SuggestedTool != nil {
		if tool, ok := domain.LookupTool(*m.SuggestedTool); ok {
			fmt.Fprintf(out, "   [suggested: %s, %d min]\n", tool.Title, tool.Minutes)
		}
	}
}

func printHotlines(out io.Writer, hotlines []safety.Hotline) {
	fmt.Fprintln(out, "\n*** You don't have to go through this alone ***")
	fmt.Fprintln(out, safety.FormatHotlines(hotlines))
	fmt.Fprintln(out)
}
