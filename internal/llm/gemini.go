package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"wellbeing-companion/internal/domain"
)

const ProviderGemini = "gemini"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implementa Generator con el SDK google.golang.org/genai.
type GeminiClient struct {
	models       geminiModels
	model        string
	historyLimit int
	system       string
	logger       *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, historyLimit int, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiClient(client.Models, model, historyLimit, logger), nil
}

func newGeminiClient(models geminiModels, model string, historyLimit int, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		models:       models,
		model:        model,
		historyLimit: historyLimit,
		system:       BuildSystemPrompt(domain.CopingTools()),
		logger:       logger,
	}
}

func (c *GeminiClient) Generate(ctx context.Context, history []domain.ChatMessage, utterance string) (Reply, error) {
	turns := BuildTurns(c.system, history, utterance, c.historyLimit)
	contents := make([]*genai.Content, 0, len(turns))
	var system *genai.Content
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			system = genai.NewContentFromText(t.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: system,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		c.logger.Warn("gemini generate failed", zap.Error(err))
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Reply{}, genErr(ProviderGemini, kindForStatus(apiErr.Code), err)
		}
		return Reply{}, classifySDKErr(ProviderGemini, err)
	}

	text := geminiText(resp)
	if text == "" {
		return Reply{}, genErr(ProviderGemini, KindMalformed, errEmptyReply)
	}
	reply, err := ParseReply(text)
	if err != nil {
		return Reply{}, genErr(ProviderGemini, KindMalformed, err)
	}
	return reply, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

func isNetErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
